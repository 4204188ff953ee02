package reminder

import "sync"

// State is the derived mode of the reminder countdown.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateFiring  State = "firing"
)

// Outcome tells the caller what a Tick did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeTicked
	OutcomeFired
)

// Snapshot is a point-in-time view of the timer, shaped for the tick event.
type Snapshot struct {
	RemainingSeconds int   `json:"remaining_seconds"`
	IsRunning        bool  `json:"is_running"`
	IsPaused         bool  `json:"is_paused"`
	IntervalMinutes  int   `json:"interval_minutes"`
	State            State `json:"state"`
}

// Timer is the stretch reminder countdown. It owns no goroutine; the caller
// drives it with one Tick per second.
type Timer struct {
	mu        sync.Mutex
	interval  int
	remaining int
	running   bool
	paused    bool
	firing    bool
}

func New(intervalMinutes int) *Timer {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	return &Timer{interval: intervalMinutes}
}

// Start begins counting down. It returns false if the timer was already
// running. A reset, or an exhausted countdown, reloads the full interval.
func (t *Timer) Start(reset bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(reset)
}

func (t *Timer) startLocked(reset bool) bool {
	if t.running {
		return false
	}
	if reset || t.remaining <= 0 {
		t.remaining = t.interval * 60
		t.paused = false
	}
	t.firing = false
	t.running = true
	return true
}

// Stop pauses a running countdown and keeps the remaining seconds.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

func (t *Timer) stopLocked() bool {
	if !t.running {
		return false
	}
	t.running = false
	t.paused = true
	return true
}

// Toggle stops a running timer, resumes a paused one, and starts a fresh
// cycle otherwise (idle or firing).
func (t *Timer) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.stopLocked()
		return
	}
	t.startLocked(!t.paused)
}

// Tick advances the countdown by one second.
func (t *Timer) Tick() (Snapshot, Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.snapshotLocked(), OutcomeNone
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.running = false
		t.paused = false
		t.firing = true
		return t.snapshotLocked(), OutcomeFired
	}
	return t.snapshotLocked(), OutcomeTicked
}

// Acknowledge ends a break and starts the next full cycle.
func (t *Timer) Acknowledge() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.firing = false
	t.paused = false
	return t.startLocked(true)
}

// SetInterval stores a new interval in minutes. A running timer restarts
// with the new interval; otherwise it applies on the next start.
func (t *Timer) SetInterval(minutes int) (restarted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if minutes < 1 || minutes == t.interval {
		return false
	}
	t.interval = minutes
	if !t.running {
		return false
	}
	t.stopLocked()
	return t.startLocked(true)
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	st := StateIdle
	switch {
	case t.running:
		st = StateRunning
	case t.firing:
		st = StateFiring
	case t.paused:
		st = StatePaused
	}
	return Snapshot{
		RemainingSeconds: t.remaining,
		IsRunning:        t.running,
		IsPaused:         t.paused,
		IntervalMinutes:  t.interval,
		State:            st,
	}
}
