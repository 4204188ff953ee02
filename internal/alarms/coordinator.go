package alarms

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"
)

// Coordinator owns the live alarm schedule and keeps it consistent with
// repository mutations. It is not safe for concurrent use; the engine
// serialises every call.
type Coordinator struct {
	repo      Repository
	log       logx.Logger
	scanner   *Scanner
	intervals *Intervals
	newID     func() string
}

type Option func(*Coordinator)

// WithLocation sets the time zone used for time-of-day alarms.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) { c.scanner.SetLocation(loc) }
}

// WithIDGenerator overrides the id source for new alarms.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

func NewCoordinator(repo Repository, log logx.Logger, opts ...Option) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Coordinator{
		repo:      repo,
		log:       log,
		scanner:   NewScanner(time.Local, log),
		intervals: NewIntervals(),
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Coordinator) Location() *time.Location { return c.scanner.Location() }

func (c *Coordinator) SetLocation(loc *time.Location) { c.scanner.SetLocation(loc) }

// Init schedules every enabled interval alarm from now.
func (c *Coordinator) Init(ctx context.Context, now time.Time) error {
	c.intervals.Reset()
	c.scanner.Reset()
	list, err := c.repo.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("list alarms: %w", err)
	}
	n := 0
	for _, a := range list {
		if a.Enabled && a.Kind == domain.KindInterval && a.IntervalMinutes > 0 {
			c.intervals.Schedule(a.ID, a.IntervalMinutes, now)
			n++
		}
	}
	c.log.Debug("alarm schedule initialised", logx.Int("alarms", len(list)), logx.Int("interval_deadlines", n))
	return nil
}

// Shutdown cancels every pending deadline.
func (c *Coordinator) Shutdown() {
	c.intervals.Reset()
	c.scanner.Reset()
}

// Create validates and upserts a, assigning an id when empty.
func (c *Coordinator) Create(ctx context.Context, a domain.Alarm, now time.Time) (domain.Alarm, error) {
	if err := a.Validate(); err != nil {
		return domain.Alarm{}, err
	}
	if a.ID == "" {
		a.ID = c.newID()
	}
	return c.put(ctx, a, now)
}

// Update replaces an existing alarm. Unknown ids are ignored (ok=false).
func (c *Coordinator) Update(ctx context.Context, a domain.Alarm, now time.Time) (domain.Alarm, bool, error) {
	if err := a.Validate(); err != nil {
		return domain.Alarm{}, false, err
	}
	if _, ok, err := c.repo.GetAlarm(ctx, a.ID); err != nil || !ok {
		return domain.Alarm{}, false, err
	}
	out, err := c.put(ctx, a, now)
	if err != nil {
		return domain.Alarm{}, false, err
	}
	return out, true, nil
}

// Save updates a when its id exists and creates it otherwise.
func (c *Coordinator) Save(ctx context.Context, a domain.Alarm, now time.Time) (domain.Alarm, error) {
	if a.ID != "" {
		out, ok, err := c.Update(ctx, a, now)
		if err != nil || ok {
			return out, err
		}
	}
	return c.Create(ctx, a, now)
}

func (c *Coordinator) put(ctx context.Context, a domain.Alarm, now time.Time) (domain.Alarm, error) {
	a.Normalize()
	a.LastTriggered = nil
	if err := c.repo.UpsertAlarm(ctx, a); err != nil {
		return domain.Alarm{}, fmt.Errorf("upsert alarm %s: %w", a.ID, err)
	}
	// Cancel first: the kind may have changed from interval to time of day.
	c.intervals.Cancel(a.ID)
	if a.Kind == domain.KindInterval && a.Enabled {
		c.intervals.Schedule(a.ID, a.IntervalMinutes, now)
	}
	return a, nil
}

// Delete removes an alarm and its deadline. Unknown ids are ignored.
func (c *Coordinator) Delete(ctx context.Context, id string) (bool, error) {
	c.intervals.Cancel(id)
	ok, err := c.repo.DeleteAlarm(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete alarm %s: %w", id, err)
	}
	return ok, nil
}

// Toggle flips enabled. Unknown ids are ignored.
func (c *Coordinator) Toggle(ctx context.Context, id string, now time.Time) (domain.Alarm, bool, error) {
	a, ok, err := c.repo.GetAlarm(ctx, id)
	if err != nil || !ok {
		return domain.Alarm{}, false, err
	}
	a.Enabled = !a.Enabled
	if err := c.repo.UpsertAlarm(ctx, a); err != nil {
		return domain.Alarm{}, false, fmt.Errorf("upsert alarm %s: %w", id, err)
	}
	switch {
	case !a.Enabled:
		c.intervals.Cancel(id)
	case a.Kind == domain.KindInterval && !c.intervals.Scheduled(id):
		c.intervals.Schedule(id, a.IntervalMinutes, now)
	}
	return a, true, nil
}

// List returns every alarm in insertion order with live scheduling state.
func (c *Coordinator) List(ctx context.Context, now time.Time) ([]Entry, error) {
	list, err := c.repo.ListAlarms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	out := make([]Entry, 0, len(list))
	for _, a := range list {
		e := Entry{Alarm: a}
		if r, ok := c.intervals.Remaining(a.ID, now); ok {
			secs := int(math.Ceil(r.Seconds()))
			e.RemainingSeconds = &secs
		}
		if next, ok := NextFireAt(a, now, c.scanner.Location()); ok {
			e.NextFireAt = &next
		}
		out = append(out, e)
	}
	return out, nil
}

// Remaining is the time left on an interval alarm's live deadline.
func (c *Coordinator) Remaining(id string, now time.Time) (time.Duration, bool) {
	return c.intervals.Remaining(id, now)
}

// Tick runs one scheduling step: the minute scanner, then every interval
// deadline that is due. changed reports repository mutations made by the
// scanner (dedup stamp, one-shot disable).
func (c *Coordinator) Tick(ctx context.Context, now time.Time) (fires []Fire, changed bool) {
	if c.scanner.Observe(now) {
		f, ok, err := c.scanMinute(ctx, now)
		if err != nil {
			c.log.Warn("time alarm scan failed", logx.Err(err))
		} else if ok {
			fires = append(fires, f)
			changed = true
		}
	}
	fires = append(fires, c.fireIntervals(ctx, now)...)
	return fires, changed
}

func (c *Coordinator) scanMinute(ctx context.Context, now time.Time) (Fire, bool, error) {
	list, err := c.repo.ListAlarms(ctx)
	if err != nil {
		return Fire{}, false, err
	}
	i := c.scanner.Match(list, now)
	if i < 0 {
		return Fire{}, false, nil
	}
	a := list[i]
	today := c.scanner.Today(now)
	a.LastTriggered = &today
	if a.OneShot() {
		a.Enabled = false
	}
	if err := c.repo.UpsertAlarm(ctx, a); err != nil {
		// Still fire; dedup for the rest of the minute comes from the scanner edge.
		c.log.Warn("failed to record alarm trigger", logx.String("alarm_id", a.ID), logx.Err(err))
	}
	c.log.Debug("time alarm matched", logx.String("alarm_id", a.ID), logx.String("time", a.Time.String()), logx.Bool("one_shot", a.OneShot()))
	return fireOf(a, now), true, nil
}

func (c *Coordinator) fireIntervals(ctx context.Context, now time.Time) []Fire {
	var fires []Fire
	for _, id := range c.intervals.PopDue(now) {
		a, ok, err := c.repo.GetAlarm(ctx, id)
		if err != nil {
			c.log.Warn("interval alarm lookup failed; dropping deadline", logx.String("alarm_id", id), logx.Err(err))
			continue
		}
		if !ok || !a.Enabled || a.Kind != domain.KindInterval || a.IntervalMinutes <= 0 {
			c.log.Debug("interval deadline suppressed", logx.String("alarm_id", id), logx.Bool("found", ok))
			continue
		}
		fires = append(fires, fireOf(a, now))
		c.intervals.Schedule(id, a.IntervalMinutes, now)
	}
	return fires
}
