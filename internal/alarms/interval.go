package alarms

import (
	"container/heap"
	"time"
)

type deadline struct {
	id  string
	at  time.Time
	gen uint64
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)        { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}

// Intervals holds at most one live deadline per alarm id.
//
// Deadlines live in a min-heap. Cancelling or rescheduling only drops the
// id from the live table; the old heap entry stays behind with an outdated
// generation and is discarded when it surfaces.
type Intervals struct {
	h     deadlineHeap
	live  map[string]deadline
	gen   uint64
	stale int
}

func NewIntervals() *Intervals {
	return &Intervals{live: map[string]deadline{}}
}

// Schedule replaces any deadline for id with now + minutes.
func (s *Intervals) Schedule(id string, minutes int, now time.Time) time.Time {
	s.Cancel(id)
	s.gen++
	d := deadline{id: id, at: now.Add(time.Duration(minutes) * time.Minute), gen: s.gen}
	s.live[id] = d
	heap.Push(&s.h, d)
	return d.at
}

// Cancel drops the live deadline for id. It reports whether one existed.
func (s *Intervals) Cancel(id string) bool {
	if _, ok := s.live[id]; !ok {
		return false
	}
	delete(s.live, id)
	s.stale++
	s.maybeCompact()
	return true
}

// Reset cancels everything.
func (s *Intervals) Reset() {
	s.h = nil
	s.live = map[string]deadline{}
	s.stale = 0
}

func (s *Intervals) Scheduled(id string) bool {
	_, ok := s.live[id]
	return ok
}

func (s *Intervals) Len() int { return len(s.live) }

// Remaining is max(0, fireAt-now) for a live deadline.
func (s *Intervals) Remaining(id string, now time.Time) (time.Duration, bool) {
	d, ok := s.live[id]
	if !ok {
		return 0, false
	}
	if r := d.at.Sub(now); r > 0 {
		return r, true
	}
	return 0, true
}

// Next returns the earliest live deadline.
func (s *Intervals) Next() (time.Time, bool) {
	for s.h.Len() > 0 {
		top := s.h[0]
		if s.isLive(top) {
			return top.at, true
		}
		heap.Pop(&s.h)
		s.stale--
	}
	return time.Time{}, false
}

// PopDue removes and returns, earliest first, the ids whose live deadline
// is at or before now.
func (s *Intervals) PopDue(now time.Time) []string {
	var due []string
	for s.h.Len() > 0 && !s.h[0].at.After(now) {
		d := heap.Pop(&s.h).(deadline)
		if !s.isLive(d) {
			s.stale--
			continue
		}
		delete(s.live, d.id)
		due = append(due, d.id)
	}
	return due
}

func (s *Intervals) isLive(d deadline) bool {
	cur, ok := s.live[d.id]
	return ok && cur.gen == d.gen
}

// maybeCompact rebuilds the heap once stale entries dominate it.
func (s *Intervals) maybeCompact() {
	if s.stale <= len(s.live)+64 {
		return
	}
	h := make(deadlineHeap, 0, len(s.live))
	for _, d := range s.live {
		h = append(h, d)
	}
	heap.Init(&h)
	s.h = h
	s.stale = 0
}
