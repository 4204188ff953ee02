package alarms

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

func TestIntervalsPopDueInOrder(t *testing.T) {
	t.Parallel()
	s := NewIntervals()
	s.Schedule("slow", 10, t0)
	s.Schedule("fast", 1, t0)
	s.Schedule("mid", 5, t0)

	if next, ok := s.Next(); !ok || !next.Equal(t0.Add(time.Minute)) {
		t.Fatalf("Next() = %v, %v", next, ok)
	}
	if due := s.PopDue(t0.Add(59 * time.Second)); len(due) != 0 {
		t.Fatalf("PopDue early = %v", due)
	}
	due := s.PopDue(t0.Add(10 * time.Minute))
	if len(due) != 3 || due[0] != "fast" || due[1] != "mid" || due[2] != "slow" {
		t.Fatalf("PopDue = %v", due)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after pop = %d", s.Len())
	}
}

func TestIntervalsRescheduleDropsStaleEntry(t *testing.T) {
	t.Parallel()
	s := NewIntervals()
	s.Schedule("a", 1, t0)
	s.Schedule("a", 5, t0)

	if due := s.PopDue(t0.Add(2 * time.Minute)); len(due) != 0 {
		t.Fatalf("stale deadline fired: %v", due)
	}
	if r, ok := s.Remaining("a", t0.Add(2*time.Minute)); !ok || r != 3*time.Minute {
		t.Fatalf("Remaining = %v, %v", r, ok)
	}
	if due := s.PopDue(t0.Add(5 * time.Minute)); len(due) != 1 || due[0] != "a" {
		t.Fatalf("PopDue = %v", due)
	}
}

func TestIntervalsCancel(t *testing.T) {
	t.Parallel()
	s := NewIntervals()
	s.Schedule("a", 1, t0)
	if !s.Cancel("a") {
		t.Fatal("Cancel() = false for live deadline")
	}
	if s.Cancel("a") {
		t.Fatal("Cancel() twice = true")
	}
	if _, ok := s.Remaining("a", t0); ok {
		t.Fatal("Remaining after cancel should be absent")
	}
	if due := s.PopDue(t0.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("cancelled deadline fired: %v", due)
	}
	if _, ok := s.Next(); ok {
		t.Fatal("Next() should be empty")
	}
}

func TestIntervalsRemainingClampsAtZero(t *testing.T) {
	t.Parallel()
	s := NewIntervals()
	s.Schedule("a", 1, t0)
	if r, ok := s.Remaining("a", t0.Add(2*time.Minute)); !ok || r != 0 {
		t.Fatalf("Remaining overdue = %v, %v", r, ok)
	}
}

func TestIntervalsCompactsStaleEntries(t *testing.T) {
	t.Parallel()
	s := NewIntervals()
	for i := 0; i < 500; i++ {
		s.Schedule("churn", 1+i%3, t0)
	}
	if s.h.Len() > s.Len()+65 {
		t.Fatalf("heap not compacted: %d entries for %d live", s.h.Len(), s.Len())
	}
	if due := s.PopDue(t0.Add(time.Hour)); len(due) != 1 {
		t.Fatalf("PopDue after churn = %v", due)
	}
}
