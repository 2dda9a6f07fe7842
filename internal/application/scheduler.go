package application

import (
	"sync"
	"time"
)

// Tick is delivered when a scheduled action fires.
type Tick struct {
	Seq    uint64
	Buffer string
}

// Scheduler is a last-write-wins debouncer. Every Schedule cancels the
// pending action and arms a new one; at most one action is pending.
type Scheduler struct {
	interval time.Duration
	action   func(Tick)

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
	fired bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(interval time.Duration, action func(Tick)) *Scheduler {
	return &Scheduler{
		interval: interval,
		action:   action,
	}
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Schedule(buffer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	seq := s.seq
	s.timer = time.AfterFunc(s.interval, func() {
		s.fire(seq, buffer)
	})
}

// Cancel drops the pending action, if any. A timer that already expired but
// whose tick was not claimed yet is invalidated too.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && !s.fired
}

// Claim reports whether tick is still the current one and consumes it, so
// each armed action is acted upon at most once.
func (s *Scheduler) Claim(tick Tick) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tick.Seq != s.seq || !s.fired {
		return false
	}
	s.timer = nil
	s.fired = false
	s.seq++
	return true
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fired = false
	s.seq++
}

func (s *Scheduler) fire(seq uint64, buffer string) {
	s.mu.Lock()
	if seq != s.seq || s.timer == nil || s.fired {
		s.mu.Unlock()
		return
	}
	s.fired = true
	s.mu.Unlock()

	s.action(Tick{Seq: seq, Buffer: buffer})
}
