// Package timer holds cancellable one-shot timers with a single current
// handle per purpose.
package timer

import (
	"sync"
	"time"
)

// Slot owns at most one pending timer. Scheduling replaces the pending
// timer; a replaced or cancelled timer never runs its function.
type Slot struct {
	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

// Schedule cancels any pending timer and arranges for fn to run after d on
// its own goroutine.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.t = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer, if any.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

// Pending reports whether a timer is scheduled and has not fired.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t != nil
}

func (s *Slot) stopLocked() {
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}
