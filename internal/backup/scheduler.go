// Package backup bounds the number of BACKUP snapshots being written to
// disk at once. It is a counting semaphore, grounded directly on the
// teacher's GoroutineLimiter (ws/internal/shared/limits/resource_guard.go):
// same Acquire/Release/Current/Max shape, generalized from "goroutines"
// to "in-flight backup writers" per spec.md §4.4.
package backup

import (
	"errors"
	"sync/atomic"
)

// ErrNotAdmitted is returned by TryAcquire when the scheduler is at
// capacity.
var ErrNotAdmitted = errors.New("backup: scheduler at capacity")

// Scheduler bounds concurrent backup writers to max via a buffered
// channel used as a counting semaphore.
type Scheduler struct {
	sem     chan struct{}
	max     int
	current int64
}

// NewScheduler builds a Scheduler admitting at most max concurrent
// backup writers. max must be >= 1.
func NewScheduler(max int) *Scheduler {
	if max < 1 {
		max = 1
	}
	return &Scheduler{sem: make(chan struct{}, max), max: max}
}

// Acquire blocks until a backup slot is free. Callers must call Release
// exactly once after acquiring, even if the write that follows fails
// (spec.md §4.4: "completion signals must reliably decrement active even
// when the snapshot writer fails").
func (s *Scheduler) Acquire() error {
	s.sem <- struct{}{}
	atomic.AddInt64(&s.current, 1)
	return nil
}

// TryAcquire acquires a slot without blocking, returning ErrNotAdmitted
// if the scheduler is already at capacity.
func (s *Scheduler) TryAcquire() error {
	select {
	case s.sem <- struct{}{}:
		atomic.AddInt64(&s.current, 1)
		return nil
	default:
		return ErrNotAdmitted
	}
}

// Release frees a previously acquired slot.
func (s *Scheduler) Release() {
	atomic.AddInt64(&s.current, -1)
	<-s.sem
}

// Current returns the number of backup writers currently in flight.
func (s *Scheduler) Current() int {
	return int(atomic.LoadInt64(&s.current))
}

// Max returns the configured concurrency bound.
func (s *Scheduler) Max() int {
	return s.max
}
