package backends

import (
	"context"
)

// InFlightLimiter caps concurrent requests per backend so a burst of fan-outs
// cannot pile onto one slow backend
type InFlightLimiter struct {
	semaphores map[BackendID]*semaphore
}

// semaphore implements a counting semaphore
type semaphore struct {
	permits chan struct{}
}

func newSemaphore(permits int) *semaphore {
	s := &semaphore{
		permits: make(chan struct{}, permits),
	}
	for i := 0; i < permits; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire acquires a permit, blocking until one is free or ctx ends
func (s *semaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a permit back to the semaphore
func (s *semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Release without matching Acquire
	}
}

// NewInFlightLimiter creates a limiter from the policy's per-backend caps
func NewInFlightLimiter(policy *QueryPolicy) *InFlightLimiter {
	l := &InFlightLimiter{
		semaphores: make(map[BackendID]*semaphore, len(policy.MaxInFlight)),
	}
	for id, max := range policy.MaxInFlight {
		l.semaphores[id] = newSemaphore(max)
	}
	return l
}

// Acquire acquires a permit for the given backend.
// Backends without a configured cap are unlimited.
func (l *InFlightLimiter) Acquire(ctx context.Context, id BackendID) error {
	sem, ok := l.semaphores[id]
	if !ok {
		return nil
	}
	return sem.Acquire(ctx)
}

// Release releases a permit for the given backend
func (l *InFlightLimiter) Release(id BackendID) {
	if sem, ok := l.semaphores[id]; ok {
		sem.Release()
	}
}
