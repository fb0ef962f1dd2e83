// SPDX-License-Identifier: Apache-2.0

package work

import (
	"context"
	"sync"
)

// LIFOSemaphore is a counting semaphore that wakes the most recently
// blocked waiter first, grounded on slice_db/concurrent/lock.py's
// LifoSemaphore. LIFO wake order keeps the most recently suspended
// heavyweight task (and therefore its hot temp-table state) resuming first.
type LIFOSemaphore struct {
	mu      sync.Mutex
	free    int
	waiters []chan struct{}
}

// NewLIFOSemaphore returns a semaphore permitting up to n concurrent
// acquisitions.
func NewLIFOSemaphore(n int) *LIFOSemaphore {
	return &LIFOSemaphore{free: n}
}

// Acquire blocks until a permit is available or ctx is cancelled. Waiters
// are woken last-in-first-out.
func (s *LIFOSemaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.free > 0 {
		s.free--
		s.mu.Unlock()
		return nil
	}
	wake := make(chan struct{})
	s.waiters = append(s.waiters, wake)
	s.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.waiters {
			if w == wake {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Release returns a permit, waking the most recently blocked waiter if any.
func (s *LIFOSemaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.waiters); n > 0 {
		last := s.waiters[n-1]
		s.waiters = s.waiters[:n-1]
		close(last)
		return
	}
	s.free++
}
