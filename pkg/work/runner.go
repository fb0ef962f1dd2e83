// SPDX-License-Identifier: Apache-2.0

// Package work implements the LIFO task-join primitive and the
// dependency-count DAG runner the traversal and restore engines are built
// on, grounded on slice_db/concurrent/work.py and slice_db/concurrent/graph.py.
package work

import (
	"context"
	"sync"
)

// Handler processes one item of work and optionally yields further items to
// be scheduled, mirroring slice_db's WorkerRunner handler contract.
type Handler[T any] func(ctx context.Context, item T) ([]T, error)

// Runner runs a dynamic, LIFO-ordered collection of work items with a bounded
// number of concurrent workers. The first handler error cancels every
// outstanding and queued item and is returned once all workers have
// unwound; subsequent errors are discarded so the first cause stays clear.
type Runner[T any] struct {
	// Parallelism is the number of concurrent workers. Values < 1 are
	// treated as 1.
	Parallelism int
}

// Run schedules seed and any items yielded by handler, blocking until the
// queue is drained or the first error occurs.
func (r *Runner[T]) Run(ctx context.Context, seed []T, handler Handler[T]) error {
	parallelism := r.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	stack := append([]T(nil), seed...)
	pending := len(seed)
	done := pending == 0
	var firstErr error

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				for len(stack) == 0 && !done {
					cond.Wait()
				}
				if len(stack) == 0 {
					mu.Unlock()
					return
				}
				item := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				mu.Unlock()

				if ctx.Err() != nil {
					mu.Lock()
					pending--
					if pending == 0 {
						done = true
					}
					cond.Broadcast()
					mu.Unlock()
					continue
				}

				children, err := handler(ctx, item)

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
					cancel()
				}
				pending--
				if err == nil && ctx.Err() == nil {
					stack = append(stack, children...)
					pending += len(children)
				}
				if pending == 0 {
					done = true
				}
				cond.Broadcast()
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return firstErr
}
