// SPDX-License-Identifier: Apache-2.0

package work

import (
	"context"
	"fmt"
)

// node wraps a scheduled item with its remaining dependency count and the
// set of items waiting on it, grounded on slice_db/concurrent/graph.py's
// ActionNode.
type node[T comparable] struct {
	value       T
	deps        int
	reverseDeps []*node[T]
}

// CycleError is returned by RunGraph when the static dependency graph
// contains a cycle, matching slice_db/graph.CycleError.
type CycleError struct {
	Nodes []string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("cycle detected among: %v", e.Nodes)
}

// RunGraph runs handler over items respecting the dependency DAG returned by
// deps (the list of items that must complete before a given item may run),
// with up to parallelism items running concurrently. A static cycle in deps
// is rejected up front as a CycleError before any handler runs.
func RunGraph[T comparable](ctx context.Context, parallelism int, items []T, deps func(T) []T, handler func(context.Context, T) error) error {
	if err := checkCycle(items, deps); err != nil {
		return err
	}

	nodes := make(map[T]*node[T], len(items))
	for _, item := range items {
		nodes[item] = &node[T]{value: item, deps: len(deps(item))}
	}
	for _, item := range items {
		for _, dep := range deps(item) {
			if depNode, ok := nodes[dep]; ok {
				depNode.reverseDeps = append(depNode.reverseDeps, nodes[item])
			}
		}
	}

	var seed []*node[T]
	for _, n := range nodes {
		if n.deps == 0 {
			seed = append(seed, n)
		}
	}

	runner := &Runner[*node[T]]{Parallelism: parallelism}
	return runner.Run(ctx, seed, func(ctx context.Context, n *node[T]) ([]*node[T], error) {
		if err := handler(ctx, n.value); err != nil {
			return nil, err
		}
		var ready []*node[T]
		for _, dep := range n.reverseDeps {
			dep.deps--
			if dep.deps == 0 {
				ready = append(ready, dep)
			}
		}
		return ready, nil
	})
}

// checkCycle performs a static DFS cycle check over items and their
// declared dependencies, mirroring slice_db/graph/__init__.py's check_cycle.
func checkCycle[T comparable](items []T, deps func(T) []T) error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[T]int, len(items))
	var stack []T

	var visit func(T) error
	visit = func(item T) error {
		switch color[item] {
		case black:
			return nil
		case gray:
			var cyc []string
			start := false
			for _, s := range stack {
				if s == item {
					start = true
				}
				if start {
					cyc = append(cyc, fmt.Sprint(s))
				}
			}
			cyc = append(cyc, fmt.Sprint(item))
			return &CycleError{Nodes: cyc}
		}

		color[item] = gray
		stack = append(stack, item)
		for _, dep := range deps(item) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[item] = black
		return nil
	}

	for _, item := range items {
		if err := visit(item); err != nil {
			return err
		}
	}
	return nil
}
