// Package parallel splits index ranges across worker goroutines.
//
// Two shapes are provided:
//
//   - [For]: disjoint-index maps. Each range owns the indices it visits, so
//     tasks may write their own slots without synchronization.
//   - [Fold]: scatter passes. Each range folds into a private accumulator
//     and the accumulators are merged serially in range order.
//
// Ranges are contiguous and assigned in index order, so with a fixed
// worker count the result of a [Fold] does not depend on scheduling.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultMinChunk is the smallest range handed to a worker.
const DefaultMinChunk = 64

// Plan fixes how a pass is split.
type Plan struct {
	Workers  int
	MinChunk int
}

// NewPlan returns a plan with the given worker count; workers <= 0 means one
// worker per CPU.
func NewPlan(workers int) Plan {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return Plan{Workers: workers, MinChunk: DefaultMinChunk}
}

// Serial runs every pass on the calling goroutine.
func Serial() Plan {
	return Plan{Workers: 1, MinChunk: DefaultMinChunk}
}

// ranges splits [0, n) into at most p.Workers contiguous ranges.
func (p Plan) ranges(n int) [][2]int {
	if n <= 0 {
		return nil
	}
	workers := p.Workers
	minChunk := p.MinChunk
	if minChunk < 1 {
		minChunk = 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// For executes fn over [0, n). Every range runs to completion; when several
// ranges fail, the error from the lowest range is returned.
func For(p Plan, n int, fn func(lo, hi int) error) error {
	parts := p.ranges(n)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return fn(0, n)
	}

	errs := make([]error, len(parts))
	var g errgroup.Group
	for w, r := range parts {
		g.Go(func() error {
			errs[w] = fn(r[0], r[1])
			return errs[w]
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Fold gives every range its own accumulator from init, folds the range into
// it, then merges the accumulators left to right.
func Fold[A any](p Plan, n int, init func() A, fold func(acc A, lo, hi int) A, merge func(dst, src A) A) A {
	parts := p.ranges(n)
	switch len(parts) {
	case 0:
		return init()
	case 1:
		return fold(init(), 0, n)
	}

	accs := make([]A, len(parts))
	var g errgroup.Group
	for w, r := range parts {
		g.Go(func() error {
			accs[w] = fold(init(), r[0], r[1])
			return nil
		})
	}
	_ = g.Wait()

	out := accs[0]
	for _, acc := range accs[1:] {
		out = merge(out, acc)
	}
	return out
}
