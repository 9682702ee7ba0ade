// Package parallel splits index ranges into contiguous blocks processed by concurrent goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers returns the effective number of workers for n items.
// Non-positive workers means runtime.GOMAXPROCS(0). The result is never larger than n and never smaller than 1.
func Workers(workers, n int) int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	return workers
}

// Blocks splits [0, n) into at most workers contiguous blocks and calls fn for each of them.
// With a single worker fn runs on the calling goroutine. Otherwise every block runs
// on its own goroutine and Blocks returns only after all of them have finished, so
// the return of Blocks is a full barrier. It returns the first error returned by fn.
func Blocks(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}

	workers = Workers(workers, n)
	if workers == 1 {
		return fn(0, n)
	}

	size := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, lo+size
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			return fn(lo, hi)
		})
	}

	return g.Wait()
}
