package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/opgrid/pkg/errors"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// EffectiveJobs resolves an n_jobs setting the way scikit-learn does:
// 0 and 1 mean sequential, -1 means all CPUs, -2 all but one, and so on.
// The result is at least 1.
func EffectiveJobs(nJobs int) int {
	cpus := runtime.NumCPU()
	switch {
	case nJobs == 0:
		return 1
	case nJobs < 0:
		nJobs = cpus + 1 + nJobs
	}
	if nJobs < 1 {
		return 1
	}
	return nJobs
}

// ForEach calls fn for every index in [0, items) on up to nJobs workers.
// The first error cancels the context handed to the remaining calls and is
// returned; a panic inside fn is recovered and returned as a PanicError.
// If ctx is cancelled before all items ran, ctx.Err() is returned.
func ForEach(ctx context.Context, nJobs, items int, fn func(ctx context.Context, i int) error) error {
	if items == 0 {
		return ctx.Err()
	}
	workers := EffectiveJobs(nJobs)
	if workers > items {
		workers = items
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				err := errors.SafeExecute("parallel.ForEach", func() error {
					return fn(ctx, i)
				})
				if err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for i := 0; i < items; i++ {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
