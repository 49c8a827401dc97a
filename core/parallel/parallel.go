// Package parallel fans pure per-index work out over the available CPU cores.
// Callers must write results into disjoint slots; fn receives a half-open range.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize splits [0, items) into one contiguous chunk per CPU core and
// runs fn on each chunk concurrently, returning when all chunks are done.
// A panic in a chunk is re-raised on the calling goroutine after every chunk
// has finished, so a deferred recover in the caller sees it.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicked  interface{}
	)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicked = r })
				}
			}()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()

	if panicked != nil {
		panic(panicked)
	}
}

// ParallelizeWithThreshold runs fn sequentially when items is at or below threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
