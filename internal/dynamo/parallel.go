package dynamo

import (
	"runtime"
	"sync"
)

// ParallelFor calls fn on contiguous chunks covering [0, n), one goroutine
// per chunk, and returns when all have finished. Chunks hold at least
// minChunk elements and there are at most GOMAXPROCS of them.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	minChunk = max(1, minChunk)
	workers := min(runtime.GOMAXPROCS(0), n/minChunk)
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, min(start+chunk, n))
	}
	wg.Wait()
}
