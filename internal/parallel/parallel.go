// Package parallel fans index ranges out over worker goroutines. CPU kernels
// use it across batch and channel dimensions, and the dataset loader uses it
// to prefetch samples.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how For splits work.
type Config struct {
	Enabled      bool // false forces sequential execution
	NumWorkers   int  // upper bound on goroutines per call
	MinChunkSize int  // fewest items a goroutine is given
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return WithWorkers(runtime.NumCPU())
}

// WithWorkers returns a config with exactly n workers, one item per chunk.
// n <= 1 runs sequentially.
func WithWorkers(n int) Config {
	return Config{Enabled: n > 1, NumWorkers: max(n, 1), MinChunkSize: 1}
}

// chunk returns the number of items per goroutine, or 0 when the work
// should stay on the calling goroutine.
func (c Config) chunk(n int) int {
	if !c.Enabled || c.NumWorkers <= 1 || n < max(c.MinChunkSize, 2) {
		return 0
	}
	perWorker := (n + c.NumWorkers - 1) / c.NumWorkers
	return max(perWorker, c.MinChunkSize, 1)
}

// For calls f(i) for every i in [0, n) and returns when all calls have
// finished. Calls within one chunk run in index order.
func For(n int, f func(i int), cfg Config) {
	size := cfg.chunk(n)
	if size == 0 {
		for i := range n {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		wg.Go(func() {
			for i := lo; i < hi; i++ {
				f(i)
			}
		})
	}
	wg.Wait()
}

// ForBatch iterates the batch*channels grid common to convolution kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}

// ForErr is For with fallible work items. Every item runs and the error of
// the lowest failing index is returned.
func ForErr(n int, f func(i int) error, cfg Config) error {
	errs := make([]error, n)
	For(n, func(i int) { errs[i] = f(i) }, cfg)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
