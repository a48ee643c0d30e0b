package data

import (
	"github.com/born-ml/denoise/internal/parallel"
	"github.com/born-ml/denoise/internal/tensor"
)

// Loader fetches samples with a fixed number of workers and hands them out
// in index order.
type Loader[B tensor.Backend] struct {
	dataset Dataset[B]
	workers int
}

// NewLoader creates a loader. workers <= 1 loads sequentially.
func NewLoader[B tensor.Backend](dataset Dataset[B], workers int) *Loader[B] {
	return &Loader[B]{dataset: dataset, workers: max(workers, 1)}
}

// Len returns the dataset size.
func (l *Loader[B]) Len() int { return l.dataset.Len() }

// Each calls fn for every sample in order. Samples are decoded in windows of
// the worker count. The first error, from loading or from fn, stops the
// iteration.
func (l *Loader[B]) Each(fn func(i int, s Sample[B]) error) error {
	n := l.dataset.Len()
	cfg := parallel.WithWorkers(l.workers)
	window := make([]Sample[B], l.workers)

	for start := 0; start < n; start += l.workers {
		size := min(l.workers, n-start)
		err := parallel.ForErr(size, func(j int) error {
			s, err := l.dataset.Get(start + j)
			window[j] = s
			return err
		}, cfg)
		if err != nil {
			return err
		}
		for j := range size {
			if err := fn(start+j, window[j]); err != nil {
				return err
			}
			window[j] = Sample[B]{}
		}
	}
	return nil
}
