// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/parallel"
	"github.com/born-ml/denoise/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend that uses every available core.
//
// Example:
//
//	import (
//	    "github.com/born-ml/denoise/backend/cpu"
//	    "github.com/born-ml/denoise/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := tensor.Zeros[float32](tensor.Shape{1, 3, 64, 64}, backend)
//	}
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend whose kernels fan out over at most
// workers goroutines. workers <= 1 runs every kernel sequentially.
func NewWithWorkers(workers int) *Backend {
	return internalcpu.NewWithConfig(parallel.WithWorkers(workers))
}
