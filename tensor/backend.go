// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/denoise/internal/tensor"

// Backend defines the compute interface every backend implements.
//
// Implementations:
//   - backend/cpu: pure Go kernels parallelized over batch and channels
//
// Example:
//
//	import (
//	    "github.com/born-ml/denoise/backend/cpu"
//	    "github.com/born-ml/denoise/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 8, 8}, backend)
type Backend = tensor.Backend

// ConvOptions carries stride, padding, dilation and output padding for
// convolutions. Zero stride and dilation mean 1.
type ConvOptions = tensor.ConvOptions
