// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the denoising layers.
//
// # Overview
//
// The backend implements:
//   - NumPy-compatible broadcasting for Add and Mul
//   - Conv2D, ConvTranspose2D and Conv1D with stride, padding and dilation
//   - Per-channel moments and batch normalization
//   - ReLU, Sigmoid, Tanh and embedding lookup
//
// Convolution and normalization kernels fan out over (batch, channel) pairs.
// Each worker writes a disjoint slice of the output.
//
// # Basic Usage
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 32, 32}, backend)
//	w := tensor.Randn(tensor.Shape{8, 3, 3, 3}, 0, 0.1, nil, backend)
//	y := x.Conv2D(w, tensor.ConvOptions{Padding: 1}) // [1, 8, 32, 32]
package cpu
