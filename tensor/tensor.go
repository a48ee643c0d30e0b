// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the public tensor API of the denoise module.
//
// The package re-exports the typed tensor, its shape and dtype tags and the
// creation helpers used to build layer inputs:
//
//	backend := cpu.New()
//	noisy := tensor.Zeros[float32](tensor.Shape{1, 3, 64, 64}, backend)
//	iso := tensor.Full(tensor.Shape{1, 1}, float32(1600), backend)
package tensor

import (
	"math/rand"

	"github.com/born-ml/denoise/internal/tensor"
)

// DType is a constraint for tensor element types: float32, int32, int64, uint8.
type DType = tensor.DType

// DataType is the runtime tag of a tensor's element type.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only compute device.
const CPU Device = tensor.CPU

// ParseDevice maps a configuration string such as "cpu" onto a Device.
func ParseDevice(name string) (Device, error) {
	return tensor.ParseDevice(name)
}

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 3, 32, 32} is one RGB image of 32×32 pixels.
type Shape = tensor.Shape

// RawTensor is the untyped row-major storage behind a Tensor. State dicts
// and checkpoints are expressed in raw tensors.
type RawTensor = tensor.RawTensor

// Tensor is a generic type-safe tensor.
//
// T is the element type and B the backend that executes its operations.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// FromSlice creates a tensor holding a copy of data.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[T DType, B Backend](data []T, shape Shape, b B) *Tensor[T, B] {
	return tensor.MustFromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn samples N(mean, std²). A nil rng uses a time-seeded source.
func Randn[B Backend](shape Shape, mean, std float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, mean, std, rng, b)
}

// Uniform samples U(low, high). A nil rng uses a time-seeded source.
func Uniform[B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	return tensor.Uniform(shape, low, high, rng, b)
}

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}
