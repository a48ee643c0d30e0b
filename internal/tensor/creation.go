package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T, B](MustRaw(shape, DataTypeOf[T](), b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, T(1), b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a float32 tensor drawn from N(mean, std²) using the
// Box-Muller transform. A nil rng uses the package-level source.
func Randn[B Backend](shape Shape, mean, std float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := 0; i < len(data); i += 2 {
		u1 := 1 - uniform(rng) // (0, 1], keeps Log finite
		u2 := uniform(rng)
		r := math.Sqrt(-2 * math.Log(u1))
		data[i] = float32(mean + std*r*math.Cos(2*math.Pi*u2))
		if i+1 < len(data) {
			data[i+1] = float32(mean + std*r*math.Sin(2*math.Pi*u2))
		}
	}
	return t
}

// Uniform creates a float32 tensor drawn from U(low, high).
func Uniform[B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(low + (high-low)*uniform(rng))
	}
	return t
}

func uniform(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64() //nolint:gosec // G404: weight init, not security sensitive
	}
	return rng.Float64()
}
