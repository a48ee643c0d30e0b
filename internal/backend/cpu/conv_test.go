package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/denoise/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	if len(values) > 0 {
		require.Len(t, values, shape.NumElements())
		copy(r.AsFloat32(), values)
	}
	return r
}

func filled(t *testing.T, shape tensor.Shape, v float32) *tensor.RawTensor {
	t.Helper()
	r := raw(t, shape)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = v
	}
	return r
}

func random(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r := raw(t, shape)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

// TestConv2D_BasicForward tests a 2x2 diagonal kernel over a 3x3 ramp.
func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	input := raw(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	kernel := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 0, 0, 1)

	output := backend.Conv2D(input, kernel, tensor.ConvOptions{})

	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2D_StridePadding(t *testing.T) {
	backend := New()

	input := filled(t, tensor.Shape{1, 1, 4, 4}, 1)
	kernel := filled(t, tensor.Shape{1, 1, 3, 3}, 1)

	output := backend.Conv2D(input, kernel, tensor.ConvOptions{Stride: 2, Padding: 1})

	// Each output counts the in-bounds taps of its 3x3 window.
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{4, 6, 6, 9}, output.AsFloat32())
}

func TestConv2D_Dilation(t *testing.T) {
	backend := New()

	input := raw(t, tensor.Shape{1, 1, 3, 3}, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	kernel := filled(t, tensor.Shape{1, 1, 2, 2}, 1)

	output := backend.Conv2D(input, kernel, tensor.ConvOptions{Dilation: 2})

	// Dilation 2 makes the 2x2 kernel read the four corners.
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, output.Shape())
	assert.Equal(t, []float32{1 + 3 + 7 + 9}, output.AsFloat32())
}

func TestConv2D_DilatedSamePadding(t *testing.T) {
	backend := New()

	for _, d := range []int{1, 2, 3} {
		input := filled(t, tensor.Shape{2, 3, 9, 7}, 1)
		kernel := filled(t, tensor.Shape{5, 3, 3, 3}, 1)
		output := backend.Conv2D(input, kernel, tensor.ConvOptions{Padding: d, Dilation: d})
		assert.Equal(t, tensor.Shape{2, 5, 9, 7}, output.Shape(), "dilation %d", d)
	}
}

func TestConv2D_MultiChannelBatch(t *testing.T) {
	backend := New()

	// Two samples, two input channels, a 1x1 kernel mixing them.
	input := raw(t, tensor.Shape{2, 2, 1, 2},
		1, 2, // n0 c0
		3, 4, // n0 c1
		5, 6, // n1 c0
		7, 8) // n1 c1
	kernel := raw(t, tensor.Shape{3, 2, 1, 1},
		1, 0,
		0, 1,
		1, 1)

	output := backend.Conv2D(input, kernel, tensor.ConvOptions{})

	assert.Equal(t, tensor.Shape{2, 3, 1, 2}, output.Shape())
	assert.Equal(t, []float32{
		1, 2, 3, 4, 4, 6,
		5, 6, 7, 8, 12, 14,
	}, output.AsFloat32())
}

func TestConv2D_InvalidShapes(t *testing.T) {
	backend := New()

	assert.Panics(t, func() {
		backend.Conv2D(filled(t, tensor.Shape{1, 2, 4, 4}, 1), filled(t, tensor.Shape{1, 3, 3, 3}, 1), tensor.ConvOptions{})
	}, "channel mismatch")
	assert.Panics(t, func() {
		backend.Conv2D(filled(t, tensor.Shape{1, 1, 2, 2}, 1), filled(t, tensor.Shape{1, 1, 3, 3}, 1), tensor.ConvOptions{})
	}, "kernel larger than input")
	assert.Panics(t, func() {
		backend.Conv2D(filled(t, tensor.Shape{1, 4, 4}, 1), filled(t, tensor.Shape{1, 1, 3, 3}, 1), tensor.ConvOptions{})
	}, "3D input")
}

func TestConvTranspose2D_Stride1(t *testing.T) {
	backend := New()

	input := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	kernel := filled(t, tensor.Shape{1, 1, 2, 2}, 1)

	output := backend.ConvTranspose2D(input, kernel, tensor.ConvOptions{})

	assert.Equal(t, tensor.Shape{1, 1, 3, 3}, output.Shape())
	assert.Equal(t, []float32{
		1, 3, 2,
		4, 10, 6,
		3, 7, 4,
	}, output.AsFloat32())
}

func TestConvTranspose2D_Stride2(t *testing.T) {
	backend := New()

	input := raw(t, tensor.Shape{1, 1, 2, 2}, 1, 2, 3, 4)
	kernel := filled(t, tensor.Shape{1, 1, 2, 2}, 1)

	output := backend.ConvTranspose2D(input, kernel, tensor.ConvOptions{Stride: 2})

	// Each input value is stamped into its own 2x2 block.
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, output.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, output.AsFloat32())
}

func TestConvTranspose2D_OutputPadding(t *testing.T) {
	backend := New()

	input := filled(t, tensor.Shape{2, 4, 5, 6}, 1)
	kernel := filled(t, tensor.Shape{4, 3, 3, 3}, 1)

	output := backend.ConvTranspose2D(input, kernel, tensor.ConvOptions{Stride: 2, Padding: 1, OutputPadding: 1})

	// (in-1)*2 - 2 + 2 + 1 + 1 = 2*in
	assert.Equal(t, tensor.Shape{2, 3, 10, 12}, output.Shape())

	assert.Panics(t, func() {
		backend.ConvTranspose2D(input, kernel, tensor.ConvOptions{Stride: 2, Padding: 1, OutputPadding: 2})
	})
}

// TestConvTranspose2D_IsAdjointOfConv2D checks <conv(x), y> == <x, convT(y)>
// for the same weight tensor.
func TestConvTranspose2D_IsAdjointOfConv2D(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(7))

	opts := tensor.ConvOptions{Stride: 2, Padding: 1, Dilation: 1}
	x := random(t, rng, tensor.Shape{2, 2, 5, 5})
	w := random(t, rng, tensor.Shape{3, 2, 3, 3})

	cx := backend.Conv2D(x, w, opts)
	require.Equal(t, tensor.Shape{2, 3, 3, 3}, cx.Shape())

	y := random(t, rng, cx.Shape())
	ty := backend.ConvTranspose2D(y, w, opts)
	require.Equal(t, x.Shape(), ty.Shape())

	var lhs, rhs float64
	for i, v := range cx.AsFloat32() {
		lhs += float64(v) * float64(y.AsFloat32()[i])
	}
	for i, v := range x.AsFloat32() {
		rhs += float64(v) * float64(ty.AsFloat32()[i])
	}
	assert.InDelta(t, lhs, rhs, 1e-3)
}

func TestConv1D(t *testing.T) {
	backend := New()

	t.Run("difference kernel", func(t *testing.T) {
		input := raw(t, tensor.Shape{1, 1, 4}, 1, 2, 4, 7)
		kernel := raw(t, tensor.Shape{1, 1, 2}, 1, -1)
		output := backend.Conv1D(input, kernel, tensor.ConvOptions{})
		assert.Equal(t, tensor.Shape{1, 1, 3}, output.Shape())
		assert.Equal(t, []float32{-1, -2, -3}, output.AsFloat32())
	})

	t.Run("pointwise projection", func(t *testing.T) {
		input := raw(t, tensor.Shape{2, 2, 1}, 2, 3, 1, -1)
		kernel := raw(t, tensor.Shape{3, 2, 1}, 1, 0, 0, 1, 1, 1)
		output := backend.Conv1D(input, kernel, tensor.ConvOptions{})
		assert.Equal(t, tensor.Shape{2, 3, 1}, output.Shape())
		assert.Equal(t, []float32{2, 3, 5, 1, -1, 0}, output.AsFloat32())
	})

	t.Run("padding", func(t *testing.T) {
		input := raw(t, tensor.Shape{1, 1, 3}, 1, 2, 3)
		kernel := filled(t, tensor.Shape{1, 1, 3}, 1)
		output := backend.Conv1D(input, kernel, tensor.ConvOptions{Padding: 1})
		assert.Equal(t, []float32{3, 6, 5}, output.AsFloat32())
	})
}
