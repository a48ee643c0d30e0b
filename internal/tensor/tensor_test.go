package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/denoise/internal/backend/cpu"
	"github.com/born-ml/denoise/internal/tensor"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype tensor.DataType
		size  int
	}{
		{tensor.Float32, 4},
		{tensor.Int32, 4},
		{tensor.Int64, 8},
		{tensor.Uint8, 1},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.dtype, got, tt.size)
		}
		parsed, err := tensor.ParseDataType(tt.dtype.String())
		require.NoError(t, err)
		assert.Equal(t, tt.dtype, parsed)
	}

	_, err := tensor.ParseDataType("float16")
	assert.Error(t, err)
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      tensor.Shape
		want      tensor.Shape
		stretched bool
		wantErr   bool
	}{
		{tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false, false},
		{tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true, false},
		{tensor.Shape{2, 4, 5, 1}, tensor.Shape{2, 4, 5, 6}, tensor.Shape{2, 4, 5, 6}, true, false},
		{tensor.Shape{8, 1, 1}, tensor.Shape{2, 8, 4, 4}, tensor.Shape{2, 8, 4, 4}, true, false},
		{tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		got, stretched, err := tensor.BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.stretched, stretched, "%v vs %v", tt.a, tt.b)
	}
}

func TestShape_ExpandableTo(t *testing.T) {
	assert.True(t, tensor.Shape{2, 8, 1, 1}.ExpandableTo(tensor.Shape{2, 8, 5, 5}))
	assert.True(t, tensor.Shape{2, 8, 5, 1}.ExpandableTo(tensor.Shape{2, 8, 5, 5}))
	assert.False(t, tensor.Shape{2, 8, 3, 1}.ExpandableTo(tensor.Shape{2, 8, 5, 5}))
	assert.False(t, tensor.Shape{8, 1, 1}.ExpandableTo(tensor.Shape{2, 8, 5, 5}))
}

func TestConvOptions_OutputSize(t *testing.T) {
	tests := []struct {
		name      string
		opts      tensor.ConvOptions
		in, k     int
		conv, tpo int
	}{
		{"defaults", tensor.ConvOptions{}, 8, 3, 6, 10},
		{"same padding", tensor.ConvOptions{Padding: 1}, 8, 3, 8, 8},
		{"dilated same padding", tensor.ConvOptions{Padding: 2, Dilation: 2}, 8, 3, 8, 8},
		{"stride 2", tensor.ConvOptions{Stride: 2, Padding: 1}, 8, 3, 4, 15},
		{"stride 2 output padding", tensor.ConvOptions{Stride: 2, Padding: 1, OutputPadding: 1}, 4, 3, 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conv, tt.opts.ConvOutputSize(tt.in, tt.k))
			assert.Equal(t, tt.tpo, tt.opts.ConvTransposeOutputSize(tt.in, tt.k))
		})
	}
}

func TestConvOptions_Validate(t *testing.T) {
	assert.NoError(t, tensor.ConvOptions{Stride: 2, OutputPadding: 1}.Validate(3))
	assert.Error(t, tensor.ConvOptions{Stride: 2, OutputPadding: 2}.Validate(3))
	assert.Error(t, tensor.ConvOptions{Padding: -1}.Validate(3))
	assert.Error(t, tensor.ConvOptions{}.Validate(0))
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(9, 0, 1)
	assert.Equal(t, []float32{1, 9, 3, 4, 5, 6}, x.Data())

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)

	assert.Panics(t, func() { x.At(2, 0) })
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	ones := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	assert.Equal(t, []float32{1, 1, 1, 1}, ones.Data())

	full := tensor.Full[int64](tensor.Shape{3}, 7, backend)
	assert.Equal(t, []int64{7, 7, 7}, full.Data())

	rng := rand.New(rand.NewSource(1))
	n := tensor.Randn(tensor.Shape{4096}, 1, 0.02, rng, backend)
	var sum float64
	for _, v := range n.Data() {
		sum += float64(v)
	}
	assert.InDelta(t, 1.0, sum/4096, 0.005)

	u := tensor.Uniform(tensor.Shape{1000}, -0.5, 0.5, rng, backend)
	for _, v := range u.Data() {
		require.True(t, v >= -0.5 && v < 0.5, "value %v outside [-0.5, 0.5)", v)
	}
}

func TestUnsqueezeSqueeze(t *testing.T) {
	backend := cpu.New()
	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)

	assert.Equal(t, tensor.Shape{2, 3, 1}, x.Unsqueeze(-1).Shape())
	assert.Equal(t, tensor.Shape{1, 2, 3}, x.Unsqueeze(0).Shape())

	y := tensor.Zeros[float32](tensor.Shape{1, 3, 1, 4}, backend)
	assert.Equal(t, tensor.Shape{3, 4}, y.Squeeze().Shape())
}

func TestExpandAsAndChunk(t *testing.T) {
	backend := cpu.New()
	c := tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{1, 2, 1, 1}, backend)
	target := tensor.Zeros[float32](tensor.Shape{1, 2, 2, 2}, backend)

	e := c.ExpandAs(target)
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2}, e.Data())

	parts := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 4}, backend).Chunk(2, 1)
	require.Len(t, parts, 2)
	assert.Equal(t, []float32{3, 4}, parts[1].Data())
}

func TestCopyIsIndependent(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{2}, backend)

	shared := x.Clone()
	owned := x.Copy()
	x.Set(5, 0)

	assert.Equal(t, float32(5), shared.At(0))
	assert.Equal(t, float32(1), owned.At(0))
}

func TestParseDevice(t *testing.T) {
	d, err := tensor.ParseDevice("CPU")
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, d)

	_, err = tensor.ParseDevice("cuda")
	assert.Error(t, err)
}
