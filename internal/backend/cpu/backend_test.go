package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/denoise/internal/parallel"
	"github.com/born-ml/denoise/internal/tensor"
)

func TestCPUBackend_Metadata(t *testing.T) {
	backend := New()
	if backend.Name() != "CPU" {
		t.Errorf("expected name CPU, got %s", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("expected device CPU, got %v", backend.Device())
	}
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := raw(t, tensor.Shape{2, 2}, 10, 20, 30, 40)

	c := backend.Add(a, b)

	assert.Equal(t, []float32{11, 22, 33, 44}, c.AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 4}, a.AsFloat32(), "operands must not be modified")
}

func TestAdd_Broadcast(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 1}, 1, 2)
	b := raw(t, tensor.Shape{1, 3}, 10, 20, 30)

	c := backend.Add(a, b)

	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, []float32{11, 21, 31, 12, 22, 32}, c.AsFloat32())
}

func TestMul_ChannelBroadcast(t *testing.T) {
	backend := New()
	x := filled(t, tensor.Shape{2, 2, 1, 2}, 1)
	scale := raw(t, tensor.Shape{1, 2, 1, 1}, 3, 5)

	y := backend.Mul(x, scale)

	assert.Equal(t, []float32{3, 3, 5, 5, 3, 3, 5, 5}, y.AsFloat32())
}

func TestAdd_Int64(t *testing.T) {
	backend := New()
	a, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
	b, _ := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
	a.AsInt64()[0] = 41
	b.AsInt64()[0] = 1

	assert.Equal(t, []int64{42}, backend.Add(a, b).AsInt64())
}

func TestAdd_Incompatible(t *testing.T) {
	backend := New()
	assert.Panics(t, func() {
		backend.Add(filled(t, tensor.Shape{3, 4}, 1), filled(t, tensor.Shape{3, 5}, 1))
	})
}

func TestReshape_SharesData(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	b := backend.Reshape(a, tensor.Shape{3, 2})

	assert.Equal(t, tensor.Shape{3, 2}, b.Shape())
	assert.Equal(t, a.AsFloat32(), b.AsFloat32())
	assert.Panics(t, func() { backend.Reshape(a, tensor.Shape{4, 2}) })
}

func TestExpand(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2, 1}, 1, 2)

	y := backend.Expand(x, tensor.Shape{2, 2, 3})

	assert.Equal(t, tensor.Shape{2, 2, 3}, y.Shape())
	assert.Equal(t, []float32{1, 1, 1, 2, 2, 2, 1, 1, 1, 2, 2, 2}, y.AsFloat32())
	assert.Panics(t, func() { backend.Expand(x, tensor.Shape{1, 3, 3}) })
}

func TestChunk(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 4}, 1, 2, 3, 4, 5, 6, 7, 8)

	parts := backend.Chunk(x, 2, 1)

	require.Len(t, parts, 2)
	assert.Equal(t, tensor.Shape{2, 2}, parts[0].Shape())
	assert.Equal(t, []float32{1, 2, 5, 6}, parts[0].AsFloat32())
	assert.Equal(t, []float32{3, 4, 7, 8}, parts[1].AsFloat32())

	assert.Panics(t, func() { backend.Chunk(x, 3, 1) })
}

func TestChannelMomentsAndBatchNorm(t *testing.T) {
	backend := NewWithConfig(parallel.WithWorkers(2))

	// Channel 0 holds {1,3,5,7}; channel 1 holds {2,2,2,2}.
	x := raw(t, tensor.Shape{2, 2, 1, 2},
		1, 3, 2, 2,
		5, 7, 2, 2)

	mean, variance := backend.ChannelMoments(x)
	assert.InDeltaSlice(t, []float32{4, 2}, mean.AsFloat32(), 1e-6)
	assert.InDeltaSlice(t, []float32{5, 0}, variance.AsFloat32(), 1e-6)

	y := backend.BatchNorm2D(x, mean, variance, nil, nil, 1e-5)
	inv := float32(1 / math.Sqrt(5+1e-5))
	assert.InDeltaSlice(t, []float32{
		-3 * inv, -1 * inv, 0, 0,
		1 * inv, 3 * inv, 0, 0,
	}, y.AsFloat32(), 1e-5)

	weight := raw(t, tensor.Shape{2}, 2, 1)
	bias := raw(t, tensor.Shape{2}, 0, 10)
	z := backend.BatchNorm2D(x, mean, variance, weight, bias, 1e-5)
	assert.InDelta(t, -6*inv, z.AsFloat32()[0], 1e-5)
	assert.InDelta(t, 10, z.AsFloat32()[2], 1e-5)
}

func TestActivations(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{4}, -2, 0, 1, -1000)

	assert.Equal(t, []float32{0, 0, 1, 0}, backend.ReLU(x).AsFloat32())

	s := backend.Sigmoid(x).AsFloat32()
	assert.InDelta(t, 0.119203, s[0], 1e-5)
	assert.InDelta(t, 0.5, s[1], 1e-7)
	assert.InDelta(t, 0.731059, s[2], 1e-5)
	assert.False(t, math.IsNaN(float64(s[3])))
	assert.InDelta(t, 0, s[3], 1e-7)

	th := backend.Tanh(x).AsFloat32()
	assert.InDelta(t, math.Tanh(-2), th[0], 1e-6)
	assert.InDelta(t, -1, th[3], 1e-7)
}

func TestEmbedding(t *testing.T) {
	backend := New()
	weight := raw(t, tensor.Shape{3, 2}, 0, 1, 10, 11, 20, 21)
	idx, _ := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	copy(idx.AsInt32(), []int32{2, 0})

	out := backend.Embedding(weight, idx)

	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{20, 21, 0, 1}, out.AsFloat32())

	idx.AsInt32()[0] = 3
	assert.Panics(t, func() { backend.Embedding(weight, idx) })
}
