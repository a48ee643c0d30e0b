package cpu

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Reshape returns a view of t with a new shape. The data is shared.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	out, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return out
}

// Expand materializes x broadcast to newShape. Every dimension of x, aligned
// from the right, must equal the target or be 1.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()
	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v", newShape, xShape))
	}
	offset := len(newShape) - len(xShape)
	for i, d := range xShape {
		if d != 1 && d != newShape[offset+i] {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, d, newShape[offset+i]))
		}
	}

	result := tensor.MustRaw(newShape, x.DType(), cpu.device)
	outStrides := newShape.ComputeStrides()
	inStrides := computeBroadcastStridesForShape(xShape, newShape)

	switch x.DType() {
	case tensor.Float32:
		gatherBroadcast(result.AsFloat32(), x.AsFloat32(), outStrides, inStrides)
	case tensor.Int32:
		gatherBroadcast(result.AsInt32(), x.AsInt32(), outStrides, inStrides)
	case tensor.Int64:
		gatherBroadcast(result.AsInt64(), x.AsInt64(), outStrides, inStrides)
	case tensor.Uint8:
		gatherBroadcast(result.AsUint8(), x.AsUint8(), outStrides, inStrides)
	default:
		panic(fmt.Sprintf("expand: unsupported dtype %s", x.DType()))
	}
	return result
}

func gatherBroadcast[T tensor.DType](dst, src []T, outStrides, inStrides []int) {
	for i := range dst {
		dst[i] = src[computeFlatIndex(i, outStrides, inStrides)]
	}
}

// Chunk splits x into n equal parts along dim. The size of dim must be
// divisible by n.
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	if n <= 0 {
		panic(fmt.Sprintf("chunk: n must be positive, got %d", n))
	}
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("chunk: dimension %d out of range for %dD tensor", dim, len(shape)))
	}
	if shape[dim]%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d size %d not divisible by %d", dim, shape[dim], n))
	}

	chunkShape := shape.Clone()
	chunkShape[dim] = shape[dim] / n

	// outer: product of dims before dim; inner: bytes in one slab of the chunk.
	outer := 1
	for _, d := range shape[:dim] {
		outer *= d
	}
	elem := x.DType().Size()
	inner := chunkShape.NumElements() / outer * elem
	src := x.Data()

	results := make([]*tensor.RawTensor, n)
	for i := range results {
		r := tensor.MustRaw(chunkShape, x.DType(), cpu.device)
		dst := r.Data()
		for o := 0; o < outer; o++ {
			srcOff := (o*n + i) * inner
			copy(dst[o*inner:(o+1)*inner], src[srcOff:srcOff+inner])
		}
		results[i] = r
	}
	return results
}
