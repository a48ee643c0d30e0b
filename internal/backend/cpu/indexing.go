package cpu

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Embedding gathers rows of weight [num, dim] for int32 indices of any shape.
// The result has shape indices.Shape() + [dim]. Out-of-range indices panic.
func (cpu *CPUBackend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	if indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: indices must have dtype int32, got %s", indices.DType()))
	}
	ws := weight.Shape()
	if len(ws) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D [num, dim], got %v", ws))
	}
	num, dim := ws[0], ws[1]

	outShape := append(indices.Shape().Clone(), dim)
	out := tensor.MustRaw(outShape, tensor.Float32, cpu.device)
	table, dst := weight.AsFloat32(), out.AsFloat32()

	for i, idx := range indices.AsInt32() {
		if idx < 0 || int(idx) >= num {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, num))
		}
		copy(dst[i*dim:(i+1)*dim], table[int(idx)*dim:(int(idx)+1)*dim])
	}
	return out
}
