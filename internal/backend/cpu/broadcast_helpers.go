package cpu

import (
	"github.com/born-ml/denoise/internal/tensor"
)

// computeBroadcastStridesForShape returns strides that walk inShape while
// iterating outShape: padded and size-1 dimensions get stride 0.
func computeBroadcastStridesForShape(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	orig := inShape.ComputeStrides()

	for i := range outShape {
		inIdx := i - offset
		if inIdx < 0 || inShape[inIdx] == 1 {
			continue
		}
		strides[i] = orig[inIdx]
	}
	return strides
}

// computeFlatIndex maps a flat output index to the flat source index under
// the given broadcast strides.
func computeFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for i, s := range outStrides {
		flat += (outIdx / s) * inStrides[i]
		outIdx %= s
	}
	return flat
}
