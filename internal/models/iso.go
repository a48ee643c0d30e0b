package models

import (
	"fmt"
	"math"

	"github.com/born-ml/denoise/internal/tensor"
)

// isoValues returns one ISO per sample from a [N, 1] or [N] tensor.
func isoValues[B tensor.Backend](iso *tensor.Tensor[float32, B]) []float32 {
	shape := iso.Shape()
	if len(shape) == 0 || len(shape) > 2 || shape.NumElements() != shape[0] {
		panic(fmt.Sprintf("models: iso must be [N, 1] or [N], got %v", shape))
	}
	return iso.Data()
}

// isoCondition normalizes ISO values into a [N, 1, 1] conditioning sequence.
func isoCondition[B tensor.Backend](iso *tensor.Tensor[float32, B], scale float32, backend B) *tensor.Tensor[float32, B] {
	values := isoValues(iso)
	c := tensor.Zeros[float32](tensor.Shape{len(values), 1, 1}, backend)
	data := c.Data()
	for i, v := range values {
		data[i] = v / scale
	}
	return c
}

// NearestISOClass returns the index of the level closest to iso. Ties go to
// the lower level.
func NearestISOClass(iso float64, levels []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, level := range levels {
		if d := math.Abs(iso - level); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// isoClasses maps ISO values to [N] class indices.
func isoClasses[B tensor.Backend](iso *tensor.Tensor[float32, B], levels []float64, backend B) *tensor.Tensor[int32, B] {
	values := isoValues(iso)
	classes := tensor.Zeros[int32](tensor.Shape{len(values)}, backend)
	data := classes.Data()
	for i, v := range values {
		data[i] = int32(NearestISOClass(float64(v), levels)) //nolint:gosec // bounded by len(levels)
	}
	return classes
}
