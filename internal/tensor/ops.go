package tensor

import "fmt"

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	x := tensor.Ones[float32](Shape{2, 8, 4, 4}, backend)
//	bias := tensor.Ones[float32](Shape{1, 8, 1, 1}, backend)
//	y := x.Add(bias) // Shape: [2, 8, 4, 4]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Expand broadcasts size-1 dimensions to newShape, materializing the result.
func (t *Tensor[T, B]) Expand(newShape Shape) *Tensor[T, B] {
	return New[T, B](t.backend.Expand(t.raw, newShape), t.backend)
}

// ExpandAs expands t to other's shape.
func (t *Tensor[T, B]) ExpandAs(other *Tensor[T, B]) *Tensor[T, B] {
	return t.Expand(other.Shape())
}

// Chunk splits the tensor into n equal parts along dim.
func (t *Tensor[T, B]) Chunk(n, dim int) []*Tensor[T, B] {
	parts := t.backend.Chunk(t.raw, n, dim)
	out := make([]*Tensor[T, B], len(parts))
	for i, p := range parts {
		out[i] = New[T, B](p, t.backend)
	}
	return out
}

// Unsqueeze inserts a size-1 dimension at dim. Negative dims count from the end.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dim %d out of range for rank %d", dim, len(shape)))
	}
	newShape := make([]int, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return t.Reshape(newShape...)
}

// Squeeze removes every size-1 dimension.
func (t *Tensor[T, B]) Squeeze() *Tensor[T, B] {
	newShape := make([]int, 0, len(t.Shape()))
	for _, d := range t.Shape() {
		if d != 1 {
			newShape = append(newShape, d)
		}
	}
	return t.Reshape(newShape...)
}

// ReLU applies max(0, x).
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// Sigmoid applies 1 / (1 + exp(-x)).
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Tanh applies the hyperbolic tangent.
func (t *Tensor[T, B]) Tanh() *Tensor[T, B] {
	return New[T, B](t.backend.Tanh(t.raw), t.backend)
}

// Conv2D convolves t [N, C_in, H, W] with weight [C_out, C_in, kH, kW].
func (t *Tensor[T, B]) Conv2D(weight *Tensor[T, B], opts ConvOptions) *Tensor[T, B] {
	return New[T, B](t.backend.Conv2D(t.raw, weight.raw, opts), t.backend)
}

// ConvTranspose2D applies a transposed convolution with weight [C_in, C_out, kH, kW].
func (t *Tensor[T, B]) ConvTranspose2D(weight *Tensor[T, B], opts ConvOptions) *Tensor[T, B] {
	return New[T, B](t.backend.ConvTranspose2D(t.raw, weight.raw, opts), t.backend)
}

// Conv1D convolves t [N, C_in, L] with weight [C_out, C_in, k].
func (t *Tensor[T, B]) Conv1D(weight *Tensor[T, B], opts ConvOptions) *Tensor[T, B] {
	return New[T, B](t.backend.Conv1D(t.raw, weight.raw, opts), t.backend)
}
