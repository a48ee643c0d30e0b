package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// ComputeStrides returns row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy broadcasting rules, aligning from the right.
// It returns the result shape and whether either side had to be stretched.
//
//	(3, 1) + (3, 5) → (3, 5), true
//	(2, 4, 5, 1) + (2, 4, 5, 6) → (2, 4, 5, 6), true
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	stretched := len(a) != len(b)

	for i := 0; i < n; i++ {
		ad, bd := dimFromRight(a, i), dimFromRight(b, i)
		switch {
		case ad == bd:
			out[n-1-i] = ad
		case ad == 1:
			out[n-1-i] = bd
			stretched = true
		case bd == 1:
			out[n-1-i] = ad
			stretched = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, n-1-i, ad, bd)
		}
	}
	return out, stretched, nil
}

func dimFromRight(s Shape, i int) int {
	if idx := len(s) - 1 - i; idx >= 0 {
		return s[idx]
	}
	return 1
}

// ExpandableTo reports whether s can be expanded to target under
// expand_as rules: same rank, each dim equal to the target's or 1.
func (s Shape) ExpandableTo(target Shape) bool {
	if len(s) != len(target) {
		return false
	}
	for i := range s {
		if s[i] != target[i] && s[i] != 1 {
			return false
		}
	}
	return true
}
