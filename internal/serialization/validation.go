package serialization

import (
	"cmp"
	"regexp"
	"slices"

	"github.com/born-ml/denoise/internal/tensor"
)

// Resource limits applied to untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls how much of a header is checked on open.
type ValidationLevel int

const (
	// ValidationStrict checks names, sizes and the data layout.
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and sizes only.
	ValidationNormal
	// ValidationNone trusts the file.
	ValidationNone
)

// Tensor names are dotted state-dict paths such as
// "model.blocks.0.conv1.cond_gate.weight".
var tensorNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// ValidateTensorName accepts dotted state-dict paths only. Empty segments,
// path separators and control bytes are rejected.
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return invalid(KindInvalidName, name[:64]+"...", "length %d > max %d", len(name), MaxTensorNameLen)
	}
	if !tensorNamePattern.MatchString(name) {
		return invalid(KindInvalidName, name, "not a dotted state-dict path")
	}
	return nil
}

// ValidateTensorSize checks that a tensor's byte size matches its shape and
// dtype.
func ValidateTensorSize(t TensorMeta) error {
	dtype, err := tensor.ParseDataType(t.DType)
	if err != nil {
		return invalid(KindInvalidDType, t.Name, "%v", err)
	}
	shape := tensor.Shape(t.Shape)
	if err := shape.Validate(); err != nil {
		return invalid(KindInvalidShape, t.Name, "%v", err)
	}
	want := int64(shape.NumElements()) * int64(dtype.Size())
	if t.Size != want {
		return invalid(KindSizeMismatch, t.Name, "shape %v %s needs %d bytes, header says %d", shape, dtype, want, t.Size)
	}
	return nil
}

// ValidateTensorOffsets checks that every tensor lies inside the data
// section and that no two tensors share bytes.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return invalid(KindTooManyTensors, "", "got %d, max %d", len(tensors), MaxTensorCount)
	}
	for _, t := range tensors {
		if t.Offset < 0 || t.Size < 0 || t.Offset > dataSize-t.Size {
			return invalid(KindOutOfBounds, t.Name, "[%d, %d) outside data section of %d bytes", t.Offset, t.Offset+t.Size, dataSize)
		}
	}

	byOffset := slices.SortedFunc(slices.Values(tensors), func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	for i := 1; i < len(byOffset); i++ {
		prev, cur := byOffset[i-1], byOffset[i]
		if prev.Offset+prev.Size > cur.Offset {
			return &ValidationError{
				Kind:    KindOverlap,
				Tensor:  prev.Name,
				Other:   cur.Name,
				Details: "data regions overlap",
			}
		}
	}
	return nil
}

// ValidateHeader checks names and sizes unless level is ValidationNone, and
// the data layout at ValidationStrict.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Tensors) > MaxTensorCount {
		return invalid(KindTooManyTensors, "", "got %d, max %d", len(h.Tensors), MaxTensorCount)
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return invalid(KindDuplicateName, t.Name, "appears more than once")
		}
		seen[t.Name] = true
		if err := ValidateTensorSize(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}
