package serialization

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Wrapped with context by the reader and writer.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrTensorNotFound     = errors.New("tensor not found")
	ErrClosed             = errors.New("file is closed")

	// ErrInvalidFile matches every *ValidationError via errors.Is.
	ErrInvalidFile = errors.New("invalid .born file")
)

// ValidationKind classifies a header validation failure.
type ValidationKind string

// Validation failure kinds.
const (
	KindTooManyTensors ValidationKind = "too_many_tensors"
	KindInvalidName    ValidationKind = "invalid_name"
	KindDuplicateName  ValidationKind = "duplicate_name"
	KindInvalidDType   ValidationKind = "invalid_dtype"
	KindInvalidShape   ValidationKind = "invalid_shape"
	KindSizeMismatch   ValidationKind = "size_mismatch"
	KindOutOfBounds    ValidationKind = "out_of_bounds"
	KindOverlap        ValidationKind = "overlap"
	KindTruncated      ValidationKind = "truncated"
)

// ValidationError reports a malformed header or data layout.
type ValidationError struct {
	Kind    ValidationKind
	Tensor  string // offending tensor, if any
	Other   string // second tensor of an overlap
	Details string
}

func invalid(kind ValidationKind, tensorName, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Tensor: tensorName, Details: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch {
	case e.Other != "":
		fmt.Fprintf(&b, ": tensors %q and %q", e.Tensor, e.Other)
	case e.Tensor != "":
		fmt.Fprintf(&b, ": tensor %q", e.Tensor)
	}
	b.WriteString(": ")
	b.WriteString(e.Details)
	return b.String()
}

// Is reports whether target is ErrInvalidFile.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFile
}
