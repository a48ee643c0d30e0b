package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/denoise/internal/tensor"
)

// ProducerVersion is recorded in every header this package writes.
const ProducerVersion = "0.3.0"

// BornWriter writes state dictionaries in .born format.
type BornWriter struct {
	file   *os.File
	closed bool
}

// NewBornWriter creates a new .born file writer.
func NewBornWriter(path string) (*BornWriter, error) {
	//nolint:gosec // G304: path is provided by the caller by design of the CLI
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return &BornWriter{file: file}, nil
}

// WriteStateDict writes stateDict under the given header. Tensors, version,
// creation time and (if empty) ID are filled in by the writer.
func (w *BornWriter) WriteStateDict(stateDict map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return ErrClosed
	}
	return Write(w.file, stateDict, header)
}

// Close closes the writer and the underlying file.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Write encodes stateDict as a .born stream.
func Write(out io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	header.ProducerVersion = ProducerVersion
	header.CreatedAt = time.Now().UTC()
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data []byte
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]
		bytes := raw.Data()[:raw.ByteSize()]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(len(data)),
			Size:   int64(len(bytes)),
		})
		data = append(data, bytes...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	p := prefix{
		version:    FormatVersion,
		headerSize: uint64(len(headerJSON)),
		dataSize:   uint64(len(data)),
		checksum:   sectionChecksum(data),
	}
	if len(header.Metadata) > 0 {
		p.flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		p.flags |= FlagHasCheckpoint
	}

	padding := alignedOffset(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))

	for _, chunk := range [][]byte{p.encode(), headerJSON, make([]byte, padding), data} {
		if _, err := out.Write(chunk); err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}
	return nil
}
