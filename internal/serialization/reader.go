package serialization

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/denoise/internal/tensor"
)

// BornReader gives random access to the tensors of a .born file. The header
// is parsed and validated when the reader is opened. Tensor data is read on
// demand.
type BornReader struct {
	file   *os.File
	prefix prefix
	header Header
	byName map[string]int // index into header.Tensors
	data   int64          // absolute offset of the data section
	closed bool
}

// ReaderOptions configures NewBornReaderWithOptions.
type ReaderOptions struct {
	SkipChecksumValidation bool
	ValidationLevel        ValidationLevel
}

// NewBornReader opens path with strict validation and checksum verification.
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewBornReaderWithOptions opens path with custom options.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	//nolint:gosec // G304: checkpoint path is user input
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r := &BornReader{file: file}
	if err := r.open(opts); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *BornReader) open(opts ReaderOptions) error {
	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}
	p, err := decodePrefix(buf)
	if err != nil {
		return err
	}
	r.prefix = p

	headerJSON := make([]byte, p.headerSize)
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	r.data = alignedOffset(int64(p.headerSize))
	available := info.Size() - r.data
	//nolint:gosec // G115: compared against the real file size
	if dataSize := int64(p.dataSize); dataSize < 0 || dataSize > available {
		return invalid(KindTruncated, "", "header declares %d data bytes, file holds %d", p.dataSize, max(available, 0))
	}

	if err := ValidateHeader(&r.header, r.dataSize(), opts.ValidationLevel); err != nil {
		return err
	}
	r.byName = make(map[string]int, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		r.byName[t.Name] = i
	}

	if opts.SkipChecksumValidation {
		return nil
	}
	return verifySection(r.file, r.data, r.dataSize(), p.checksum)
}

//nolint:gosec // G115: checked against the file size on open
func (r *BornReader) dataSize() int64 { return int64(r.prefix.dataSize) }

// Header returns the parsed JSON header.
func (r *BornReader) Header() Header { return r.header }

// Metadata returns the free-form metadata map.
func (r *BornReader) Metadata() map[string]string { return r.header.Metadata }

// TensorNames lists tensor names in file order, which is sorted.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns the header entry of a named tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return &r.header.Tensors[i], nil
}

// LoadTensor reads one tensor onto device.
func (r *BornReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	dtype, err := tensor.ParseDataType(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	buf := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(buf, r.data+meta.Offset); err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	raw, err := tensor.NewRawFromBytes(buf, tensor.Shape(meta.Shape), dtype, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict loads every tensor.
func (r *BornReader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	out := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, t := range r.header.Tensors {
		raw, err := r.LoadTensor(t.Name, device)
		if err != nil {
			return nil, err
		}
		out[t.Name] = raw
	}
	return out, nil
}

// Close releases the file. Closing twice is a no-op.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
