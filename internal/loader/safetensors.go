package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/denoise/internal/tensor"
)

// maxHeaderSize bounds the JSON header of files we are willing to parse.
const maxHeaderSize = 100 * 1024 * 1024

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI64  SafeTensorsDType = "I64"
	SafeTensorsU8   SafeTensorsDType = "U8"
	SafeTensorsBool SafeTensorsDType = "BOOL"
)

// dtypeInfo is what the loader knows about a SafeTensors dtype.
type dtypeInfo struct {
	size   int
	native tensor.DataType
	widen  bool // converted to float32 on load
}

var dtypes = map[SafeTensorsDType]dtypeInfo{
	SafeTensorsF32:  {size: 4, native: tensor.Float32},
	SafeTensorsI32:  {size: 4, native: tensor.Int32},
	SafeTensorsI64:  {size: 8, native: tensor.Int64},
	SafeTensorsU8:   {size: 1, native: tensor.Uint8},
	SafeTensorsBool: {size: 1, native: tensor.Uint8},
	SafeTensorsF16:  {size: 2, native: tensor.Float32, widen: true},
	SafeTensorsBF16: {size: 2, native: tensor.Float32, widen: true},
	SafeTensorsF64:  {size: 8, native: tensor.Float32, widen: true},
}

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end) relative to the data section
}

// byteLen returns the size the shape and dtype require.
func (info SafeTensorInfo) byteLen() (int64, error) {
	dt, ok := dtypes[info.DType]
	if !ok {
		return 0, fmt.Errorf("unsupported dtype %q", info.DType)
	}
	n := int64(dt.size)
	for _, d := range info.Shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid shape %v", info.Shape)
		}
		n *= int64(d)
	}
	return n, nil
}

const metadataKey = "__metadata__"

// SafeTensorsHeader is the JSON header of a SafeTensors file. On disk it is
// a single object mapping tensor names to SafeTensorInfo, with the optional
// metadata under "__metadata__".
type SafeTensorsHeader struct {
	Metadata map[string]string
	Tensors  map[string]SafeTensorInfo
}

// UnmarshalJSON splits the flat object into metadata and tensors.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	h.Metadata = nil
	h.Tensors = make(map[string]SafeTensorInfo, len(entries))
	for key, value := range entries {
		if key == metadataKey {
			if err := json.Unmarshal(value, &h.Metadata); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// MarshalJSON writes the flat object.
func (h SafeTensorsHeader) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(h.Tensors)+1)
	for name, info := range h.Tensors {
		flat[name] = info
	}
	if len(h.Metadata) > 0 {
		flat[metadataKey] = h.Metadata
	}
	return json.Marshal(flat)
}

// validate checks every tensor against the dtype table and a data section
// of dataSize bytes.
func (h SafeTensorsHeader) validate(dataSize int64) error {
	for name, info := range h.Tensors {
		want, err := info.byteLen()
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end < start || end > dataSize {
			return fmt.Errorf("tensor %s: data offsets [%d, %d) outside data section of %d bytes", name, start, end, dataSize)
		}
		if end-start != want {
			return fmt.Errorf("tensor %s: %d bytes for shape %v %s, want %d", name, end-start, info.Shape, info.DType, want)
		}
	}
	return nil
}

// SafeTensorsReader reads SafeTensors files.
type SafeTensorsReader struct {
	file   *os.File
	header SafeTensorsHeader
	data   int64 // absolute offset of the data section
}

// NewSafeTensorsReader opens path and validates its header against the file
// size.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: weight files are user-supplied
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r := &SafeTensorsReader{file: file}
	if err := r.readHeader(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *SafeTensorsReader) readHeader() error {
	var size [8]byte
	if _, err := io.ReadFull(r.file, size[:]); err != nil {
		return fmt.Errorf("failed to read header size: %w", err)
	}
	n := binary.LittleEndian.Uint64(size[:])
	if n > maxHeaderSize {
		return fmt.Errorf("header of %d bytes exceeds %d", n, maxHeaderSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(buf, &r.header); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	r.data = int64(len(size)) + int64(n) //nolint:gosec // G115: bounded by maxHeaderSize
	return r.header.validate(info.Size() - r.data)
}

// Close closes the underlying file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the "__metadata__" map of the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns the tensor names in sorted order.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads the raw on-disk bytes of a tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.data+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data for %s: %w", name, err)
	}
	return data, nil
}

// LoadTensor reads a tensor. Floating point tensors of any width become
// float32.
func (r *SafeTensorsReader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(info.Shape)
	dt := dtypes[info.DType]
	if !dt.widen {
		return tensor.NewRawFromBytes(data, shape, dt.native, device)
	}
	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	widenFloats(raw.AsFloat32(), data, info.DType)
	return raw, nil
}

func widenFloats(dst []float32, src []byte, dtype SafeTensorsDType) {
	for i := range dst {
		switch dtype {
		case SafeTensorsF16:
			dst[i] = float16ToFloat32(binary.LittleEndian.Uint16(src[2*i:]))
		case SafeTensorsBF16:
			dst[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(src[2*i:])) << 16)
		case SafeTensorsF64:
			dst[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(src[8*i:])))
		}
	}
}

// float16ToFloat32 converts an IEEE 754 half precision value.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := int32(h>>10) & 0x1F
	mant := uint32(h & 0x3FF)

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: shift until the implicit bit appears.
		e := int32(1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		return math.Float32frombits(sign | uint32(e+127-15)<<23 | mant<<13)
	case 0x1F:
		return math.Float32frombits(sign | 0x7F800000 | mant<<13)
	default:
		return math.Float32frombits(sign | uint32(exp+127-15)<<23 | mant<<13)
	}
}

// WriteSafeTensors writes stateDict to w in sorted name order.
func WriteSafeTensors(w io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := SafeTensorsHeader{Metadata: metadata, Tensors: make(map[string]SafeTensorInfo, len(names))}
	var offset int64
	for _, name := range names {
		raw := stateDict[name]
		dtype, err := safeTensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(raw.ByteSize())
		header.Tensors[name] = SafeTensorInfo{
			DType:       dtype,
			Shape:       append([]int(nil), raw.Shape()...),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// Pad with spaces so the data section starts 8-byte aligned.
	for len(headerJSON)%8 != 0 {
		headerJSON = append(headerJSON, ' ')
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		raw := stateDict[name]
		if _, err := w.Write(raw.Data()[:raw.ByteSize()]); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

func safeTensorsDType(dt tensor.DataType) (SafeTensorsDType, error) {
	switch dt {
	case tensor.Float32:
		return SafeTensorsF32, nil
	case tensor.Int32:
		return SafeTensorsI32, nil
	case tensor.Int64:
		return SafeTensorsI64, nil
	case tensor.Uint8:
		return SafeTensorsU8, nil
	default:
		return "", fmt.Errorf("dtype %s has no SafeTensors equivalent", dt)
	}
}
