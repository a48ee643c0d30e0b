package serialization

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // v2: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .born format.
const (
	FlagHasMetadata   uint32 = 1 << 2 // custom metadata included
	FlagHasCheckpoint uint32 = 1 << 3 // checkpoint metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion   int               `json:"format_version"`
	ProducerVersion string            `json:"producer_version"`     // Version of the tool that wrote the file
	ID              string            `json:"id"`                   // Random identifier assigned at write time
	ModelType       string            `json:"model_type"`           // Registered architecture name
	CreatedAt       time.Time         `json:"created_at"`           // When the file was created
	Tensors         []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata        map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta  *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state at save time (optional)
}

// CheckpointMeta records where in training a checkpoint was taken.
type CheckpointMeta struct {
	Epoch        int            `json:"epoch"`
	Step         int64          `json:"step"`
	BestLoss     float64        `json:"best_loss"`
	TrainingMeta map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "blocks.0.conv1.conv_gate.weight")
	DType  string `json:"dtype"`  // Data type (e.g., "float32")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Byte offset from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// alignedOffset returns where the data section starts for a JSON header of
// the given size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}

// prefix is the fixed block at offset 0, laid out as in the package doc.
type prefix struct {
	version    uint32
	flags      uint32
	headerSize uint64
	dataSize   uint64
	checksum   [ChecksumSize]byte
}

func (p prefix) encode() []byte {
	buf := make([]byte, FixedHeaderSize)
	le := binary.LittleEndian
	copy(buf, MagicBytes)
	le.PutUint32(buf[0x04:], p.version)
	le.PutUint32(buf[0x08:], p.flags)
	le.PutUint64(buf[0x10:], p.headerSize)
	le.PutUint64(buf[0x18:], p.dataSize)
	copy(buf[ChecksumOffset:], p.checksum[:])
	return buf
}

func decodePrefix(buf []byte) (prefix, error) {
	if len(buf) < FixedHeaderSize || string(buf[:len(MagicBytes)]) != MagicBytes {
		return prefix{}, ErrInvalidMagic
	}
	le := binary.LittleEndian
	p := prefix{
		version:    le.Uint32(buf[0x04:]),
		flags:      le.Uint32(buf[0x08:]),
		headerSize: le.Uint64(buf[0x10:]),
		dataSize:   le.Uint64(buf[0x18:]),
	}
	copy(p.checksum[:], buf[ChecksumOffset:])
	if p.version != FormatVersion {
		return prefix{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, p.version, FormatVersion)
	}
	if p.headerSize > MaxHeaderSize {
		return prefix{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, p.headerSize)
	}
	return p, nil
}
