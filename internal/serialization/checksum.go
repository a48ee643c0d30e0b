package serialization

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// sectionChecksum is the digest stored in the fixed header: the SHA-256 of
// the data section only, so the JSON header can be inspected without hashing
// every tensor.
func sectionChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// verifySection streams [off, off+size) of r through SHA-256 and compares it
// with want.
func verifySection(r io.ReaderAt, off, size int64, want [ChecksumSize]byte) error {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r, off, size)); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	var got [ChecksumSize]byte
	h.Sum(got[:0])
	if got != want {
		return fmt.Errorf("%w: stored %x, computed %x", ErrChecksumMismatch, want[:4], got[:4])
	}
	return nil
}
