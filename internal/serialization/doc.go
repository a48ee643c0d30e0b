// Package serialization implements the .born checkpoint format.
//
//	Format Structure:
//	  0x00  [4 bytes: Magic "BORN"]
//	  0x04  [4 bytes: Version = 2 (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: Reserved]
//	  0x10  [8 bytes: JSON header size (uint64 LE)]
//	  0x18  [8 bytes: Data section size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [JSON header]
//	        [zero padding to a 64-byte boundary]
//	        [Tensor data: raw little-endian bytes, in header order]
//
// Tensors are written in sorted name order so that identical state
// dictionaries produce identical data sections and checksums.
//
// Readers validate untrusted files before touching tensor data. Malformed
// headers produce a *ValidationError, which matches ErrInvalidFile.
//
// Example usage:
//
//	w, err := serialization.NewBornWriter("model_best.born")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	err = w.WriteStateDict(model.StateDict(), serialization.Header{ModelType: "GatedDenoiser"})
//
//	r, err := serialization.NewBornReader("model_best.born")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	stateDict, err := r.ReadStateDict(tensor.CPU)
package serialization
