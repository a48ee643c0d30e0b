// Package loader imports and exports model weights in the SafeTensors format.
//
// SafeTensors is the interchange format used to bring weights trained
// elsewhere (for example a PyTorch state dict saved with
// safetensors.torch.save_file) into a .born checkpoint, and to hand .born
// weights back to other tools.
//
// Layout:
//
//	[8 bytes: header size, uint64 little-endian]
//	[header: JSON {name: {dtype, shape, data_offsets}, "__metadata__": {...}}]
//	[tensor data]
//
// F32, F16, BF16 and F64 tensors are read as float32. I64, I32 and U8
// tensors keep their type. Names are normalized by a NameMapper before they
// are matched against the model's state dict.
//
// Example:
//
//	model, _ := models.New(cfg, backend)
//	if err := loader.Import("denoiser.safetensors", model, loader.NewTorchMapper(), backend.Device()); err != nil {
//	    log.Fatal(err)
//	}
package loader
