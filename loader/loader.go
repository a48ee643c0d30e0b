// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader imports and exports layer weights in the SafeTensors format.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/denoise/backend/cpu"
//	    "github.com/born-ml/denoise/loader"
//	    "github.com/born-ml/denoise/nn"
//	)
//
//	backend := cpu.New()
//	gate := nn.NewConditionedGatedConv2D(cfg, nn.ReLUFunc[*cpu.Backend], backend)
//
//	// Weights exported from PyTorch with safetensors.torch.save_file.
//	if err := loader.Import("gate.safetensors", gate, loader.NewTorchMapper(), backend.Device()); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/born-ml/denoise/internal/loader"
	"github.com/born-ml/denoise/nn"
	"github.com/born-ml/denoise/tensor"
)

// NameMapper maps foreign weight names onto state dict names.
type NameMapper = loader.NameMapper

// IdentityMapper leaves names unchanged.
type IdentityMapper = loader.IdentityMapper

// TorchMapper strips PyTorch wrapper prefixes such as "module.".
type TorchMapper = loader.TorchMapper

// NewTorchMapper creates a mapper for PyTorch state dicts.
func NewTorchMapper() *TorchMapper {
	return loader.NewTorchMapper()
}

// SafeTensorsReader reads SafeTensors files.
type SafeTensorsReader = loader.SafeTensorsReader

// NewSafeTensorsReader opens a SafeTensors file.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return loader.NewSafeTensorsReader(path)
}

// Import loads a SafeTensors file into model. Missing, extra or mismatched
// tensors are an error.
func Import(path string, model nn.Stateful, mapper NameMapper, device tensor.Device) error {
	return loader.Import(path, model, mapper, device)
}

// Export writes model's state dict to a SafeTensors file.
func Export(path string, model nn.Stateful, metadata map[string]string) error {
	return loader.Export(path, model, metadata)
}
