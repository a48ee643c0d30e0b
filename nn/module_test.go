// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/denoise/backend/cpu"
	"github.com/born-ml/denoise/nn"
	"github.com/born-ml/denoise/tensor"
)

// TestModuleInterface verifies that concrete types implement Module.
func TestModuleInterface(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name   string
		module nn.Module[*cpu.Backend]
	}{
		{name: "Conv2D", module: nn.NewConv2D(3, 4, 3, tensor.ConvOptions{Padding: 1}, true, backend)},
		{name: "BatchNorm2D", module: nn.NewBatchNorm2D(3, true, backend)},
		{name: "ReLU", module: nn.NewReLU[*cpu.Backend]()},
		{
			name: "Sequential",
			module: nn.NewSequential[*cpu.Backend](
				nn.NewConv2D(3, 3, 1, tensor.ConvOptions{}, false, backend),
				nn.NewTanh[*cpu.Backend](),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tensor.Randn(tensor.Shape{2, 3, 4, 4}, 0, 1, nil, backend)
			output := tt.module.Forward(input)
			if output.Shape()[0] != 2 || output.Shape()[2] != 4 {
				t.Errorf("unexpected output shape %v", output.Shape())
			}
			_ = tt.module.Parameters()
		})
	}
}

// TestConditionalModuleInterface verifies the gated layers and blocks
// implement ConditionalModule.
func TestConditionalModuleInterface(t *testing.T) {
	backend := cpu.New()
	cfg := nn.GatedConvConfig{
		InChannels:        3,
		OutChannels:       4,
		KernelSize:        3,
		Options:           tensor.ConvOptions{Padding: 1},
		ConditionChannels: 2,
	}

	modules := map[string]nn.ConditionalModule[*cpu.Backend]{
		"ConditionedGatedConv": nn.NewConditionedGatedConv2D(cfg, nn.ReLUFunc[*cpu.Backend], backend),
		"GatedResidualBlock": nn.NewGatedResidualBlock(nn.ResidualConfig{
			InChannels:        3,
			OutChannels:       4,
			KernelSize:        3,
			Padding:           1,
			Residual:          true,
			ConditionChannels: 2,
		}, nn.TanhFunc[*cpu.Backend], backend),
	}

	x := tensor.Randn(tensor.Shape{2, 3, 4, 4}, 0, 1, nil, backend)
	c := tensor.Randn(tensor.Shape{2, 2, 1}, 0, 1, nil, backend)
	for name, m := range modules {
		t.Run(name, func(t *testing.T) {
			out := m.Forward(x, c)
			if !out.Shape().Equal(tensor.Shape{2, 4, 4, 4}) {
				t.Errorf("shape = %v, want [2 4 4 4]", out.Shape())
			}
		})
	}
}

// TestCheckpointRoundTrip saves and restores a gated layer through the
// public API.
func TestCheckpointRoundTrip(t *testing.T) {
	backend := cpu.New()
	cfg := nn.GatedConvConfig{InChannels: 1, OutChannels: 2, KernelSize: 3, Options: tensor.ConvOptions{Padding: 1}}
	src := nn.NewGatedConv2D(cfg, nn.IdentityFunc[*cpu.Backend], backend)
	dst := nn.NewGatedConv2D(cfg, nn.IdentityFunc[*cpu.Backend], backend)

	path := filepath.Join(t.TempDir(), "gate.born")
	if err := nn.SaveCheckpoint(path, src, nn.CheckpointMeta{ModelType: "GatedConv"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	meta, err := nn.LoadCheckpoint(path, backend, dst)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if meta.ModelType != "GatedConv" {
		t.Errorf("ModelType = %q", meta.ModelType)
	}

	x := tensor.Randn(tensor.Shape{1, 1, 5, 5}, 0, 1, nil, backend)
	a, b := src.Forward(x, nil).Data(), dst.Forward(x, nil).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("element %d differs after reload: %v vs %v", i, a[i], b[i])
		}
	}
	if nn.CountParameters(src.Parameters()) != nn.CountParameters(dst.Parameters()) {
		t.Error("parameter counts differ")
	}
}
