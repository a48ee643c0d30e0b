// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the gated convolution layers and the building blocks
// of the denoising networks.
//
// # Overview
//
// This package contains:
//   - Convolutions: Conv2D, ConvTranspose2D, Conv1D
//   - Gated convolutions: GatedConv, ConditionedGatedConv
//   - Blocks: ResidualBlock, GatedResidualBlock
//   - Normalization: BatchNorm2D, ConditionalBatchNorm2D
//   - Activations: ReLU, Sigmoid, Tanh, Identity and their function forms
//   - Utilities: Sequential, Parameter, state dicts and checkpoints
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/denoise/backend/cpu"
//	    "github.com/born-ml/denoise/nn"
//	    "github.com/born-ml/denoise/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    gate := nn.NewConditionedGatedConv2D(nn.GatedConvConfig{
//	        InChannels:        3,
//	        OutChannels:       16,
//	        KernelSize:        3,
//	        Options:           tensor.ConvOptions{Padding: 1},
//	        ConditionChannels: 1,
//	    }, nn.ReLUFunc[*cpu.Backend], backend)
//
//	    // noisy: [N, 3, H, W], iso: [N, 1, 1]
//	    features := gate.Forward(noisy, iso)
//	}
//
// # Gated convolutions
//
// A gated convolution runs two parallel convolutions with the same geometry
// and combines them as act(features) * sigmoid(gate). The conditioned variant
// adds a pointwise Conv1D projection of a [N, K, L] condition to each branch,
// broadcast over the spatial width. L must be 1 or equal to the output height.
//
// # State dicts
//
// Every layer exports its tensors under dotted names ("conv_gate.weight",
// "blocks.0.bn1.running_mean") compatible with SaveCheckpoint and
// LoadCheckpoint.
package nn
