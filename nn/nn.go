// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/tensor"
)

// Convolutions

// Conv2D is a 2D convolution with weight [out, in, k, k].
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a 2D convolution with Xavier initialization.
//
// Example:
//
//	conv := nn.NewConv2D(3, 16, 3, tensor.ConvOptions{Padding: 1}, true, backend)
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize int, opts tensor.ConvOptions, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, opts, useBias, backend)
}

// ConvTranspose2D is a 2D transposed convolution with weight [in, out, k, k].
type ConvTranspose2D[B tensor.Backend] = nn.ConvTranspose2D[B]

// NewConvTranspose2D creates a transposed convolution with Xavier
// initialization.
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize int, opts tensor.ConvOptions, useBias bool, backend B) *ConvTranspose2D[B] {
	return nn.NewConvTranspose2D(inChannels, outChannels, kernelSize, opts, useBias, backend)
}

// Conv1D is a 1D convolution with weight [out, in, k].
type Conv1D[B tensor.Backend] = nn.Conv1D[B]

// NewConv1D creates a 1D convolution with Xavier initialization.
func NewConv1D[B tensor.Backend](inChannels, outChannels, kernelSize int, opts tensor.ConvOptions, useBias bool, backend B) *Conv1D[B] {
	return nn.NewConv1D(inChannels, outChannels, kernelSize, opts, useBias, backend)
}

// Gated convolutions

// Activation is an element-wise function applied to the feature branch.
type Activation[B tensor.Backend] = nn.Activation[B]

// ReLUFunc applies max(0, x).
func ReLUFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.ReLUFunc(x)
}

// SigmoidFunc applies the logistic function.
func SigmoidFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.SigmoidFunc(x)
}

// TanhFunc applies the hyperbolic tangent.
func TanhFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.TanhFunc(x)
}

// IdentityFunc returns x unchanged.
func IdentityFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return nn.IdentityFunc(x)
}

// ActivationByName resolves "relu", "sigmoid", "tanh" or "identity".
func ActivationByName[B tensor.Backend](name string) (Activation[B], error) {
	return nn.ActivationByName[B](name)
}

// GLUFunc returns act(features) * sigmoid(gate).
func GLUFunc[B tensor.Backend](features, gate *tensor.Tensor[float32, B], act Activation[B]) *tensor.Tensor[float32, B] {
	return nn.GLUFunc(features, gate, act)
}

// GatedConvConfig describes the geometry of a gated convolution.
type GatedConvConfig = nn.GatedConvConfig

// GatedUnit is either gated convolution variant.
type GatedUnit[B tensor.Backend] = nn.GatedUnit[B]

// GatedConv is the unconditioned gated convolution. Its condition argument
// is ignored.
type GatedConv[B tensor.Backend] = nn.GatedConv[B]

// NewGatedConv2D creates an unconditioned gated convolution.
func NewGatedConv2D[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) *GatedConv[B] {
	return nn.NewGatedConv2D(cfg, act, backend)
}

// NewGatedConvTranspose2D creates an unconditioned gated transposed
// convolution.
func NewGatedConvTranspose2D[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) *GatedConv[B] {
	return nn.NewGatedConvTranspose2D(cfg, act, backend)
}

// ConditionedGatedConv is the gated convolution that adds projections of a
// [N, K, L] condition to both branches.
type ConditionedGatedConv[B tensor.Backend] = nn.ConditionedGatedConv[B]

// NewConditionedGatedConv2D creates a conditioned gated convolution.
func NewConditionedGatedConv2D[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) *ConditionedGatedConv[B] {
	return nn.NewConditionedGatedConv2D(cfg, act, backend)
}

// NewConditionedGatedConvTranspose2D creates a conditioned gated transposed
// convolution.
func NewConditionedGatedConvTranspose2D[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) *ConditionedGatedConv[B] {
	return nn.NewConditionedGatedConvTranspose2D(cfg, act, backend)
}

// NewGatedConvUnit picks the conditioned variant when cfg.ConditionChannels
// is positive.
func NewGatedConvUnit[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) GatedUnit[B] {
	return nn.NewGatedConvUnit(cfg, act, backend)
}

// NewGatedConvTransposeUnit is NewGatedConvUnit for transposed convolutions.
func NewGatedConvTransposeUnit[B tensor.Backend](cfg GatedConvConfig, act Activation[B], backend B) GatedUnit[B] {
	return nn.NewGatedConvTransposeUnit(cfg, act, backend)
}

// Residual blocks

// ResidualConfig describes a two-stage residual block.
type ResidualConfig = nn.ResidualConfig

// ResidualBlock is conv-bn-relu-conv-bn with an optional shortcut.
type ResidualBlock[B tensor.Backend] = nn.ResidualBlock[B]

// NewResidualBlock creates a residual block.
func NewResidualBlock[B tensor.Backend](cfg ResidualConfig, backend B) *ResidualBlock[B] {
	return nn.NewResidualBlock(cfg, backend)
}

// GatedResidualBlock is ResidualBlock built from gated convolutions.
type GatedResidualBlock[B tensor.Backend] = nn.GatedResidualBlock[B]

// NewGatedResidualBlock creates a gated residual block.
func NewGatedResidualBlock[B tensor.Backend](cfg ResidualConfig, act Activation[B], backend B) *GatedResidualBlock[B] {
	return nn.NewGatedResidualBlock(cfg, act, backend)
}

// Normalization

// BatchNorm2D normalizes [N, C, H, W] per channel.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch norm layer with eps 1e-5 and momentum 0.1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, affine bool, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, affine, backend)
}

// ConditionalBatchNorm2D is BatchNorm2D with a per-class scale and shift.
type ConditionalBatchNorm2D[B tensor.Backend] = nn.ConditionalBatchNorm2D[B]

// NewConditionalBatchNorm2D creates a class-conditional batch norm layer.
func NewConditionalBatchNorm2D[B tensor.Backend](numFeatures, numClasses int, backend B) *ConditionalBatchNorm2D[B] {
	return nn.NewConditionalBatchNorm2D(numFeatures, numClasses, backend)
}

// Embedding is a lookup table of vectors.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates an embedding initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// Activation modules

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU module.
func NewReLU[B tensor.Backend]() *ReLU[B] { return nn.NewReLU[B]() }

// Sigmoid applies the logistic function.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a Sigmoid module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] { return nn.NewSigmoid[B]() }

// Tanh applies the hyperbolic tangent.
type Tanh[B tensor.Backend] = nn.Tanh[B]

// NewTanh creates a Tanh module.
func NewTanh[B tensor.Backend]() *Tanh[B] { return nn.NewTanh[B]() }

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Checkpoints

// CheckpointMeta is the training metadata stored with a checkpoint.
type CheckpointMeta = nn.CheckpointMeta

// ErrNoModelEntry is returned when a checkpoint holds no "model." tensors.
var ErrNoModelEntry = nn.ErrNoModelEntry

// SaveCheckpoint writes model's state dict to a .born file.
func SaveCheckpoint(path string, model Stateful, meta CheckpointMeta) error {
	return nn.SaveCheckpoint(path, model, meta)
}

// LoadCheckpoint restores model from a .born file written by SaveCheckpoint.
func LoadCheckpoint[B tensor.Backend](path string, backend B, model Stateful) (CheckpointMeta, error) {
	return nn.LoadCheckpoint(path, backend, model)
}
