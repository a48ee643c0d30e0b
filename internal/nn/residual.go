package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// ResidualConfig describes a residual block.
//
// Stage i of the block convolves with dilation Dilation[i] and padding
// Padding*Dilation[i]. Zero dilations are read as 1.
type ResidualConfig struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Padding     int
	Dilation    [2]int
	Residual    bool

	// Gated blocks only.
	ConditionChannels int
}

func (cfg ResidualConfig) normalized() ResidualConfig {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	for i, d := range cfg.Dilation {
		if d == 0 {
			cfg.Dilation[i] = 1
		}
	}
	return cfg
}

func (cfg ResidualConfig) stage(i int) tensor.ConvOptions {
	return tensor.ConvOptions{
		Stride:   cfg.Stride,
		Padding:  cfg.Padding * cfg.Dilation[i],
		Dilation: cfg.Dilation[i],
	}
}

// needsDownsample reports whether the shortcut needs a projection.
func (cfg ResidualConfig) needsDownsample() bool {
	return cfg.Stride != 1 || cfg.InChannels != cfg.OutChannels
}

// newDownsample builds the 1x1 projection that maps the block input to the
// main path's output shape. The main path applies the stride in both stages,
// so the projection strides by Stride².
func newDownsample[B tensor.Backend](cfg ResidualConfig, backend B) *Sequential[B] {
	return NewSequential[B](
		NewConv2D(cfg.InChannels, cfg.OutChannels, 1, tensor.ConvOptions{Stride: cfg.Stride * cfg.Stride}, true, backend),
		NewBatchNorm2D(cfg.OutChannels, true, backend),
	)
}

// ResidualBlock is two convolution + batch norm stages with an optional
// shortcut:
//
//	out = relu(bn1(conv1(x)))
//	out = bn2(conv2(out))
//	if residual { out += downsample(x) }   // or x when no projection is needed
//	out = relu(out)
type ResidualBlock[B tensor.Backend] struct {
	cfg        ResidualConfig
	conv1      *Conv2D[B]
	bn1        *BatchNorm2D[B]
	conv2      *Conv2D[B]
	bn2        *BatchNorm2D[B]
	downsample *Sequential[B] // nil when the shapes already match
}

// NewResidualBlock creates a residual block.
func NewResidualBlock[B tensor.Backend](cfg ResidualConfig, backend B) *ResidualBlock[B] {
	cfg = cfg.normalized()
	b := &ResidualBlock[B]{
		cfg:   cfg,
		conv1: NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.stage(0), true, backend),
		bn1:   NewBatchNorm2D(cfg.OutChannels, true, backend),
		conv2: NewConv2D(cfg.OutChannels, cfg.OutChannels, cfg.KernelSize, cfg.stage(1), true, backend),
		bn2:   NewBatchNorm2D(cfg.OutChannels, true, backend),
	}
	if cfg.needsDownsample() {
		b.downsample = newDownsample(cfg, backend)
	}
	return b
}

// Forward runs the block on x [N, C_in, H, W].
func (b *ResidualBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.bn1.Forward(b.conv1.Forward(x)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out))
	if b.cfg.Residual {
		out = addShortcut(out, x, b.downsample)
	}
	return out.ReLU()
}

func addShortcut[B tensor.Backend](out, x *tensor.Tensor[float32, B], downsample *Sequential[B]) *tensor.Tensor[float32, B] {
	shortcut := x
	if downsample != nil {
		shortcut = downsample.Forward(x)
	}
	if !shortcut.Shape().Equal(out.Shape()) {
		panic(fmt.Sprintf("residual: shortcut %v does not match output %v", shortcut.Shape(), out.Shape()))
	}
	return out.Add(shortcut)
}

// HasDownsample reports whether the block owns a shortcut projection.
func (b *ResidualBlock[B]) HasDownsample() bool { return b.downsample != nil }

// Train propagates the training flag to the batch norms.
func (b *ResidualBlock[B]) Train(training bool) {
	b.bn1.Train(training)
	b.bn2.Train(training)
	if b.downsample != nil {
		b.downsample.Train(training)
	}
}

// Parameters returns all parameters of the block.
func (b *ResidualBlock[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, b.conv1.Parameters()...)
	params = append(params, b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

// StateDict returns conv1, bn1, conv2, bn2 and downsample state.
func (b *ResidualBlock[B]) StateDict() map[string]*tensor.RawTensor {
	return ChildrenState(b.children())
}

// LoadStateDict restores every child.
func (b *ResidualBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadChildren(b.children(), stateDict)
}

func (b *ResidualBlock[B]) children() map[string]Stateful {
	c := map[string]Stateful{"conv1": b.conv1, "bn1": b.bn1, "conv2": b.conv2, "bn2": b.bn2}
	if b.downsample != nil {
		c["downsample"] = b.downsample
	}
	return c
}

// GatedResidualBlock is a ResidualBlock whose convolutions are gated units.
// The same conditioning tensor is passed to both units. The shortcut
// projection stays a plain convolution.
type GatedResidualBlock[B tensor.Backend] struct {
	cfg        ResidualConfig
	conv1      GatedUnit[B]
	bn1        *BatchNorm2D[B]
	conv2      GatedUnit[B]
	bn2        *BatchNorm2D[B]
	downsample *Sequential[B]
}

// NewGatedResidualBlock creates a gated residual block. activation applies to
// the features branch of both gated units. cfg.ConditionChannels > 0 makes
// both units conditioned.
func NewGatedResidualBlock[B tensor.Backend](cfg ResidualConfig, activation Activation[B], backend B) *GatedResidualBlock[B] {
	cfg = cfg.normalized()
	unit := func(in int, stage int) GatedUnit[B] {
		return NewGatedConvUnit(GatedConvConfig{
			InChannels:        in,
			OutChannels:       cfg.OutChannels,
			KernelSize:        cfg.KernelSize,
			Options:           cfg.stage(stage),
			ConditionChannels: cfg.ConditionChannels,
		}, activation, backend)
	}
	b := &GatedResidualBlock[B]{
		cfg:   cfg,
		conv1: unit(cfg.InChannels, 0),
		bn1:   NewBatchNorm2D(cfg.OutChannels, true, backend),
		conv2: unit(cfg.OutChannels, 1),
		bn2:   NewBatchNorm2D(cfg.OutChannels, true, backend),
	}
	if cfg.needsDownsample() {
		b.downsample = newDownsample(cfg, backend)
	}
	return b
}

// Forward runs the block on x [N, C_in, H, W] with conditioning c, which may
// be nil for unconditioned blocks.
func (b *GatedResidualBlock[B]) Forward(x, c *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.bn1.Forward(b.conv1.Forward(x, c)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out, c))
	if b.cfg.Residual {
		out = addShortcut(out, x, b.downsample)
	}
	return out.ReLU()
}

// HasDownsample reports whether the block owns a shortcut projection.
func (b *GatedResidualBlock[B]) HasDownsample() bool { return b.downsample != nil }

// Train propagates the training flag to the batch norms.
func (b *GatedResidualBlock[B]) Train(training bool) {
	b.bn1.Train(training)
	b.bn2.Train(training)
	if b.downsample != nil {
		b.downsample.Train(training)
	}
}

// Parameters returns all parameters of the block.
func (b *GatedResidualBlock[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	params = append(params, b.conv1.Parameters()...)
	params = append(params, b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

// StateDict returns conv1, bn1, conv2, bn2 and downsample state.
func (b *GatedResidualBlock[B]) StateDict() map[string]*tensor.RawTensor {
	return ChildrenState(b.children())
}

// LoadStateDict restores every child.
func (b *GatedResidualBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadChildren(b.children(), stateDict)
}

func (b *GatedResidualBlock[B]) children() map[string]Stateful {
	c := map[string]Stateful{"conv1": b.conv1, "bn1": b.bn1, "conv2": b.conv2, "bn2": b.bn2}
	if b.downsample != nil {
		c["downsample"] = b.downsample
	}
	return c
}
