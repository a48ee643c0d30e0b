package models

import (
	"fmt"
	"strconv"

	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// gatedDenoiser is an encoder/decoder of gated convolutions conditioned on the
// normalized ISO value:
//
//	c      = iso / iso_scale                   [N, 1, 1]
//	head:  gated conv(C -> F)
//	down:  gated conv(F -> 2F), stride 2
//	blocks: GatedResidualBlock(2F -> 2F) x N
//	up:    gated transposed conv(2F -> F), stride 2
//	tail:  conv(F -> C)
//	output: noisy + tail
//
// Inputs need even height and width so that up exactly inverts down.
type gatedDenoiser[B tensor.Backend] struct {
	inChannels int
	isoScale   float32
	head       nn.GatedUnit[B]
	down       nn.GatedUnit[B]
	blocks     []*nn.GatedResidualBlock[B]
	up         nn.GatedUnit[B]
	tail       *nn.Conv2D[B]
	backend    B
}

func newGatedDenoiser[B tensor.Backend](cfg *config.Config, act nn.Activation[B], backend B) *gatedDenoiser[B] {
	const condChannels = 1
	pad := samePadding(cfg.KernelSize)
	f := cfg.Features

	unit := func(in, out int, opts tensor.ConvOptions) nn.GatedConvConfig {
		return nn.GatedConvConfig{
			InChannels:        in,
			OutChannels:       out,
			KernelSize:        cfg.KernelSize,
			Options:           opts,
			ConditionChannels: condChannels,
		}
	}

	m := &gatedDenoiser[B]{
		inChannels: cfg.InChannels,
		isoScale:   float32(cfg.ISOScale),
		head:       nn.NewGatedConvUnit(unit(cfg.InChannels, f, tensor.ConvOptions{Padding: pad}), act, backend),
		down:       nn.NewGatedConvUnit(unit(f, 2*f, tensor.ConvOptions{Stride: 2, Padding: pad}), act, backend),
		up: nn.NewGatedConvTransposeUnit(unit(2*f, f,
			tensor.ConvOptions{Stride: 2, Padding: pad, OutputPadding: 1}), act, backend),
		tail:    nn.NewConv2D(f, cfg.InChannels, cfg.KernelSize, tensor.ConvOptions{Padding: pad}, true, backend),
		backend: backend,
	}
	for range cfg.Blocks {
		m.blocks = append(m.blocks, nn.NewGatedResidualBlock(nn.ResidualConfig{
			InChannels:        2 * f,
			OutChannels:       2 * f,
			KernelSize:        cfg.KernelSize,
			Padding:           pad,
			Dilation:          cfg.Dilation(),
			Residual:          true,
			ConditionChannels: condChannels,
		}, act, backend))
	}
	return m
}

func (m *gatedDenoiser[B]) Forward(noisy, iso *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	c := isoCondition(iso, m.isoScale, m.backend)
	h := m.head.Forward(noisy, c)
	h = m.down.Forward(h, c)
	for _, block := range m.blocks {
		h = block.Forward(h, c)
	}
	h = m.up.Forward(h, c)
	return noisy.Add(m.tail.Forward(h))
}

func (m *gatedDenoiser[B]) Architecture() Architecture { return GatedDenoiser }

func (m *gatedDenoiser[B]) ValidateInput(shape tensor.Shape) error {
	if err := validateImageBatch(shape, m.inChannels); err != nil {
		return err
	}
	if shape[2]%2 != 0 || shape[3]%2 != 0 {
		return fmt.Errorf("%s needs even height and width, got %dx%d", GatedDenoiser, shape[2], shape[3])
	}
	return nil
}

func (m *gatedDenoiser[B]) Train(training bool) {
	for _, block := range m.blocks {
		block.Train(training)
	}
}

func (m *gatedDenoiser[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.head.Parameters(), m.down.Parameters()...)
	for _, block := range m.blocks {
		params = append(params, block.Parameters()...)
	}
	params = append(params, m.up.Parameters()...)
	return append(params, m.tail.Parameters()...)
}

func (m *gatedDenoiser[B]) children() map[string]nn.Stateful {
	c := map[string]nn.Stateful{"head": m.head, "down": m.down, "up": m.up, "tail": m.tail}
	for i, block := range m.blocks {
		c["blocks."+strconv.Itoa(i)] = block
	}
	return c
}

func (m *gatedDenoiser[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.ChildrenState(m.children())
}

func (m *gatedDenoiser[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadChildren(m.children(), stateDict)
}
