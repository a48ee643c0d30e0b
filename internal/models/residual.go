package models

import (
	"strconv"

	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// residualDenoiser predicts a correction from a stack of plain residual
// blocks and adds it to the input. ISO is ignored.
//
//	head:   conv(C -> F) + ReLU
//	blocks: ResidualBlock(F -> F) x N
//	tail:   conv(F -> C)
//	output: noisy + tail
type residualDenoiser[B tensor.Backend] struct {
	inChannels int
	head       *nn.Conv2D[B]
	blocks     []*nn.ResidualBlock[B]
	tail       *nn.Conv2D[B]
}

func newResidualDenoiser[B tensor.Backend](cfg *config.Config, backend B) *residualDenoiser[B] {
	same := tensor.ConvOptions{Padding: samePadding(cfg.KernelSize)}
	m := &residualDenoiser[B]{
		inChannels: cfg.InChannels,
		head:       nn.NewConv2D(cfg.InChannels, cfg.Features, cfg.KernelSize, same, true, backend),
		tail:       nn.NewConv2D(cfg.Features, cfg.InChannels, cfg.KernelSize, same, true, backend),
	}
	for range cfg.Blocks {
		m.blocks = append(m.blocks, nn.NewResidualBlock(nn.ResidualConfig{
			InChannels:  cfg.Features,
			OutChannels: cfg.Features,
			KernelSize:  cfg.KernelSize,
			Padding:     samePadding(cfg.KernelSize),
			Dilation:    cfg.Dilation(),
			Residual:    true,
		}, backend))
	}
	return m
}

func (m *residualDenoiser[B]) Forward(noisy, _ *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := m.head.Forward(noisy).ReLU()
	for _, block := range m.blocks {
		h = block.Forward(h)
	}
	return noisy.Add(m.tail.Forward(h))
}

func (m *residualDenoiser[B]) Architecture() Architecture { return ResidualDenoiser }

func (m *residualDenoiser[B]) ValidateInput(shape tensor.Shape) error {
	return validateImageBatch(shape, m.inChannels)
}

func (m *residualDenoiser[B]) Train(training bool) {
	for _, block := range m.blocks {
		block.Train(training)
	}
}

func (m *residualDenoiser[B]) Parameters() []*nn.Parameter[B] {
	params := m.head.Parameters()
	for _, block := range m.blocks {
		params = append(params, block.Parameters()...)
	}
	return append(params, m.tail.Parameters()...)
}

func (m *residualDenoiser[B]) children() map[string]nn.Stateful {
	c := map[string]nn.Stateful{"head": m.head, "tail": m.tail}
	for i, block := range m.blocks {
		c["blocks."+strconv.Itoa(i)] = block
	}
	return c
}

func (m *residualDenoiser[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.ChildrenState(m.children())
}

func (m *residualDenoiser[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadChildren(m.children(), stateDict)
}
