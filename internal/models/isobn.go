package models

import (
	"strconv"

	"github.com/born-ml/denoise/internal/config"
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/internal/tensor"
)

// isoStage is conv -> conditional batch norm -> ReLU.
type isoStage[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	norm *nn.ConditionalBatchNorm2D[B]
}

func (s *isoStage[B]) forward(x *tensor.Tensor[float32, B], class *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	return s.norm.Forward(s.conv.Forward(x), class).ReLU()
}

func (s *isoStage[B]) children() map[string]nn.Stateful {
	return map[string]nn.Stateful{"conv": s.conv, "norm": s.norm}
}

// isoBatchNormDenoiser selects a learned per-channel affine transform for
// each sample from its ISO class, the index of the nearest configured ISO
// level. Convolutions alternate between the two configured dilations.
//
//	head:   conv(C -> F) + CBN + ReLU
//	blocks: conv(F -> F, dilation d[i%2]) + CBN + ReLU, x N
//	tail:   conv(F -> C)
//	output: noisy + tail
type isoBatchNormDenoiser[B tensor.Backend] struct {
	inChannels int
	levels     []float64
	head       *isoStage[B]
	blocks     []*isoStage[B]
	tail       *nn.Conv2D[B]
	backend    B
}

func newISOBatchNormDenoiser[B tensor.Backend](cfg *config.Config, backend B) *isoBatchNormDenoiser[B] {
	pad := samePadding(cfg.KernelSize)
	classes := len(cfg.ISOLevels)
	stage := func(in int, dilation int) *isoStage[B] {
		opts := tensor.ConvOptions{Padding: pad * dilation, Dilation: dilation}
		return &isoStage[B]{
			conv: nn.NewConv2D(in, cfg.Features, cfg.KernelSize, opts, false, backend),
			norm: nn.NewConditionalBatchNorm2D(cfg.Features, classes, backend),
		}
	}

	m := &isoBatchNormDenoiser[B]{
		inChannels: cfg.InChannels,
		levels:     cfg.ISOLevels,
		head:       stage(cfg.InChannels, 1),
		tail:       nn.NewConv2D(cfg.Features, cfg.InChannels, cfg.KernelSize, tensor.ConvOptions{Padding: pad}, true, backend),
		backend:    backend,
	}
	dilations := cfg.Dilation()
	for i := range cfg.Blocks {
		m.blocks = append(m.blocks, stage(cfg.Features, dilations[i%2]))
	}
	return m
}

func (m *isoBatchNormDenoiser[B]) Forward(noisy, iso *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	class := isoClasses(iso, m.levels, m.backend)
	h := m.head.forward(noisy, class)
	for _, block := range m.blocks {
		h = block.forward(h, class)
	}
	return noisy.Add(m.tail.Forward(h))
}

func (m *isoBatchNormDenoiser[B]) Architecture() Architecture { return ISOBatchNormDenoiser }

func (m *isoBatchNormDenoiser[B]) ValidateInput(shape tensor.Shape) error {
	return validateImageBatch(shape, m.inChannels)
}

func (m *isoBatchNormDenoiser[B]) Train(training bool) {
	m.head.norm.Train(training)
	for _, block := range m.blocks {
		block.norm.Train(training)
	}
}

func (m *isoBatchNormDenoiser[B]) Parameters() []*nn.Parameter[B] {
	params := append(m.head.conv.Parameters(), m.head.norm.Parameters()...)
	for _, block := range m.blocks {
		params = append(params, block.conv.Parameters()...)
		params = append(params, block.norm.Parameters()...)
	}
	return append(params, m.tail.Parameters()...)
}

func (m *isoBatchNormDenoiser[B]) children() map[string]nn.Stateful {
	c := map[string]nn.Stateful{"tail": m.tail}
	addStage := func(prefix string, s *isoStage[B]) {
		for name, child := range s.children() {
			c[prefix+"."+name] = child
		}
	}
	addStage("head", m.head)
	for i, block := range m.blocks {
		addStage("blocks."+strconv.Itoa(i), block)
	}
	return c
}

func (m *isoBatchNormDenoiser[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.ChildrenState(m.children())
}

func (m *isoBatchNormDenoiser[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadChildren(m.children(), stateDict)
}
