package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// GatedConvConfig describes a gated convolution unit.
//
// ConditionChannels > 0 selects the conditioned variant in
// NewGatedConvUnit and NewGatedConvTransposeUnit.
type GatedConvConfig struct {
	InChannels        int
	OutChannels       int
	KernelSize        int
	Options           tensor.ConvOptions
	ConditionChannels int
}

// GatedUnit is the common interface of the gated convolution variants.
//
// Forward takes the feature map [N, C_in, H, W] and an optional conditioning
// sequence [N, condition_channels, L].
type GatedUnit[B tensor.Backend] interface {
	ConditionalModule[B]
	Stateful
	OutChannels() int
}

var (
	_ GatedUnit[tensor.Backend] = (*GatedConv[tensor.Backend])(nil)
	_ GatedUnit[tensor.Backend] = (*ConditionedGatedConv[tensor.Backend])(nil)
)

// GatedConv computes act(conv_features(x)) * sigmoid(conv_gate(x)).
//
// Both branches are plain or transposed convolutions with bias and share
// kernel size, stride, padding and dilation. The conditioning argument of
// Forward is ignored.
type GatedConv[B tensor.Backend] struct {
	features   Module[B]
	gate       Module[B]
	activation Activation[B]
	outCh      int
	transposed bool
}

// NewGatedConv2D creates an unconditioned gated convolution.
// A nil activation means none.
func NewGatedConv2D[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) *GatedConv[B] {
	return &GatedConv[B]{
		features:   NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, true, backend),
		gate:       NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, true, backend),
		activation: activation,
		outCh:      cfg.OutChannels,
	}
}

// NewGatedConvTranspose2D creates an unconditioned gated transposed convolution.
func NewGatedConvTranspose2D[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) *GatedConv[B] {
	return &GatedConv[B]{
		features:   NewConvTranspose2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, true, backend),
		gate:       NewConvTranspose2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, true, backend),
		activation: activation,
		outCh:      cfg.OutChannels,
		transposed: true,
	}
}

// Forward computes the gated output. condition is ignored.
func (g *GatedConv[B]) Forward(input, _ *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return GLUFunc(g.features.Forward(input), g.gate.Forward(input), g.activation)
}

// OutChannels returns the number of output channels.
func (g *GatedConv[B]) OutChannels() int { return g.outCh }

// Transposed reports whether the branches are transposed convolutions.
func (g *GatedConv[B]) Transposed() bool { return g.transposed }

// Parameters returns the parameters of both branches.
func (g *GatedConv[B]) Parameters() []*Parameter[B] {
	return append(g.features.Parameters(), g.gate.Parameters()...)
}

// StateDict returns "conv_features.*" and "conv_gate.*".
func (g *GatedConv[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	mergeState(sd, "conv_features", g.features.(Stateful).StateDict())
	mergeState(sd, "conv_gate", g.gate.(Stateful).StateDict())
	return sd
}

// LoadStateDict restores both branches.
func (g *GatedConv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadChild(g.features.(Stateful), "conv_features", stateDict); err != nil {
		return err
	}
	return loadChild(g.gate.(Stateful), "conv_gate", stateDict)
}

// ConditionedGatedConv is a gated convolution whose bias comes from a
// conditioning sequence:
//
//	f = conv_features(x) + cond_features(c)[..., None]
//	g = conv_gate(x)     + cond_gate(c)[..., None]
//	output = act(f) * sigmoid(g)
//
// The spatial convolutions have no bias. cond_features and cond_gate are
// bias-free 1D convolutions with kernel size 1. The projection [N, C_out, L]
// is viewed as [N, C_out, L, 1] and broadcast over the feature map, so L must
// be 1 (one vector for every position) or equal to the output height (one
// vector per row).
type ConditionedGatedConv[B tensor.Backend] struct {
	features     Module[B]
	gate         Module[B]
	condFeatures *Conv1D[B]
	condGate     *Conv1D[B]
	activation   Activation[B]
	outCh        int
	condCh       int
	transposed   bool
}

// NewConditionedGatedConv2D creates a conditioned gated convolution.
// cfg.ConditionChannels must be positive.
func NewConditionedGatedConv2D[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) *ConditionedGatedConv[B] {
	g := newConditioned(cfg, activation, backend)
	g.features = NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, false, backend)
	g.gate = NewConv2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, false, backend)
	return g
}

// NewConditionedGatedConvTranspose2D creates a conditioned gated transposed
// convolution.
func NewConditionedGatedConvTranspose2D[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) *ConditionedGatedConv[B] {
	g := newConditioned(cfg, activation, backend)
	g.features = NewConvTranspose2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, false, backend)
	g.gate = NewConvTranspose2D(cfg.InChannels, cfg.OutChannels, cfg.KernelSize, cfg.Options, false, backend)
	g.transposed = true
	return g
}

func newConditioned[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) *ConditionedGatedConv[B] {
	if cfg.ConditionChannels <= 0 {
		panic(fmt.Sprintf("gated conv: condition channels must be positive, got %d", cfg.ConditionChannels))
	}
	return &ConditionedGatedConv[B]{
		condFeatures: NewConv1D(cfg.ConditionChannels, cfg.OutChannels, 1, tensor.ConvOptions{}, false, backend),
		condGate:     NewConv1D(cfg.ConditionChannels, cfg.OutChannels, 1, tensor.ConvOptions{}, false, backend),
		activation:   activation,
		outCh:        cfg.OutChannels,
		condCh:       cfg.ConditionChannels,
	}
}

// Forward computes the gated output for input [N, C_in, H, W] and condition
// [N, condition_channels, L]. A missing or malformed condition panics.
func (g *ConditionedGatedConv[B]) Forward(input, condition *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if condition == nil {
		panic("gated conv: conditioned unit requires a conditioning tensor")
	}
	cs := condition.Shape()
	if len(cs) != 3 {
		panic(fmt.Sprintf("gated conv: conditioning must be [N, C, L], got %v", cs))
	}
	if cs[1] != g.condCh {
		panic(fmt.Sprintf("gated conv: conditioning has %d channels, expected %d", cs[1], g.condCh))
	}

	features := g.features.Forward(input)
	gate := g.gate.Forward(input)
	features = features.Add(broadcastCondition(g.condFeatures.Forward(condition), features))
	gate = gate.Add(broadcastCondition(g.condGate.Forward(condition), gate))
	return GLUFunc(features, gate, g.activation)
}

// broadcastCondition views proj [N, C, L] as [N, C, L, 1] and expands it to
// target's shape.
func broadcastCondition[B tensor.Backend](proj, target *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	proj = proj.Unsqueeze(-1)
	if !proj.Shape().ExpandableTo(target.Shape()) {
		panic(fmt.Sprintf("gated conv: conditioning %v cannot broadcast to %v; length must be 1 or the output height",
			proj.Shape(), target.Shape()))
	}
	return proj.ExpandAs(target)
}

// OutChannels returns the number of output channels.
func (g *ConditionedGatedConv[B]) OutChannels() int { return g.outCh }

// ConditionChannels returns the expected conditioning channel count.
func (g *ConditionedGatedConv[B]) ConditionChannels() int { return g.condCh }

// Transposed reports whether the branches are transposed convolutions.
func (g *ConditionedGatedConv[B]) Transposed() bool { return g.transposed }

// Parameters returns the parameters of both branches and both projections.
func (g *ConditionedGatedConv[B]) Parameters() []*Parameter[B] {
	params := append(g.features.Parameters(), g.gate.Parameters()...)
	params = append(params, g.condFeatures.Parameters()...)
	return append(params, g.condGate.Parameters()...)
}

// StateDict returns "conv_features.*", "conv_gate.*", "cond_features.*" and
// "cond_gate.*".
func (g *ConditionedGatedConv[B]) StateDict() map[string]*tensor.RawTensor {
	return ChildrenState(g.children())
}

// LoadStateDict restores all four convolutions.
func (g *ConditionedGatedConv[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return LoadChildren(g.children(), stateDict)
}

func (g *ConditionedGatedConv[B]) children() map[string]Stateful {
	return map[string]Stateful{
		"conv_features": g.features.(Stateful),
		"conv_gate":     g.gate.(Stateful),
		"cond_features": g.condFeatures,
		"cond_gate":     g.condGate,
	}
}

// NewGatedConvUnit returns a ConditionedGatedConv when cfg.ConditionChannels
// is positive and a GatedConv otherwise.
func NewGatedConvUnit[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) GatedUnit[B] {
	if cfg.ConditionChannels > 0 {
		return NewConditionedGatedConv2D(cfg, activation, backend)
	}
	return NewGatedConv2D(cfg, activation, backend)
}

// NewGatedConvTransposeUnit is NewGatedConvUnit for transposed convolutions.
func NewGatedConvTransposeUnit[B tensor.Backend](cfg GatedConvConfig, activation Activation[B], backend B) GatedUnit[B] {
	if cfg.ConditionChannels > 0 {
		return NewConditionedGatedConvTranspose2D(cfg, activation, backend)
	}
	return NewGatedConvTranspose2D(cfg, activation, backend)
}
