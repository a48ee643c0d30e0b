package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Conv1D is a 1D convolution over [batch, channels, length] inputs.
//
// The gated layers use it with kernel size 1 to project a conditioning
// sequence onto their output channels.
type Conv1D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	opts        tensor.ConvOptions

	weight *Parameter[B] // [out_channels, in_channels, kernel]
	bias   *Parameter[B] // [out_channels] or nil
}

// NewConv1D creates a 1D convolution with Xavier initialization.
func NewConv1D[B tensor.Backend](
	inChannels, outChannels, kernelSize int,
	opts tensor.ConvOptions,
	useBias bool,
	backend B,
) *Conv1D[B] {
	checkConvArgs("conv1d", inChannels, outChannels, kernelSize, opts)
	weight := Xavier(inChannels*kernelSize, outChannels*kernelSize,
		tensor.Shape{outChannels, inChannels, kernelSize}, backend)

	c := &Conv1D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		opts:        opts.Normalized(),
		weight:      NewParameter("weight", weight),
	}
	if useBias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward computes the convolution of input [N, C_in, L].
func (c *Conv1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input.Conv1D(c.weight.Tensor(), c.opts)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1))
	}
	return out
}

// InChannels returns the number of input channels.
func (c *Conv1D[B]) InChannels() int { return c.inChannels }

// Parameters returns the weight and, if present, the bias.
func (c *Conv1D[B]) Parameters() []*Parameter[B] {
	return weightAndBias(c.weight, c.bias)
}

// StateDict returns "weight" and, if present, "bias".
func (c *Conv1D[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(c.Parameters())
}

// LoadStateDict copies weight and bias from stateDict.
func (c *Conv1D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(c.Parameters(), stateDict)
}

func (c *Conv1D[B]) String() string {
	return fmt.Sprintf("Conv1D(%d, %d, kernel=%d, bias=%t)", c.inChannels, c.outChannels, c.kernelSize, c.bias != nil)
}
