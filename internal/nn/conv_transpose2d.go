package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// ConvTranspose2D is a transposed 2D convolution (fractionally strided
// convolution) with square kernels.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [in_channels, out_channels, kernel, kernel]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out = (in - 1)*stride - 2*padding + dilation*(kernel-1) + output_padding + 1
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	opts        tensor.ConvOptions

	weight *Parameter[B] // [in_channels, out_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConvTranspose2D creates a transposed convolution with Xavier
// initialization. opts.OutputPadding must be smaller than stride or dilation.
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels, kernelSize int,
	opts tensor.ConvOptions,
	useBias bool,
	backend B,
) *ConvTranspose2D[B] {
	checkConvArgs("conv_transpose2d", inChannels, outChannels, kernelSize, opts)
	opts = opts.Normalized()

	area := kernelSize * kernelSize
	weight := Xavier(outChannels*area, inChannels*area,
		tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}, backend)

	c := &ConvTranspose2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		opts:        opts,
		weight:      NewParameter("weight", weight),
		backend:     backend,
	}
	if useBias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward computes the transposed convolution of input [N, C_in, H, W].
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input.ConvTranspose2D(c.weight.Tensor(), c.opts)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// OutputSize returns the spatial output size for an input of size in.
func (c *ConvTranspose2D[B]) OutputSize(in int) int {
	return c.opts.ConvTransposeOutputSize(in, c.kernelSize)
}

// InChannels returns the number of input channels.
func (c *ConvTranspose2D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the number of output channels.
func (c *ConvTranspose2D[B]) OutChannels() int { return c.outChannels }

// Parameters returns the weight and, if present, the bias.
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	return weightAndBias(c.weight, c.bias)
}

// StateDict returns "weight" and, if present, "bias".
func (c *ConvTranspose2D[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(c.Parameters())
}

// LoadStateDict copies weight and bias from stateDict.
func (c *ConvTranspose2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(c.Parameters(), stateDict)
}

func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2D(%d, %d, kernel=%d, stride=%d, padding=%d, dilation=%d, output_padding=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.opts.Stride, c.opts.Padding,
		c.opts.Dilation, c.opts.OutputPadding, c.bias != nil)
}
