package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// Conv2D is a 2D convolutional layer with square kernels.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out = floor((in + 2*padding - dilation*(kernel-1) - 1) / stride) + 1
//
// Example:
//
//	conv := nn.NewConv2D(1, 32, 3, tensor.ConvOptions{Padding: 1}, true, backend)
//	out := conv.Forward(input) // [N, 32, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	opts        tensor.ConvOptions

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
// Bias, when enabled, starts at zero.
//
// Panics on non-positive sizes or invalid options.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels, kernelSize int,
	opts tensor.ConvOptions,
	useBias bool,
	backend B,
) *Conv2D[B] {
	checkConvArgs("conv2d", inChannels, outChannels, kernelSize, opts)
	opts = opts.Normalized()

	area := kernelSize * kernelSize
	weight := Xavier(inChannels*area, outChannels*area,
		tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}, backend)

	c := &Conv2D[B]{
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

// Forward computes the convolution of input [N, C_in, H, W].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input.Conv2D(c.weight.Tensor(), c.opts)
	if c.bias != nil {
		out = out.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}
	return out
}

// OutputSize returns the spatial output size for an input of size in.
func (c *Conv2D[B]) OutputSize(in int) int {
	return c.opts.ConvOutputSize(in, c.kernelSize)
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int { return c.inChannels }

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int { return c.outChannels }

// Options returns the convolution options.
func (c *Conv2D[B]) Options() tensor.ConvOptions { return c.opts }

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] { return c.weight }

// Bias returns the bias parameter, or nil when the layer has none.
func (c *Conv2D[B]) Bias() *Parameter[B] { return c.bias }

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return weightAndBias(c.weight, c.bias)
}

// StateDict returns "weight" and, if present, "bias".
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(c.Parameters())
}

// LoadStateDict copies weight and bias from stateDict.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(c.Parameters(), stateDict)
}

func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(%d, %d, kernel=%d, stride=%d, padding=%d, dilation=%d, bias=%t)",
		c.inChannels, c.outChannels, c.kernelSize, c.opts.Stride, c.opts.Padding, c.opts.Dilation, c.bias != nil)
}

func checkConvArgs(layer string, inChannels, outChannels, kernelSize int, opts tensor.ConvOptions) {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("%s: invalid channels in=%d, out=%d", layer, inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", layer, kernelSize))
	}
	if err := opts.Validate(kernelSize); err != nil {
		panic(fmt.Sprintf("%s: %v", layer, err))
	}
}

func weightAndBias[B tensor.Backend](weight, bias *Parameter[B]) []*Parameter[B] {
	if bias == nil {
		return []*Parameter[B]{weight}
	}
	return []*Parameter[B]{weight, bias}
}

func paramState[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		sd[p.Name()] = p.Raw()
	}
	return sd
}

func loadParams[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	for _, p := range params {
		if err := loadInto(p.Raw(), stateDict, p.Name()); err != nil {
			return err
		}
	}
	return nil
}
