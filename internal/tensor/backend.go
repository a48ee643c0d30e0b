package tensor

import "fmt"

// ConvOptions configures a 2-D (or 1-D) convolution. Zero values for Stride
// and Dilation are read as 1.
type ConvOptions struct {
	Stride        int
	Padding       int
	Dilation      int
	OutputPadding int // transposed convolutions only
}

// Normalized returns a copy with defaults filled in.
func (o ConvOptions) Normalized() ConvOptions {
	if o.Stride == 0 {
		o.Stride = 1
	}
	if o.Dilation == 0 {
		o.Dilation = 1
	}
	return o
}

// Validate checks the options for a convolution with the given kernel size.
func (o ConvOptions) Validate(kernel int) error {
	o = o.Normalized()
	switch {
	case kernel <= 0:
		return fmt.Errorf("kernel size must be positive, got %d", kernel)
	case o.Stride < 0:
		return fmt.Errorf("stride must be positive, got %d", o.Stride)
	case o.Padding < 0:
		return fmt.Errorf("padding must be non-negative, got %d", o.Padding)
	case o.Dilation < 0:
		return fmt.Errorf("dilation must be positive, got %d", o.Dilation)
	case o.OutputPadding < 0:
		return fmt.Errorf("output padding must be non-negative, got %d", o.OutputPadding)
	case o.OutputPadding > 0 && o.OutputPadding >= max(o.Stride, o.Dilation):
		return fmt.Errorf("output padding %d must be smaller than stride %d or dilation %d",
			o.OutputPadding, o.Stride, o.Dilation)
	}
	return nil
}

// ConvOutputSize returns floor((in + 2p - d(k-1) - 1)/s) + 1.
func (o ConvOptions) ConvOutputSize(in, kernel int) int {
	o = o.Normalized()
	span := in + 2*o.Padding - o.Dilation*(kernel-1) - 1
	if span < 0 {
		return 0
	}
	return span/o.Stride + 1
}

// ConvTransposeOutputSize returns (in-1)s - 2p + d(k-1) + output_padding + 1.
func (o ConvOptions) ConvTransposeOutputSize(in, kernel int) int {
	o = o.Normalized()
	return (in-1)*o.Stride - 2*o.Padding + o.Dilation*(kernel-1) + o.OutputPadding + 1
}

// Backend is the compute interface the layers run on.
//
// Implementations panic on shape or dtype contract violations; callers are
// expected to validate user input before it reaches a kernel.
type Backend interface {
	// Element-wise arithmetic with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Shape manipulation.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Expand(t *RawTensor, newShape Shape) *RawTensor
	Chunk(t *RawTensor, n, dim int) []*RawTensor

	// Convolutions. Conv2D takes input [N, C_in, H, W] and weight
	// [C_out, C_in, kH, kW]. ConvTranspose2D takes weight [C_in, C_out, kH, kW].
	// Conv1D takes input [N, C_in, L] and weight [C_out, C_in, k].
	Conv2D(input, weight *RawTensor, opts ConvOptions) *RawTensor
	ConvTranspose2D(input, weight *RawTensor, opts ConvOptions) *RawTensor
	Conv1D(input, weight *RawTensor, opts ConvOptions) *RawTensor

	// ChannelMoments returns per-channel mean and biased variance of a
	// [N, C, H, W] tensor, each shaped [C].
	ChannelMoments(x *RawTensor) (mean, variance *RawTensor)
	// BatchNorm2D computes (x - mean) / sqrt(variance + eps) per channel.
	// weight and bias may be nil.
	BatchNorm2D(x, mean, variance, weight, bias *RawTensor, eps float64) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Embedding gathers rows of weight [num, dim] for int32 indices.
	Embedding(weight, indices *RawTensor) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
