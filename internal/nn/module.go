// Package nn implements the neural network modules used by the denoisers.
//
// This package provides building blocks for convolutional image models:
//   - Module, ConditionalModule: forward interfaces for plain and conditioned layers
//   - Parameter: named learnable tensors
//   - Conv2D, ConvTranspose2D, Conv1D: convolutions with stride, padding and dilation
//   - BatchNorm2D, ConditionalBatchNorm2D: per-channel normalization
//   - GatedConv, ConditionedGatedConv: gated convolution units
//   - ResidualBlock, GatedResidualBlock: two-stage residual blocks
//   - Sequential, Identity, activations
//   - Checkpoint save/load in .born format
//
// Every module exposes a state dictionary keyed by dotted paths
// (e.g. "conv1.conv_gate.weight", "downsample.1.running_var") so that a
// model's tensors can be saved and restored by name.
package nn

import (
	"github.com/born-ml/denoise/internal/tensor"
)

// Module is the interface for single-input layers.
//
// Modules can be composed to build larger architectures:
//
//	head := nn.NewSequential[B](
//	    nn.NewConv2D(3, 32, 3, tensor.ConvOptions{Padding: 1}, true, backend),
//	    nn.NewReLU[B](),
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all learnable parameters, including those of
	// nested modules. Buffers such as running statistics are not included.
	Parameters() []*Parameter[B]
}

// ConditionalModule is the interface for layers that take a conditioning
// tensor alongside their input. Implementations that do not use the
// conditioning accept nil.
type ConditionalModule[B tensor.Backend] interface {
	Forward(input, condition *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*Parameter[B]
}

// Stateful is implemented by modules that can be saved and restored.
type Stateful interface {
	// StateDict returns parameters and buffers by dotted name. The returned
	// tensors share storage with the module.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values into the module. Every key the module
	// owns must be present with a matching shape and dtype.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose behavior depends on the
// training flag (batch normalization) and by containers of such modules.
type Trainable interface {
	Train(training bool)
}

// SetTraining switches m into training or evaluation mode if it cares.
func SetTraining(m any, training bool) {
	if t, ok := m.(Trainable); ok {
		t.Train(training)
	}
}

// Eval switches m into evaluation mode.
func Eval(m any) {
	SetTraining(m, false)
}
