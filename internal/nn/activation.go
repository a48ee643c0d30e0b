package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/denoise/internal/tensor"
)

// Activation is a functional element-wise activation.
type Activation[B tensor.Backend] func(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

// ReLUFunc applies f(x) = max(0, x).
func ReLUFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.ReLU()
}

// SigmoidFunc applies f(x) = 1 / (1 + exp(-x)).
func SigmoidFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.Sigmoid()
}

// TanhFunc applies the hyperbolic tangent.
func TanhFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.Tanh()
}

// IdentityFunc returns x unchanged.
func IdentityFunc[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x
}

// ActivationByName resolves "relu", "sigmoid", "tanh" or "none" (also "",
// "identity", "linear"). Names are case-insensitive.
func ActivationByName[B tensor.Backend](name string) (Activation[B], error) {
	switch strings.ToLower(name) {
	case "relu":
		return ReLUFunc[B], nil
	case "sigmoid":
		return SigmoidFunc[B], nil
	case "tanh":
		return TanhFunc[B], nil
	case "", "none", "identity", "linear":
		return IdentityFunc[B], nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}

// ReLU is a Rectified Linear Unit activation module.
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input) // All negative values become 0
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// Sigmoid is a sigmoid activation module.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the sigmoid.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns nil.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

// Tanh is a hyperbolic tangent activation module.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies tanh.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Tanh()
}

// Parameters returns nil.
func (t *Tanh[B]) Parameters() []*Parameter[B] { return nil }

// Identity passes its input through unchanged. It stands in for an absent
// shortcut projection.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates an Identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns input.
func (i *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil.
func (i *Identity[B]) Parameters() []*Parameter[B] { return nil }
