package nn

import (
	"fmt"

	"github.com/born-ml/denoise/internal/tensor"
)

// GLUFunc combines a features and a gate tensor of identical shape:
//
//	output = act(features) * sigmoid(gate)
//
// A nil act leaves the features untouched. The gate always goes through the
// sigmoid, so each output element is the feature value scaled by a factor in
// (0, 1).
//
// Example:
//
//	out := nn.GLUFunc(f, g, nn.TanhFunc[B])
func GLUFunc[B tensor.Backend](features, gate *tensor.Tensor[float32, B], act Activation[B]) *tensor.Tensor[float32, B] {
	if !features.Shape().Equal(gate.Shape()) {
		panic(fmt.Sprintf("glu: features %v and gate %v shapes differ", features.Shape(), gate.Shape()))
	}
	if act != nil {
		features = act(features)
	}
	return features.Mul(gate.Sigmoid())
}
