package nn

import (
	"fmt"
	"strconv"

	"github.com/born-ml/denoise/internal/tensor"
)

// Sequential runs its children in order, feeding each output to the next
// child. It is what residual blocks use for their 1x1 projection shortcut:
//
//	downsample := nn.NewSequential[B](
//	    nn.NewConv2D(32, 64, 1, tensor.ConvOptions{Stride: 2}, true, backend),
//	    nn.NewBatchNorm2D(64, true, backend),
//	)
//
// Child state is stored under the child's position, so the shortcut above
// owns "0.weight", "0.bias", "1.running_mean" and so on.
type Sequential[B tensor.Backend] struct {
	children []Module[B]
}

// NewSequential wraps children in a Sequential.
func NewSequential[B tensor.Backend](children ...Module[B]) *Sequential[B] {
	return &Sequential[B]{children: children}
}

// Forward threads x through every child.
func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, child := range s.children {
		x = child.Forward(x)
	}
	return x
}

// Parameters concatenates the children's parameters in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var all []*Parameter[B]
	for _, child := range s.children {
		all = append(all, child.Parameters()...)
	}
	return all
}

// Module returns child i. It panics when i is out of range.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.children) {
		panic(fmt.Sprintf("nn: Sequential has %d children, index %d", len(s.children), i))
	}
	return s.children[i]
}

// Train forwards the mode to every child.
func (s *Sequential[B]) Train(training bool) {
	for _, child := range s.children {
		SetTraining(child, training)
	}
}

// StateDict collects the state of stateful children under their position.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	s.eachStateful(func(key string, st Stateful) error {
		mergeState(out, key, st.StateDict())
		return nil
	})
	return out
}

// LoadStateDict hands every stateful child the entries under its position.
func (s *Sequential[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return s.eachStateful(func(key string, st Stateful) error {
		if err := st.LoadStateDict(subState(state, key)); err != nil {
			return fmt.Errorf("child %s: %w", key, err)
		}
		return nil
	})
}

func (s *Sequential[B]) eachStateful(fn func(key string, st Stateful) error) error {
	for i, child := range s.children {
		st, ok := child.(Stateful)
		if !ok {
			continue
		}
		if err := fn(strconv.Itoa(i), st); err != nil {
			return err
		}
	}
	return nil
}
