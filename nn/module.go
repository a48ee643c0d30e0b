// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/denoise/internal/nn"
	"github.com/born-ml/denoise/tensor"
)

// Module is a layer with a single input.
type Module[B tensor.Backend] = nn.Module[B]

// ConditionalModule is a layer that also takes a conditioning tensor.
type ConditionalModule[B tensor.Backend] = nn.ConditionalModule[B]

// Stateful is implemented by every layer that owns tensors.
type Stateful = nn.Stateful

// Trainable is implemented by layers whose forward pass depends on the
// training flag, such as batch normalization.
type Trainable = nn.Trainable

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// CountParameters returns the total number of scalar parameters.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}

// SetTraining switches m between training and evaluation mode when it is
// Trainable.
func SetTraining(m any, training bool) { nn.SetTraining(m, training) }

// Eval switches m to evaluation mode.
func Eval(m any) { nn.Eval(m) }

// LoadStrict loads stateDict into m and fails on missing or unexpected keys.
func LoadStrict(m Stateful, stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadStrict(m, stateDict)
}
