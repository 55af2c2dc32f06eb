// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers that update parameters after a
// backward pass.
//
// Optimizers read gradient buffers and update values in place. They never
// touch a tape: take a step only once Backward has returned.
//
// Example:
//
//	params, err := nn.OptimParams(model.Parameters())
//	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 0.001})
//	...
//	err = tape.Backward(loss)
//	err = optimizer.Step()
package optim

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/optim"
)

// Optimizer is the common interface of all optimizers.
type Optimizer = optim.Optimizer

// Config is the base configuration for optimizers.
type Config = optim.Config

// Param is a flattened parameter and its gradient.
type Param = optim.Param

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// Adam is Adam with bias correction.
type Adam = optim.Adam

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewParam flattens a differentiable Array into a Param.
func NewParam(name string, a *array.Array) (Param, error) {
	return optim.NewParam(name, a)
}

// NewSGD creates an SGD optimizer.
func NewSGD(params []Param, config SGDConfig) (*SGD, error) {
	return optim.NewSGD(params, config)
}

// NewAdam creates an Adam optimizer.
func NewAdam(params []Param, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
