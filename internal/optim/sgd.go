package optim

import (
	"github.com/pkg/errors"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []Param
	lr         float32
	momentum   float32
	velocities [][]float64 // nil until the first step with momentum
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []Param, config SGDConfig) (*SGD, error) {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		return nil, errors.Errorf("optim: SGD momentum must be in [0, 1), got %g", config.Momentum)
	}
	return &SGD{
		params:   params,
		lr:       config.LR,
		momentum: config.Momentum,
	}, nil
}

// Step performs a single optimization step.
func (s *SGD) Step() error {
	if err := checkGradients(s.params); err != nil {
		return err
	}
	if s.momentum != 0 && s.velocities == nil {
		s.velocities = make([][]float64, len(s.params))
		for i, p := range s.params {
			s.velocities[i] = make([]float64, p.Value.NumElements())
		}
	}

	lr, momentum := float64(s.lr), float64(s.momentum)
	for i, p := range s.params {
		grads := p.Grad.Float64s()
		values := p.Value.Float64s()
		for j, g := range grads {
			if momentum != 0 {
				s.velocities[i][j] = momentum*s.velocities[i][j] + g
				g = s.velocities[i][j]
			}
			values[j] -= lr * g
		}
		if err := p.Value.SetFloat64s(values); err != nil {
			return err
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}
