// Package optim implements the parameter-update collaborators of training.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers work on flattened (value, gradient) Array pairs. They read
// gradients and mutate values in place; they never touch a tape, so a step
// must only be taken once the backward pass has completed.
//
// Example usage:
//
//	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 0.001})
//
//	for iter := range iters {
//	    optimizer.ZeroGrad()
//	    err := tape.Record(func() error { return kernel.Launch(ctx, k, dims, 32, kernel.WithTape(tape)) })
//	    err = tape.Backward(loss)
//	    err = optimizer.Step()
//	}
package optim

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/array"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies the accumulated gradients to all parameters.
	//
	// It returns an error wrapping array.ErrNumericDivergence, and leaves
	// every parameter untouched, if any gradient is not finite.
	Step() error

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// Param is one flattened parameter: a 1-D view of the values and the
// matching view of their gradient. Ownership stays with the caller.
type Param struct {
	Name  string
	Value *array.Array
	Grad  *array.Array
}

// NewParam flattens a differentiable Array into a Param.
func NewParam(name string, a *array.Array) (Param, error) {
	if !a.RequiresGrad() {
		return Param{}, errors.Errorf("optim: parameter %q of shape %s has no gradient buffer", name, a.Shape())
	}
	flat, err := a.Flatten()
	if err != nil {
		return Param{}, errors.WithMessagef(err, "optim: parameter %q", name)
	}
	return Param{Name: name, Value: flat, Grad: flat.Grad()}, nil
}

// NumElements returns the total number of scalar parameters.
func NumElements(params []Param) int {
	n := 0
	for _, p := range params {
		n += p.Value.NumElements()
	}
	return n
}

// checkGradients returns ErrNumericDivergence for the first parameter whose
// gradient holds a NaN or an infinity.
func checkGradients(params []Param) error {
	for _, p := range params {
		if err := p.Grad.CheckFinite(); err != nil {
			klog.Warningf("optim: gradient of %q diverged: %v", p.Name, err)
			return errors.WithMessagef(err, "optim: gradient of %q", p.Name)
		}
	}
	return nil
}

func zeroGrads(params []Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}
