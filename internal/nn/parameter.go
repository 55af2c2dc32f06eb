package nn

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/optim"
)

// Parameter is a named, trainable Array.
//
// The Array always carries a gradient buffer. Kernels accumulate into it
// during the backward pass; optimizers read it and update the values in place.
type Parameter struct {
	name string
	data *array.Array
}

// NewParameter wraps a differentiable Array.
func NewParameter(name string, data *array.Array) *Parameter {
	return &Parameter{name: name, data: data}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Array returns the parameter values.
func (p *Parameter) Array() *array.Array {
	return p.data
}

// Grad returns the gradient Array.
func (p *Parameter) Grad() *array.Array {
	return p.data.Grad()
}

// ZeroGrad clears the gradient.
func (p *Parameter) ZeroGrad() {
	p.data.ZeroGrad()
}

// OptimParams flattens parameters into optimizer parameters.
func OptimParams(params []*Parameter) ([]optim.Param, error) {
	out := make([]optim.Param, 0, len(params))
	for _, p := range params {
		op, err := optim.NewParam(p.name, p.data)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}
