// Package nn builds trainable models out of tile kernels.
//
// A model owns its Parameters and emits a kernel body; running the body under
// a recording tape makes the parameters' gradients available after
// autodiff.Tape.Backward. The package provides:
//   - Linear: one fully connected layer evaluated block-cooperatively
//   - Sequential: a chain of Linear layers sharing one activation
//   - MLP: the per-pixel coordinate network fitted to an image
//   - SingleLayer: one Linear layer over a pre-tiled input
//   - Trainer: the record, backward, update loop
package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
)

// Module is anything that owns trainable parameters.
type Module interface {
	// Parameters returns the parameters in a stable order.
	Parameters() []*Parameter
}

// ZeroGrad clears the gradients of every parameter of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// StateDict returns the parameter Arrays of m keyed by name.
func StateDict(m Module) map[string]*array.Array {
	out := make(map[string]*array.Array)
	for _, p := range m.Parameters() {
		out[p.Name()] = p.Array()
	}
	return out
}

// LoadStateDict copies values into the parameters of m.
//
// Every parameter must be present with a matching shape; extra entries are an error.
func LoadStateDict(m Module, state map[string]*array.Array) error {
	params := m.Parameters()
	if len(state) != len(params) {
		return errors.Errorf("nn: state has %d entries, module has %d parameters", len(state), len(params))
	}
	for _, p := range params {
		src, ok := state[p.Name()]
		if !ok {
			return errors.Errorf("nn: missing parameter %q", p.Name())
		}
		if err := p.Array().CopyFrom(src); err != nil {
			return errors.WithMessagef(err, "nn: parameter %q", p.Name())
		}
	}
	return nil
}
