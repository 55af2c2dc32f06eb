package nn

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// Sequential chains Linear layers, applying the same activation after each.
//
// Example:
//
//	seq, err := nn.NewSequential(rng, []int{16, 16, 16, 3}, tile.ReLU, array.Float32)
//
//	// inside a kernel body
//	out := seq.Apply(t, features)
//
// This is equivalent to:
//
//	h := layer0.Apply(t, features, tile.ReLU)
//	h = layer1.Apply(t, h, tile.ReLU)
//	out := layer2.Apply(t, h, tile.ReLU)
type Sequential struct {
	layers     []*Linear
	activation tile.Func
}

// NewSequential creates len(dims)-1 layers, layer i mapping dims[i] to dims[i+1].
// Layers are initialized in order from the same rng.
func NewSequential(rng *rand.Rand, dims []int, activation tile.Func, dtype array.DataType) (*Sequential, error) {
	if len(dims) < 2 {
		return nil, errors.Errorf("nn: sequential needs at least two dimensions, got %v", dims)
	}
	if !activation.Valid() {
		return nil, errors.Errorf("nn: invalid activation %d", int(activation))
	}
	s := &Sequential{activation: activation}
	for i := 0; i+1 < len(dims); i++ {
		l, err := NewLinear(rng, "layer"+strconv.Itoa(i), dims[i], dims[i+1], dtype)
		if err != nil {
			return nil, err
		}
		s.layers = append(s.layers, l)
	}
	return s, nil
}

// Apply runs every layer on x in order.
func (s *Sequential) Apply(t *kernel.Thread, x *tile.Tile) *tile.Tile {
	out := x
	for _, l := range s.layers {
		out = l.Apply(t, out, s.activation)
	}
	return out
}

// Layers returns the layers.
func (s *Sequential) Layers() []*Linear {
	return s.layers
}

// Parameters returns every layer's weight and bias, layer by layer.
func (s *Sequential) Parameters() []*Parameter {
	params := make([]*Parameter, 0, 2*len(s.layers))
	for _, l := range s.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) String() string {
	parts := make([]string, len(s.layers))
	for i, l := range s.layers {
		parts[i] = l.String()
	}
	return "Sequential(" + strings.Join(parts, ", ") + ", " + s.activation.String() + ")"
}
