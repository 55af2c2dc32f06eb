package nn

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// Linear is a fully connected layer y = f(W·x + b) evaluated on tiles.
//
// The weight has shape [out, in] and the bias [out, 1]; both are loaded
// whole into every block, so a layer must fit a block's tile arena.
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter
	bias        *Parameter
}

// NewLinear creates a layer with weight and bias drawn from U(-1/√in, 1/√in),
// the weight first.
func NewLinear(rng *rand.Rand, name string, inFeatures, outFeatures int, dtype array.DataType) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, errors.Errorf("nn: linear layer %q needs positive dimensions, got %d→%d", name, inFeatures, outFeatures)
	}
	bound := FanInBound(inFeatures)
	w, err := Uniform(rng, array.Shape{outFeatures, inFeatures}, bound, dtype)
	if err != nil {
		return nil, err
	}
	b, err := Uniform(rng, array.Shape{outFeatures, 1}, bound, dtype)
	if err != nil {
		return nil, err
	}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", w),
		bias:        NewParameter(name+".bias", b),
	}, nil
}

// Apply evaluates the layer on x, an [in, n] tile, and returns f(W·x + b) as an [out, n] tile.
// Every lane of the block must call it.
func (l *Linear) Apply(t *kernel.Thread, x *tile.Tile, f tile.Func) *tile.Tile {
	w := t.TileLoad(l.weight.Array(), 0, 0, l.outFeatures, l.inFeatures)
	b := t.TileLoad(l.bias.Array(), 0, 0, l.outFeatures, 1)
	return t.TileMap(f, t.TileAdd(t.TileMatMul(w, x), t.TileBroadcast(b, l.outFeatures, x.Cols())))
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter { return l.weight }

// Bias returns the bias parameter.
func (l *Linear) Bias() *Parameter { return l.bias }

// InFeatures returns the input dimension.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output dimension.
func (l *Linear) OutFeatures() int { return l.outFeatures }

// Parameters returns the weight and the bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(%d→%d)", l.inFeatures, l.outFeatures)
}
