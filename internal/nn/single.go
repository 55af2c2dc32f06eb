package nn

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// SingleLayer applies one ReLU layer to a pre-tiled input: block i loads
// columns [i·BlockWidth, (i+1)·BlockWidth) of the input and stores the same
// columns of the output.
type SingleLayer struct {
	cfg   Config
	layer *Linear
}

// NewSingleLayer creates a DimIn→Out layer seeded with cfg.Seed.
func NewSingleLayer(cfg Config) (*SingleLayer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	layer, err := NewLinear(rng, "layer0", cfg.DimIn(), cfg.Out, cfg.DType)
	if err != nil {
		return nil, err
	}
	return &SingleLayer{cfg: cfg, layer: layer}, nil
}

// Layer returns the layer.
func (s *SingleLayer) Layer() *Linear {
	return s.layer
}

// Parameters returns the weight and the bias.
func (s *SingleLayer) Parameters() []*Parameter {
	return s.layer.Parameters()
}

// Columns returns the number of input columns a launch covers.
func (s *SingleLayer) Columns() int {
	return s.cfg.NumBlocks * s.cfg.BlockWidth
}

// NewInput creates a differentiable [DimIn, Columns] input drawn from
// U(-1/√Columns, 1/√Columns).
func (s *SingleLayer) NewInput(rng *rand.Rand) (*array.Array, error) {
	return Uniform(rng, array.Shape{s.cfg.DimIn(), s.Columns()}, FanInBound(s.Columns()), s.cfg.DType)
}

// NewOutput creates a differentiable zero [Out, Columns] output.
func (s *SingleLayer) NewOutput() (*array.Array, error) {
	return array.New(array.Shape{s.cfg.Out, s.Columns()}, s.cfg.DType, array.RequiresGrad())
}

// Kernel returns the kernel body reading input and writing output.
func (s *SingleLayer) Kernel(input, output *array.Array) kernel.Kernel {
	dimIn, width := s.cfg.DimIn(), s.cfg.BlockWidth
	return kernel.Kernel{
		Name: "single layer",
		Body: func(t *kernel.Thread) {
			i := t.TID()[0]
			f := t.TileLoad(input, 0, i, dimIn, width)
			o := s.layer.Apply(t, f, tile.ReLU)
			t.TileStore(output, 0, i, o)
		},
	}
}

// Forward launches one block per tile of columns.
func (s *SingleLayer) Forward(ctx context.Context, input, output *array.Array, opts ...kernel.Option) error {
	want := array.Shape{s.cfg.DimIn(), s.Columns()}
	if !input.Shape().Equal(want) {
		return errors.Wrapf(array.ErrShapeMismatch, "nn: single layer input has shape %s, want %s", input.Shape(), want)
	}
	return kernel.LaunchTiled(ctx, s.Kernel(input, output), []int{s.cfg.NumBlocks}, s.cfg.BlockWidth, opts...)
}
