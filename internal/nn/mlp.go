package nn

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// MLP is a coordinate network: each thread encodes its pixel position,
// the block evaluates the layers on the gathered encodings, and each thread
// scores its own pixel against the reference image.
type MLP struct {
	cfg Config
	net *Sequential
}

// Buffers are the global Arrays an MLP launch reads and writes.
// Pixel (row, col) is column row·Width+col of every buffer.
type Buffers struct {
	Input     *array.Array // [DimIn, pixels], encodings written by the kernel
	Output    *array.Array // [Out, pixels], predictions written by the kernel
	Reference *array.Array // [Out, pixels], target image
	Loss      *array.Array // [1], mean squared error; differentiable
}

// NewMLP creates the network with ReLU after every layer, parameters drawn
// from a rng seeded with cfg.Seed.
func NewMLP(cfg Config) (*MLP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	net, err := NewSequential(rng, cfg.LayerDims(), tile.ReLU, cfg.DType)
	if err != nil {
		return nil, err
	}
	return &MLP{cfg: cfg, net: net}, nil
}

// Config returns the configuration.
func (m *MLP) Config() Config {
	return m.cfg
}

// Net returns the layer stack.
func (m *MLP) Net() *Sequential {
	return m.net
}

// Parameters returns weight and bias of each layer, in layer order.
func (m *MLP) Parameters() []*Parameter {
	return m.net.Parameters()
}

// NewBuffers allocates the input, output and loss Arrays around reference,
// which must be [Out, Width·Height].
func (m *MLP) NewBuffers(reference *array.Array) (*Buffers, error) {
	want := array.Shape{m.cfg.Out, m.cfg.Pixels()}
	if !reference.Shape().Equal(want) {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "nn: reference image has shape %s, want %s", reference.Shape(), want)
	}
	input, err := array.New(array.Shape{m.cfg.DimIn(), m.cfg.Pixels()}, m.cfg.DType)
	if err != nil {
		return nil, err
	}
	output, err := array.New(want, m.cfg.DType)
	if err != nil {
		return nil, err
	}
	loss, err := array.New(array.Shape{1}, m.cfg.DType, array.RequiresGrad())
	if err != nil {
		return nil, err
	}
	return &Buffers{Input: input, Output: output, Reference: reference, Loss: loss}, nil
}

// Kernel returns the kernel body bound to b. It must be launched over
// [Height, Width] with Config.BlockWidth threads per block.
func (m *MLP) Kernel(b *Buffers) kernel.Kernel {
	cfg := m.cfg
	scale := MSEScale(cfg)
	return kernel.Kernel{
		Name: "mlp",
		Body: func(t *kernel.Thread) {
			tid := t.TID()
			row, col := tid[0], tid[1]
			pixel := row*cfg.Width + col

			f := t.TileOf(PositionalEncoding(row, col, cfg.Height, cfg.Width, cfg.NumFreq))
			t.TileStore(b.Input, 0, t.BlockIndex(), f)

			o := m.net.Apply(t, f)
			t.TileStore(b.Output, 0, t.BlockIndex(), o)

			addSquaredError(t, b.Loss, b.Reference, t.Untile(o), pixel, scale)
		},
	}
}

// Forward launches the network over the whole image. The loss is added to
// b.Loss, so callers zero it between iterations.
func (m *MLP) Forward(ctx context.Context, b *Buffers, opts ...kernel.Option) error {
	return kernel.Launch(ctx, m.Kernel(b), []int{m.cfg.Height, m.cfg.Width}, m.cfg.BlockWidth, opts...)
}
