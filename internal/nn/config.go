package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
)

// Config describes the coordinate network and the image it is fitted to.
type Config struct {
	Width        int     // Image width in pixels
	Height       int     // Image height in pixels
	NumFreq      int     // Positional encoding frequencies; the input dimension is 4·NumFreq
	Hidden       int     // Width of the hidden layers
	HiddenLayers int     // Number of hidden layers
	Out          int     // Output channels
	BlockWidth   int     // Threads per block
	NumBlocks    int     // Blocks of the pre-tiled single-layer scenario
	Seed         int64   // Parameter initialization seed
	LR           float32 // Learning rate
	DType        array.DataType
}

// DefaultConfig returns the 64×64, 4-frequency, 16-wide, 32-thread configuration.
func DefaultConfig() Config {
	return Config{
		Width:        64,
		Height:       64,
		NumFreq:      4,
		Hidden:       16,
		HiddenLayers: 2,
		Out:          3,
		BlockWidth:   32,
		NumBlocks:    36,
		Seed:         45,
		LR:           0.001,
		DType:        array.Float32,
	}
}

// DimIn returns the input dimension of the first layer.
func (c Config) DimIn() int {
	return FeaturesPerFrequency * c.NumFreq
}

// Pixels returns Width·Height.
func (c Config) Pixels() int {
	return c.Width * c.Height
}

// LayerDims returns the layer boundaries: DimIn, Hidden repeated HiddenLayers times, Out.
func (c Config) LayerDims() []int {
	dims := []int{c.DimIn()}
	for range c.HiddenLayers {
		dims = append(dims, c.Hidden)
	}
	return append(dims, c.Out)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"width", c.Width}, {"height", c.Height}, {"frequencies", c.NumFreq},
		{"output channels", c.Out}, {"block width", c.BlockWidth}, {"blocks", c.NumBlocks},
	} {
		if f.v <= 0 {
			return errors.Errorf("nn: %s must be positive, got %d", f.name, f.v)
		}
	}
	if c.HiddenLayers < 0 || (c.HiddenLayers > 0 && c.Hidden <= 0) {
		return errors.Errorf("nn: invalid hidden layers %d×%d", c.HiddenLayers, c.Hidden)
	}
	if c.Pixels()%c.BlockWidth != 0 {
		return errors.Errorf("nn: %d pixels are not a multiple of block width %d", c.Pixels(), c.BlockWidth)
	}
	if c.DType == array.Float16 {
		return errors.Errorf("nn: %s parameters are not supported", c.DType)
	}
	return nil
}
