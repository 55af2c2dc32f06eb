package nn

import (
	"math"

	"github.com/born-ml/tilegrad/internal/tile"
)

// FeaturesPerFrequency is the number of encoding components per frequency:
// sin and cos of each of the two coordinates.
const FeaturesPerFrequency = 4

// PositionalEncoding encodes pixel (row, col) of a height×width image.
//
// Coordinates are first normalized to [-1, 1). For frequency s the scale is
// 2^s·π and the components are laid out as
//
//	[s*4+0] = sin(x·scale)
//	[s*4+1] = cos(x·scale)
//	[s*4+2] = sin(y·scale)
//	[s*4+3] = cos(y·scale)
//
// where x is the normalized row and y the normalized column.
func PositionalEncoding(row, col, height, width, numFreq int) *tile.Value {
	x := (float64(row)/float64(height) - 0.5) * 2
	y := (float64(col)/float64(width) - 0.5) * 2

	v := tile.NewValue(FeaturesPerFrequency * numFreq)
	for s := 0; s < numFreq; s++ {
		scale := math.Pow(2, float64(s)) * math.Pi
		v.Set(s*4+0, float32(math.Sin(x*scale)))
		v.Set(s*4+1, float32(math.Cos(x*scale)))
		v.Set(s*4+2, float32(math.Sin(y*scale)))
		v.Set(s*4+3, float32(math.Cos(y*scale)))
	}
	return v
}
