// Package asset converts between images and the [3, width·height] channel-major
// Arrays the MLP is fitted to. Pixel (x, y) is column y·width+x, channel values
// are in [0, 1].
package asset

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
)

// Channels is the number of color channels of a reference image.
const Channels = 3

// LoadReference opens the image at path, resizes it to width×height with
// linear filtering and returns its RGB channels.
func LoadReference(path string, width, height int, dtype array.DataType) (*array.Array, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "asset: open %s", path)
	}
	return FromImage(img, width, height, dtype)
}

// FromImage resizes img to width×height and returns its RGB channels.
// Alpha is ignored.
func FromImage(img image.Image, width, height int, dtype array.DataType) (*array.Array, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "asset: invalid size %d×%d", width, height)
	}
	resized := imaging.Resize(img, width, height, imaging.Linear)
	n := width * height
	values := make([]float32, Channels*n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := resized.NRGBAAt(x, y)
			i := y*width + x
			values[i] = float32(c.R) / 255
			values[n+i] = float32(c.G) / 255
			values[2*n+i] = float32(c.B) / 255
		}
	}
	return array.FromSlice(values, array.Shape{Channels, n}, dtype)
}

// Synthetic returns a smooth width×height test pattern: red ramps along x,
// green along y and blue is a diagonal sine wave.
func Synthetic(width, height int, dtype array.DataType) (*array.Array, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "asset: invalid size %d×%d", width, height)
	}
	n := width * height
	values := make([]float32, Channels*n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u, v := float64(x)/float64(width), float64(y)/float64(height)
			i := y*width + x
			values[i] = float32(u)
			values[n+i] = float32(v)
			values[2*n+i] = float32(0.5 + 0.5*math.Sin(2*math.Pi*(u+v)))
		}
	}
	return array.FromSlice(values, array.Shape{Channels, n}, dtype)
}

// ToImage converts a [3, width·height] Array to an image, clamping channel
// values to [0, 1].
func ToImage(a *array.Array, width, height int) (*image.NRGBA, error) {
	want := array.Shape{Channels, width * height}
	if !a.Shape().Equal(want) {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "asset: array of shape %s is not a %d×%d image", a.Shape(), width, height)
	}
	values := a.Float32s()
	n := width * height
	img := imaging.New(width, height, color.NRGBA{A: 255})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			img.SetNRGBA(x, y, color.NRGBA{
				R: toByte(values[i]),
				G: toByte(values[n+i]),
				B: toByte(values[2*n+i]),
				A: 255,
			})
		}
	}
	return img, nil
}

// SavePrediction writes a [3, width·height] Array as an image. The format
// follows the extension of path.
func SavePrediction(path string, a *array.Array, width, height int) error {
	img, err := ToImage(a, width, height)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "asset: save %s", path)
	}
	return nil
}

func toByte(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}
