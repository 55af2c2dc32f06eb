package asset

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilegrad/internal/array"
)

func TestFromImage_ChannelMajorLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})

	a, err := FromImage(img, 2, 2, array.Float32)
	require.NoError(t, err)
	assert.Equal(t, array.Shape{3, 4}, a.Shape())
	assert.Equal(t, []float32{
		0, 1, 0, 0, // red
		0, 0, 1, 0, // green
		0, 0, 0, 1, // blue
	}, a.Float32s())
}

func TestSynthetic(t *testing.T) {
	a, err := Synthetic(8, 4, array.Float16)
	require.NoError(t, err)
	assert.Equal(t, array.Shape{3, 32}, a.Shape())
	assert.Equal(t, array.Float16, a.DType())
	require.NoError(t, a.CheckFinite())
	for _, v := range a.Float32s() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.InDelta(t, 0.5, a.At(0, 4), 1e-3)

	_, err = Synthetic(0, 4, array.Float32)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))
}

func TestSavePredictionRoundTrip(t *testing.T) {
	const w, h = 8, 8
	ref, err := Synthetic(w, h, array.Float32)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prediction.png")
	require.NoError(t, SavePrediction(path, ref, w, h))

	back, err := LoadReference(path, w, h, array.Float32)
	require.NoError(t, err)
	want := ref.Float32s()
	for i, v := range back.Float32s() {
		assert.InDelta(t, want[i], v, 1.0/255+1e-6, "element %d", i)
	}
}

func TestToImage_ClampsAndChecksShape(t *testing.T) {
	a, err := array.FromSlice([]float32{-1, 2, 0.5}, array.Shape{3, 1}, array.Float32)
	require.NoError(t, err)
	img, err := ToImage(a, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 255, B: 127, A: 255}, img.NRGBAAt(0, 0))

	_, err = ToImage(a, 2, 1)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))

	_, err = LoadReference(filepath.Join(t.TempDir(), "missing.png"), 1, 1, array.Float32)
	assert.Error(t, err)
}
