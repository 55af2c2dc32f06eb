package reference

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tilegrad/internal/array"
)

func TestForwardBackward_SingleLayer(t *testing.T) {
	layers := []Layer{{
		W: mat.NewDense(1, 2, []float64{1, -1}),
		B: mat.NewDense(1, 1, []float64{0.5}),
	}}
	input := mat.NewDense(2, 2, []float64{1, 2, 3, 0})

	tr, err := Forward(layers, input)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2.5}, tr.Out.RawMatrix().Data)

	grads, dx, err := Backward(layers, tr, Ones(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, grads[0].W.RawMatrix().Data)
	assert.Equal(t, []float64{1}, grads[0].B.RawMatrix().Data)
	assert.Equal(t, []float64{0, 1, 0, -1}, mat.DenseCopyOf(dx).RawMatrix().Data)
}

func TestMSE(t *testing.T) {
	out := mat.NewDense(1, 2, []float64{1, 2})
	ref := mat.NewDense(1, 2, nil)
	assert.InDelta(t, 2.5, MSE(out, ref), 1e-12)
	assert.Equal(t, []float64{1, 2}, MSEGrad(out, ref).RawMatrix().Data)
}

func TestBackward_FiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := func(r, c int) *mat.Dense {
		data := make([]float64, r*c)
		for i := range data {
			data[i] = rng.Float64()*2 - 1
		}
		return mat.NewDense(r, c, data)
	}
	layers := []Layer{
		{W: random(5, 4), B: random(5, 1)},
		{W: random(3, 5), B: random(3, 1)},
	}
	input := random(4, 6)
	ref := random(3, 6)

	loss := func() float64 {
		tr, err := Forward(layers, input)
		require.NoError(t, err)
		return MSE(tr.Out, ref)
	}
	tr, err := Forward(layers, input)
	require.NoError(t, err)
	grads, dx, err := Backward(layers, tr, MSEGrad(tr.Out, ref))
	require.NoError(t, err)

	const h = 1e-6
	check := func(name string, m, grad mat.Matrix, set func(i, j int, v float64)) {
		r, c := m.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := m.At(i, j)
				set(i, j, v+h)
				up := loss()
				set(i, j, v-h)
				down := loss()
				set(i, j, v)
				assert.InDelta(t, (up-down)/(2*h), grad.At(i, j), 1e-5, "%s (%d, %d)", name, i, j)
			}
		}
	}
	for l := range layers {
		check("W", layers[l].W, grads[l].W, layers[l].W.Set)
		check("B", layers[l].B, grads[l].B, layers[l].B.Set)
	}
	check("input", input, dx, input.Set)
}

func TestLayers(t *testing.T) {
	w, err := array.FromSlice([]float32{1, 2, 3, 4, 5, 6}, array.Shape{2, 3}, array.Float32)
	require.NoError(t, err)
	b, err := array.FromSlice([]float32{1, 2}, array.Shape{2, 1}, array.Float32)
	require.NoError(t, err)

	layers, err := Layers(w, b)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, 6.0, layers[0].W.At(1, 2))

	_, err = Layers(w)
	assert.Error(t, err)
	_, err = Layers(w, w)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))

	flat, err := array.New(array.Shape{6}, array.Float32)
	require.NoError(t, err)
	_, err = Dense(flat)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))
}

func TestCompare(t *testing.T) {
	got, err := array.FromSlice([]float32{1, 2.005, 3}, array.Shape{1, 3}, array.Float32)
	require.NoError(t, err)

	maxDiff, err := Compare(got, mat.NewDense(1, 3, []float64{1, 2, 3}), 1e-2, 1e-2)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, maxDiff, 1e-6)

	_, err = Compare(got, mat.NewDense(1, 3, []float64{1, 2, 4}), 1e-2, 1e-2)
	assert.ErrorContains(t, err, "element (0, 2)")

	_, err = Compare(got, mat.NewDense(3, 1, nil), 1e-2, 1e-2)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))

	back, err := ToArray(mat.NewDense(1, 3, []float64{1, 2, 3}), array.Float64)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, back.Float64s())
}
