package array

import (
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GradientBufferMatchesShape(t *testing.T) {
	tests := []struct {
		dtype    DataType
		gradType DataType
	}{
		{Float32, Float32},
		{Float64, Float64},
		{Float16, Float32},
	}
	for _, tt := range tests {
		t.Run(tt.dtype.String(), func(t *testing.T) {
			a, err := New(Shape{3, 4}, tt.dtype, RequiresGrad())
			require.NoError(t, err)
			require.True(t, a.RequiresGrad())
			assert.True(t, a.Grad().Shape().Equal(a.Shape()))
			assert.Equal(t, tt.gradType, a.Grad().DType())
			assert.Equal(t, make([]float32, 12), a.Grad().Float32s())
		})
	}
}

func TestNew_InvalidShape(t *testing.T) {
	_, err := New(Shape{3, 0}, Float32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestFromSlice(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, Float32)
	require.NoError(t, err)
	assert.Equal(t, float32(6), a.At(1, 2))
	assert.Equal(t, Device, a.Space())

	_, err = FromSlice([]float32{1, 2}, Shape{2, 3}, Float32)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestFromSlice_Float16Rounds(t *testing.T) {
	a, err := FromSlice([]float32{0.1, 1, 65504}, Shape{3}, Float16)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, a.At(0), 1e-3)
	assert.Equal(t, float32(65504), a.At(2))
}

func TestOffset_OutOfBounds(t *testing.T) {
	a, err := New(Shape{2, 2}, Float32)
	require.NoError(t, err)

	_, err = a.Offset(2, 0)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = a.Offset(0)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Panics(t, func() { a.At(0, -1) })
}

func TestTranspose(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, Float32, RequiresGrad())
	require.NoError(t, err)

	at, err := a.T()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, at.Shape())
	assert.False(t, at.Contiguous())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, at.Float32s())

	// Writes through the view land in the parent.
	at.Set(10, 2, 1)
	assert.Equal(t, float32(10), a.At(1, 2))
	at.Grad().AddAt(at.Grad().Offset2(0, 1), 1)
	assert.Equal(t, float32(1), a.Grad().At(1, 0))

	_, err = at.Flatten()
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestFlatten_SharesStorage(t *testing.T) {
	a, err := New(Shape{2, 3}, Float32, RequiresGrad())
	require.NoError(t, err)
	flat, err := a.Flatten()
	require.NoError(t, err)
	assert.Equal(t, Shape{6}, flat.Shape())

	flat.Set(7, 4)
	assert.Equal(t, float32(7), a.At(1, 1))
	flat.Grad().Set(3, 5)
	assert.Equal(t, float32(3), a.Grad().At(1, 2))
}

func TestAddAt_ConcurrentAccumulation(t *testing.T) {
	for _, dtype := range []DataType{Float32, Float64} {
		a, err := New(Shape{1}, dtype)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for g := 0; g < 16; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					a.AddAt(0, 0.5)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, float32(8000), a.At(0), dtype.String())
	}

	half, err := New(Shape{1}, Float16)
	require.NoError(t, err)
	assert.Panics(t, func() { half.AddAt(0, 1) })
}

func TestCheckFinite(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3}, Shape{3}, Float32)
	require.NoError(t, err)
	require.NoError(t, a.CheckFinite())

	a.Set(float32(math.NaN()), 1)
	err = a.CheckFinite()
	assert.True(t, errors.Is(err, ErrNumericDivergence))
	assert.Contains(t, err.Error(), "first at flat index 1")
}

func TestFillZeroAndCopy(t *testing.T) {
	a, err := New(Shape{4, 5}, Float32, RequiresGrad())
	require.NoError(t, err)
	a.Fill(2)
	a.Grad().Fill(3)
	a.ZeroGrad()
	assert.Equal(t, make([]float32, 20), a.Grad().Float32s())

	b, err := New(Shape{4, 5}, Float64)
	require.NoError(t, err)
	require.NoError(t, b.CopyFrom(a))
	assert.Equal(t, 2.0, b.Float64s()[19])

	host := b.ToSpace(Host)
	assert.Equal(t, Host, host.Space())
	assert.False(t, host.RequiresGrad())

	c, err := New(Shape{5, 4}, Float32)
	require.NoError(t, err)
	assert.True(t, errors.Is(c.CopyFrom(a), ErrShapeMismatch))
}

func TestParseDataType(t *testing.T) {
	dt, ok := ParseDataType("half")
	require.True(t, ok)
	assert.Equal(t, Float16, dt)
	_, ok = ParseDataType("int8")
	assert.False(t, ok)
}

func TestSetFloat64s(t *testing.T) {
	a, err := New(Shape{2, 2}, Float64)
	require.NoError(t, err)
	require.NoError(t, a.SetFloat64s([]float64{1, 2, 3, 4}))
	at, err := a.T()
	require.NoError(t, err)
	require.NoError(t, at.SetFloat64s([]float64{10, 20, 30, 40}))
	assert.Equal(t, []float64{10, 30, 20, 40}, a.Float64s())
	assert.True(t, errors.Is(a.SetFloat64s([]float64{1}), ErrShapeMismatch))
}

func TestToSpace_CopiesViewsAndHalf(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4, 5, 0.1}, Shape{2, 3}, Float16, RequiresGrad())
	require.NoError(t, err)
	at, err := a.T()
	require.NoError(t, err)

	host := at.ToSpace(Host)
	assert.Equal(t, Host, host.Space())
	assert.Equal(t, Float16, host.DType())
	assert.Equal(t, Shape{3, 2}, host.Shape())
	assert.True(t, host.Contiguous())
	assert.Equal(t, at.Float32s(), host.Float32s())

	host.Set(9, 0, 0)
	assert.Equal(t, float32(1), a.At(0, 0), "the copy does not alias its source")
}
