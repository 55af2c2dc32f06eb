package autodiff_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/autodiff/ops"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

type countingReleaser struct{ released int }

func (r *countingReleaser) Release() { r.released++ }

// squareChain records y = square(w) by hand, the way a single-block launch
// of load -> map -> store would, and returns the arrays involved.
func squareChain(t *testing.T, tape *autodiff.Tape) (w, y *array.Array) {
	t.Helper()
	var err error
	w, err = array.FromSlice([]float32{1, -2, 3, 0.5}, array.Shape{2, 2}, array.Float32, array.RequiresGrad())
	require.NoError(t, err)
	y, err = array.New(array.Shape{2, 2}, array.Float32, array.RequiresGrad())
	require.NoError(t, err)

	arena := tile.NewArena(8)
	in, err := arena.Alloc(2, 2)
	require.NoError(t, err)
	out, err := arena.Alloc(2, 2)
	require.NoError(t, err)
	tile.LoadLane(in, w, 0, 0, 0, 1)
	tile.MapLane(out, tile.Square, in, 0, 1)
	tile.StoreLane(out, y, 0, 0, 0, 1)

	tape.Append(ops.NewLoadOp(w, 0, 0, in))
	tape.Append(ops.NewMapOp(tile.Square, in, out))
	tape.Append(ops.NewStoreOp(y, 0, 0, out))
	return w, y
}

func TestTape_StateMachine(t *testing.T) {
	tape := autodiff.NewTape()
	assert.Equal(t, autodiff.Inactive, tape.State())
	assert.False(t, tape.IsRecording())

	require.NoError(t, tape.Begin())
	assert.True(t, tape.IsRecording())
	err := tape.Begin()
	assert.True(t, errors.Is(err, autodiff.ErrTapeState), "begin while recording")

	err = tape.Backward(nil)
	assert.True(t, errors.Is(err, autodiff.ErrTapeState), "backward while recording")

	require.NoError(t, tape.End())
	assert.Equal(t, autodiff.Recorded, tape.State())
	assert.True(t, errors.Is(tape.End(), autodiff.ErrTapeState))

	require.NoError(t, tape.Backward(nil))
	assert.Equal(t, autodiff.Inactive, tape.State())

	err = tape.Backward(nil)
	assert.True(t, errors.Is(err, autodiff.ErrTapeState), "backward while inactive")
}

func TestTape_AppendOnlyWhileRecording(t *testing.T) {
	tape := autodiff.NewTape()
	arena := tile.NewArena(4)
	tl, err := arena.Alloc(2, 2)
	require.NoError(t, err)

	tape.Append(ops.NewMapOp(tile.ReLU, tl, tl))
	assert.Equal(t, 0, tape.Len())
	assert.False(t, tape.Retain(&countingReleaser{}))

	require.NoError(t, tape.Record(func() error {
		tape.Append(ops.NewMapOp(tile.ReLU, tl, tl))
		return nil
	}))
	assert.Equal(t, 1, tape.Len())
	assert.Equal(t, map[ops.Kind]int{ops.KindMap: 1}, tape.Counts())
}

func TestTape_RecordEndsOnErrorAndPanic(t *testing.T) {
	tape := autodiff.NewTape()
	boom := errors.New("boom")
	err := tape.Record(func() error { return boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, autodiff.Recorded, tape.State())

	assert.Panics(t, func() {
		_ = tape.Record(func() error { panic("kernel bug") })
	})
	assert.Equal(t, autodiff.Recorded, tape.State())
	assert.False(t, tape.IsRecording())
}

func TestTape_BackwardSquare(t *testing.T) {
	tape := autodiff.NewTape(autodiff.WithParallel(parallel.Sequential()))
	var w, y *array.Array
	require.NoError(t, tape.Record(func() error {
		w, y = squareChain(t, tape)
		return nil
	}))
	assert.Equal(t, []float32{1, 4, 9, 0.25}, y.Float32s())

	require.NoError(t, tape.Backward(y))
	assert.Equal(t, []float32{2, -4, 6, 1}, w.Grad().Float32s(), "d/dw sum(w^2) = 2w")
	assert.Equal(t, 0, tape.Len(), "log discarded")
}

func TestTape_RetainGraphAccumulates(t *testing.T) {
	tape := autodiff.NewTape()
	rel := &countingReleaser{}
	var w, y *array.Array
	require.NoError(t, tape.Record(func() error {
		w, y = squareChain(t, tape)
		require.True(t, tape.Retain(rel))
		return nil
	}))

	require.NoError(t, tape.Backward(y, autodiff.RetainGraph()))
	first := w.Grad().Float32s()
	assert.Equal(t, autodiff.Recorded, tape.State())
	assert.Equal(t, 0, rel.released)

	require.NoError(t, tape.Backward(y))
	for i, g := range w.Grad().Float32s() {
		assert.InDelta(t, 2*first[i], g, 1e-6, "element %d doubles", i)
	}
	assert.Equal(t, 1, rel.released, "retained arenas released with the log")
	assert.Equal(t, autodiff.Inactive, tape.State())
}

func TestTape_SeedGrad(t *testing.T) {
	tape := autodiff.NewTape()
	var w, y *array.Array
	require.NoError(t, tape.Record(func() error {
		w, y = squareChain(t, tape)
		return nil
	}))

	bad, err := array.New(array.Shape{4}, array.Float32)
	require.NoError(t, err)
	err = tape.Backward(y, autodiff.WithSeedGrad(bad))
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))
	assert.Equal(t, autodiff.Recorded, tape.State(), "failed seeding keeps the log")

	noGrad, err := array.New(array.Shape{2, 2}, array.Float32)
	require.NoError(t, err)
	assert.Error(t, tape.Backward(noGrad))

	seed, err := array.FromSlice([]float32{1, 0, 0, 2}, array.Shape{2, 2}, array.Float32)
	require.NoError(t, err)
	require.NoError(t, tape.Backward(y, autodiff.WithSeedGrad(seed)))
	assert.Equal(t, []float32{2, 0, 0, 2}, w.Grad().Float32s())
}

func TestTape_Discard(t *testing.T) {
	tape := autodiff.NewTape()
	rel := &countingReleaser{}
	require.NoError(t, tape.Begin())
	require.True(t, tape.Retain(rel))
	assert.True(t, errors.Is(tape.Discard(), autodiff.ErrTapeState))
	require.NoError(t, tape.End())
	require.NoError(t, tape.Discard())
	assert.Equal(t, 1, rel.released)
	assert.Equal(t, autodiff.Inactive, tape.State())

	// Beginning again on a recorded tape clears the stale log.
	require.NoError(t, tape.Record(func() error {
		squareChain(t, tape)
		return nil
	}))
	require.NoError(t, tape.Begin())
	assert.Equal(t, 0, tape.Len())
}
