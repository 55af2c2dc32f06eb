package tile

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilegrad/internal/array"
)

// denseTile allocates a rows×cols tile filled from values.
func denseTile(t *testing.T, arena *Arena, rows, cols int, values ...float32) *Tile {
	t.Helper()
	tl, err := arena.Alloc(rows, cols)
	require.NoError(t, err)
	for e, v := range values {
		tl.Set(e/cols, e%cols, v)
	}
	return tl
}

// allLanes runs fn for every lane of a block of the given width.
func allLanes(width int, fn func(lane int)) {
	for lane := 0; lane < width; lane++ {
		fn(lane)
	}
}

func TestMatMulLane(t *testing.T) {
	arena := NewArena(64)
	a := denseTile(t, arena, 2, 3, 1, 2, 3, 4, 5, 6)
	b := denseTile(t, arena, 3, 2, 7, 8, 9, 10, 11, 12)
	require.NoError(t, CheckMatMul(a, b))

	for _, width := range []int{1, 3, 4, 32} {
		out, err := arena.Alloc(2, 2)
		require.NoError(t, err)
		allLanes(width, func(lane int) { MatMulLane(out, a, b, lane, width) })
		assert.Equal(t, []float32{58, 64, 139, 154}, out.Values(), "width %d", width)
	}
}

func TestCheckMatMul_InnerMismatch(t *testing.T) {
	arena := NewMeasuringArena()
	a, _ := arena.Alloc(4, 3)
	b, _ := arena.Alloc(2, 5)
	err := CheckMatMul(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))
}

func TestBroadcast_IsAView(t *testing.T) {
	arena := NewArena(8)
	b := denseTile(t, arena, 3, 1, 1, 2, 3)
	view, err := Broadcast(b, 3, 4)
	require.NoError(t, err)
	assert.True(t, view.IsView())
	assert.Equal(t, 3, arena.Footprint(), "broadcast must not allocate")
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3}, view.Values())

	_, err = Broadcast(b, 2, 4)
	assert.True(t, errors.Is(err, array.ErrShapeMismatch))
}

func TestAddAndMapLane(t *testing.T) {
	arena := NewArena(32)
	a := denseTile(t, arena, 2, 2, -1, 2, -3, 4)
	b := denseTile(t, arena, 2, 1, 10, 20)
	bb, err := Broadcast(b, 2, 2)
	require.NoError(t, err)
	require.NoError(t, CheckSameShape("add", a, bb))

	sum, _ := arena.Alloc(2, 2)
	allLanes(3, func(lane int) { AddLane(sum, a, bb, lane, 3) })
	assert.Equal(t, []float32{9, 12, 17, 24}, sum.Values())

	relu, _ := arena.Alloc(2, 2)
	allLanes(2, func(lane int) { MapLane(relu, ReLU, a, lane, 2) })
	assert.Equal(t, []float32{0, 2, 0, 4}, relu.Values())

	assert.True(t, errors.Is(CheckSameShape("add", a, b), array.ErrShapeMismatch))
}

func TestLoadStoreLane(t *testing.T) {
	src, err := array.FromSlice([]float32{
		0, 1, 2, 3,
		4, 5, 6, 7,
	}, array.Shape{2, 4}, array.Float32)
	require.NoError(t, err)

	row0, col0, err := CheckRegion("load", src, 0, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, row0)
	assert.Equal(t, 2, col0)

	arena := NewArena(4)
	tl, _ := arena.Alloc(2, 2)
	allLanes(2, func(lane int) { LoadLane(tl, src, row0, col0, lane, 2) })
	assert.Equal(t, []float32{2, 3, 6, 7}, tl.Values())

	dst, err := array.New(array.Shape{2, 4}, array.Float16)
	require.NoError(t, err)
	allLanes(2, func(lane int) { StoreLane(tl, dst, 0, 0, lane, 2) })
	assert.Equal(t, []float32{2, 3, 0, 0, 6, 7, 0, 0}, dst.Float32s())
}

func TestCheckRegion_Rejections(t *testing.T) {
	a, err := array.New(array.Shape{16, 64}, array.Float32)
	require.NoError(t, err)
	host := a.ToSpace(array.Host)
	flat, err := array.New(array.Shape{64}, array.Float32)
	require.NoError(t, err)

	tests := []struct {
		name     string
		arr      *array.Array
		bRow     int
		bCol     int
		rows     int
		cols     int
		sentinel error
	}{
		{"past last column block", a, 0, 2, 16, 32, array.ErrOutOfBounds},
		{"too many rows", a, 0, 0, 17, 32, array.ErrOutOfBounds},
		{"negative block", a, -1, 0, 16, 32, array.ErrOutOfBounds},
		{"host memory", host, 0, 0, 16, 32, array.ErrMemorySpace},
		{"1-D array", flat, 0, 0, 1, 32, array.ErrShapeMismatch},
		{"empty tile", a, 0, 0, 0, 32, array.ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CheckRegion("load", tt.arr, tt.bRow, tt.bCol, tt.rows, tt.cols)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), err.Error())
		})
	}

	_, _, err = CheckRegion("load", a, 0, 1, 16, 32)
	assert.NoError(t, err)
}

func TestGatherScatterLane(t *testing.T) {
	arena := NewArena(6)
	tl, _ := arena.Alloc(3, 2)
	GatherLane(tl, ValueOf(1, 2, 3), 0)
	GatherLane(tl, ValueOf(4, 5, 6), 1)
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, tl.Values())

	v := NewValue(3)
	ScatterLane(tl, v, 1)
	assert.Equal(t, []float32{4, 5, 6}, v.Data())
}

func TestArena(t *testing.T) {
	arena := NewArena(10)
	_, err := arena.Alloc(2, 4)
	require.NoError(t, err)
	_, err = arena.Alloc(2, 2)
	require.Error(t, err)
	assert.Equal(t, 8, arena.Footprint())
	_, err = arena.Alloc(0, 2)
	require.Error(t, err)

	m := NewMeasuringArena()
	tl, err := m.Alloc(16, 32)
	require.NoError(t, err)
	assert.True(t, tl.Shaped())
	assert.Equal(t, 512, m.Footprint())
	assert.Equal(t, 1, m.NumTiles())
}

func TestPool_ReusesArenasByCapacity(t *testing.T) {
	p := NewPool()
	a := p.Get(128)
	assert.Equal(t, 128, a.Capacity())
	_, err := a.Alloc(4, 4)
	require.NoError(t, err)
	p.Put(a)

	b := p.Get(128)
	assert.Equal(t, 0, b.Footprint(), "pooled arenas come back reset")
	assert.Equal(t, 64, p.Get(64).Capacity())
}

func TestTileGrad(t *testing.T) {
	tl := newTile(2, 3, make([]float32, 6))
	g := tl.Grad()
	require.Len(t, g, 6)
	g[4] = 1
	assert.Equal(t, float32(1), tl.Grad()[4])
	tl.ZeroGrad()
	assert.Equal(t, float32(0), tl.Grad()[4])
	assert.Equal(t, "tile[2x3]", tl.String())
}

func TestTileZeroGrad_AllocatesOnFirstUse(t *testing.T) {
	tl := newTile(2, 2, make([]float32, 4))
	tl.ZeroGrad()
	assert.Equal(t, make([]float32, 4), tl.Grad())
}
