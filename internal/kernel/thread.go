package kernel

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/autodiff/ops"
	"github.com/born-ml/tilegrad/internal/tile"
)

// Thread is one lane of a block. It is the only handle a kernel body has on
// block-local storage.
//
// Tile operators are collective: every lane of the block must call the same
// operators, with the same arguments, in the same order. Each lane computes
// the output elements whose flat index is congruent to its lane id modulo the
// block width, and no lane returns from an operator before the whole output
// is in place. Tiles must not be read element-wise inside a kernel body;
// convert them back to per-lane values with Untile.
type Thread struct {
	b    *block
	lane int
	tid  []int
}

// Lane returns the lane id within the block, in [0, BlockWidth()).
func (t *Thread) Lane() int { return t.lane }

// BlockIndex returns the linear index of the block.
func (t *Thread) BlockIndex() int { return t.b.index }

// BlockCoords returns the coordinates of the block in the launch grid.
func (t *Thread) BlockCoords() []int { return slices.Clone(t.b.coords) }

// BlockWidth returns the number of lanes per block.
func (t *Thread) BlockWidth() int { return t.b.width }

// TID returns the coordinates of this thread in the iteration domain.
// For tiled launches every lane of a block shares the block coordinates.
func (t *Thread) TID() []int { return slices.Clone(t.tid) }

func (t *Thread) sync() {
	if err := t.b.barrier.wait(); err != nil {
		panic(err)
	}
}

// enter runs prepare on lane 0 and publishes the resulting slot to all lanes
// once they have arrived. Lanes whose key differs from lane 0's fail the block.
func (t *Thread) enter(key collective, prepare func(s *slot) error) slot {
	b := t.b
	if t.lane == 0 {
		s := slot{key: key}
		s.err = prepare(&s)
		b.slot = s
	}
	t.sync()
	s := b.slot
	if s.key != key {
		panic(errors.Wrapf(ErrDivergentBlock, "lane %d called %s while lane 0 called %s", t.lane, key.op, s.key.op))
	}
	if s.err != nil {
		panic(s.err)
	}
	return s
}

// exit records the operator on lane 0, if the launch is recorded, and waits
// for every lane to finish its share.
func (t *Thread) exit(record func() ops.Operation) {
	if t.lane == 0 && t.b.tape != nil && record != nil {
		t.b.tape.Append(record())
	}
	t.sync()
}

// TileLoad cooperatively copies the rows×cols block at block offsets
// (blockRow, blockCol) of src into a new tile. Offsets are in units of the
// tile extents.
func (t *Thread) TileLoad(src *array.Array, blockRow, blockCol, rows, cols int) *tile.Tile {
	b := t.b
	key := collective{op: "tile load", arr: src, i: blockRow, j: blockCol, m: rows, n: cols}
	s := t.enter(key, func(s *slot) (err error) {
		if s.row0, s.col0, err = tile.CheckRegion("tile load", src, blockRow, blockCol, rows, cols); err != nil {
			return err
		}
		s.tile, err = b.alloc(rows, cols)
		return err
	})
	if !b.dryRun {
		tile.LoadLane(s.tile, src, s.row0, s.col0, t.lane, b.width)
	}
	t.exit(func() ops.Operation { return ops.NewLoadOp(src, s.row0, s.col0, s.tile) })
	return s.tile
}

// TileStore cooperatively writes x to dst at block offsets (blockRow, blockCol).
func (t *Thread) TileStore(dst *array.Array, blockRow, blockCol int, x *tile.Tile) {
	b := t.b
	key := collective{op: "tile store", arr: dst, a: x, i: blockRow, j: blockCol}
	s := t.enter(key, func(s *slot) (err error) {
		if s.row0, s.col0, err = tile.CheckRegion("tile store", dst, blockRow, blockCol, x.Rows(), x.Cols()); err != nil {
			return err
		}
		if b.dryRun {
			b.stores = append(b.stores, region{
				arr: dst, block: b.index, row0: s.row0, col0: s.col0, rows: x.Rows(), cols: x.Cols(),
			})
		}
		return nil
	})
	if !b.dryRun {
		tile.StoreLane(x, dst, s.row0, s.col0, t.lane, b.width)
	}
	t.exit(func() ops.Operation { return ops.NewStoreOp(dst, s.row0, s.col0, x) })
}

// TileMatMul returns x @ y for x[m×k] and y[k×n].
func (t *Thread) TileMatMul(x, y *tile.Tile) *tile.Tile {
	b := t.b
	s := t.enter(collective{op: "tile matmul", a: x, b: y}, func(s *slot) (err error) {
		if err = tile.CheckMatMul(x, y); err != nil {
			return err
		}
		s.tile, err = b.alloc(x.Rows(), y.Cols())
		return err
	})
	if !b.dryRun {
		tile.MatMulLane(s.tile, x, y, t.lane, b.width)
	}
	t.exit(func() ops.Operation { return ops.NewMatMulOp(x, y, s.tile) })
	return s.tile
}

// TileAdd returns the element-wise sum x + y.
func (t *Thread) TileAdd(x, y *tile.Tile) *tile.Tile {
	b := t.b
	s := t.enter(collective{op: "tile add", a: x, b: y}, func(s *slot) (err error) {
		if err = tile.CheckSameShape("add", x, y); err != nil {
			return err
		}
		s.tile, err = b.alloc(x.Rows(), x.Cols())
		return err
	})
	if !b.dryRun {
		tile.AddLane(s.tile, x, y, t.lane, b.width)
	}
	t.exit(func() ops.Operation { return ops.NewAddOp(x, y, s.tile) })
	return s.tile
}

// TileMap applies the registered scalar function f to every element of x.
func (t *Thread) TileMap(f tile.Func, x *tile.Tile) *tile.Tile {
	b := t.b
	s := t.enter(collective{op: "tile map", a: x, f: f}, func(s *slot) (err error) {
		if !f.Valid() {
			return errors.Errorf("tile map: unregistered function %s", f)
		}
		s.tile, err = b.alloc(x.Rows(), x.Cols())
		return err
	})
	if !b.dryRun {
		tile.MapLane(s.tile, f, x, t.lane, b.width)
	}
	t.exit(func() ops.Operation { return ops.NewMapOp(f, x, s.tile) })
	return s.tile
}

// TileBroadcast replicates the single column of x[m×1] across n columns.
// The result is a view; no block storage is used.
func (t *Thread) TileBroadcast(x *tile.Tile, m, n int) *tile.Tile {
	s := t.enter(collective{op: "tile broadcast", a: x, m: m, n: n}, func(s *slot) (err error) {
		s.tile, err = tile.Broadcast(x, m, n)
		return err
	})
	t.exit(func() ops.Operation { return ops.NewBroadcastOp(x, s.tile) })
	return s.tile
}

// TileOf gathers the per-lane values into a len(v)×BlockWidth tile whose
// column l holds the value of lane l. Every lane must pass a value of the
// same length.
func (t *Thread) TileOf(v *tile.Value) *tile.Tile {
	b := t.b
	b.staging[t.lane] = v
	t.sync()
	s := t.enter(collective{op: "tile of values"}, func(s *slot) (err error) {
		n := 0
		if b.staging[0] != nil {
			n = b.staging[0].Len()
		}
		for lane, w := range b.staging {
			if w == nil || w.Len() != n || n == 0 {
				return errors.Wrapf(array.ErrShapeMismatch,
					"tile of values: lane %d passed a value of a different length than lane 0 (%d)", lane, n)
			}
		}
		s.values = slices.Clone(b.staging)
		s.tile, err = b.alloc(n, b.width)
		return err
	})
	if !b.dryRun {
		tile.GatherLane(s.tile, v, t.lane)
	}
	t.exit(func() ops.Operation { return ops.NewTileOfValuesOp(s.values, s.tile) })
	return s.tile
}

// Untile returns column Lane() of x as a per-lane value. x must have exactly
// BlockWidth columns.
func (t *Thread) Untile(x *tile.Tile) *tile.Value {
	b := t.b
	s := t.enter(collective{op: "untile", a: x}, func(s *slot) error {
		if x.Cols() != b.width {
			return errors.Wrapf(array.ErrShapeMismatch, "untile: tile %s has %d columns, block width is %d",
				x, x.Cols(), b.width)
		}
		s.values = make([]*tile.Value, b.width)
		return nil
	})
	v := tile.NewValue(x.Rows())
	if !b.dryRun {
		tile.ScatterLane(x, v, t.lane)
	}
	s.values[t.lane] = v
	t.sync()
	t.exit(func() ops.Operation { return ops.NewValueFromTileOp(x, s.values) })
	return v
}

// Read returns the element of a at idx. It is not recorded: values read this
// way are constants to the tape.
func (t *Thread) Read(a *array.Array, idx ...int) float32 {
	off := t.offset("read", a, idx)
	return a.LoadAt(off)
}

// AtomicAdd atomically adds v to the element of a at idx. It is not recorded.
func (t *Thread) AtomicAdd(a *array.Array, v float32, idx ...int) {
	off := t.offset("atomic add", a, idx)
	if a.DType() == array.Float16 {
		panic(errors.Errorf("atomic add: %s arrays have no atomic accumulate", a.DType()))
	}
	if !t.b.dryRun {
		a.AddAt(off, float64(v))
	}
}

// AtomicAddSquaredError atomically adds scale·Σ(v[i]−ref[i])² to the element
// of loss at idx and records the contribution so the tape can propagate the
// loss adjoint back into v.
func (t *Thread) AtomicAddSquaredError(loss *array.Array, v *tile.Value, ref []float32, scale float32, idx ...int) {
	off := t.offset("squared error", loss, idx)
	if loss.DType() == array.Float16 {
		panic(errors.Errorf("squared error: %s loss arrays have no atomic accumulate", loss.DType()))
	}
	if len(ref) != v.Len() {
		panic(errors.Wrapf(array.ErrShapeMismatch, "squared error: value of length %d against %d reference values",
			v.Len(), len(ref)))
	}
	if t.b.dryRun {
		return
	}
	residual := make([]float32, len(ref))
	var sum float32
	for i, r := range ref {
		residual[i] = v.At(i) - r
		sum += residual[i] * residual[i]
	}
	loss.AddAt(off, float64(scale*sum))
	if t.b.tape != nil {
		t.b.tape.Append(ops.NewSquaredErrorOp(loss, off, v, residual, scale))
	}
}

func (t *Thread) offset(op string, a *array.Array, idx []int) int {
	if a.Space() != array.Device {
		panic(errors.Wrapf(array.ErrMemorySpace, "%s: array of shape %s lives in %s memory", op, a.Shape(), a.Space()))
	}
	off, err := a.Offset(idx...)
	if err != nil {
		panic(errors.WithMessage(err, op))
	}
	return off
}
