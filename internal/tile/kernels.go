package tile

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
)

// CheckMatMul validates a[m×k] @ b[k×n].
func CheckMatMul(a, b *Tile) error {
	if a.cols != b.rows {
		return errors.Wrapf(array.ErrShapeMismatch, "tile matmul: inner dimensions disagree, %dx%d @ %dx%d",
			a.rows, a.cols, b.rows, b.cols)
	}
	return nil
}

// CheckSameShape validates the operands of an element-wise binary operator.
func CheckSameShape(op string, a, b *Tile) error {
	if a.rows != b.rows || a.cols != b.cols {
		return errors.Wrapf(array.ErrShapeMismatch, "tile %s: %dx%d vs %dx%d", op, a.rows, a.cols, b.rows, b.cols)
	}
	return nil
}

// Broadcast returns the m×n view replicating the single column of src.
// No storage is materialised: the view has a column stride of 0.
func Broadcast(src *Tile, m, n int) (*Tile, error) {
	if src.cols != 1 || src.rows != m || n <= 0 {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "tile broadcast: cannot broadcast %dx%d to %dx%d",
			src.rows, src.cols, m, n)
	}
	return &Tile{rows: m, cols: n, rowStride: src.rowStride, colStride: 0, data: src.data}, nil
}

// MatMulLane computes this lane's share of dst = a @ b. Each output element
// is reduced over k in ascending order, so results do not depend on scheduling.
func MatMulLane(dst, a, b *Tile, lane, width int) {
	k := a.cols
	for e := lane; e < dst.Len(); e += width {
		i, j := e/dst.cols, e%dst.cols
		var sum float32
		for p := 0; p < k; p++ {
			sum += a.At(i, p) * b.At(p, j)
		}
		dst.Set(i, j, sum)
	}
}

// AddLane computes this lane's share of dst = a + b.
func AddLane(dst, a, b *Tile, lane, width int) {
	for e := lane; e < dst.Len(); e += width {
		i, j := e/dst.cols, e%dst.cols
		dst.Set(i, j, a.At(i, j)+b.At(i, j))
	}
}

// MapLane computes this lane's share of dst = f(x).
func MapLane(dst *Tile, f Func, x *Tile, lane, width int) {
	for e := lane; e < dst.Len(); e += width {
		i, j := e/dst.cols, e%dst.cols
		dst.Set(i, j, f.Apply(x.At(i, j)))
	}
}

// LoadLane copies this lane's share of src[row0:row0+rows, col0:col0+cols] into dst.
// Bounds must have been validated by the caller.
func LoadLane(dst *Tile, src *array.Array, row0, col0, lane, width int) {
	for e := lane; e < dst.Len(); e += width {
		i, j := e/dst.cols, e%dst.cols
		dst.Set(i, j, src.LoadAt(src.Offset2(row0+i, col0+j)))
	}
}

// StoreLane copies this lane's share of src into dst at (row0, col0).
// Bounds must have been validated by the caller.
func StoreLane(src *Tile, dst *array.Array, row0, col0, lane, width int) {
	for e := lane; e < src.Len(); e += width {
		i, j := e/src.cols, e%src.cols
		dst.StoreAt(dst.Offset2(row0+i, col0+j), src.At(i, j))
	}
}

// GatherLane writes v into column lane of dst.
func GatherLane(dst *Tile, v *Value, lane int) {
	for i := 0; i < dst.rows; i++ {
		dst.Set(i, lane, v.data[i])
	}
}

// ScatterLane reads column lane of src into v.
func ScatterLane(src *Tile, v *Value, lane int) {
	for i := 0; i < src.rows; i++ {
		v.data[i] = src.At(i, lane)
	}
}

// CheckRegion validates that a rows×cols region at block offsets (blockRow,
// blockCol) lies inside the 2-D Array a. It returns the element offsets.
func CheckRegion(op string, a *array.Array, blockRow, blockCol, rows, cols int) (row0, col0 int, err error) {
	shape := a.Shape()
	if len(shape) != 2 {
		return 0, 0, errors.Wrapf(array.ErrShapeMismatch, "%s: tile access needs a 2-D array, got shape %s", op, shape)
	}
	if a.Space() != array.Device {
		return 0, 0, errors.Wrapf(array.ErrMemorySpace, "%s: array of shape %s lives in %s memory", op, shape, a.Space())
	}
	if rows <= 0 || cols <= 0 {
		return 0, 0, errors.Wrapf(array.ErrShapeMismatch, "%s: tile extents must be positive, got %dx%d", op, rows, cols)
	}
	row0, col0 = blockRow*rows, blockCol*cols
	if blockRow < 0 || blockCol < 0 || row0+rows > shape[0] || col0+cols > shape[1] {
		return 0, 0, errors.Wrapf(array.ErrOutOfBounds,
			"%s: %dx%d tile at block (%d, %d) spans rows [%d, %d) cols [%d, %d) of array %s",
			op, rows, cols, blockRow, blockCol, row0, row0+rows, col0, col0+cols, shape)
	}
	return row0, col0, nil
}
