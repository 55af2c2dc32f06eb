package ops

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// StoreOp records a cooperative tile store: dst[row0:row0+m, col0:col0+n] = in.
//
// Backward pass:
//   - grad_in[i, j] += grad_dst[row0+i, col0+j]
type StoreOp struct {
	dst        *array.Array
	row0, col0 int
	in         *tile.Tile
}

// NewStoreOp creates a StoreOp. row0 and col0 are element offsets.
func NewStoreOp(dst *array.Array, row0, col0 int, in *tile.Tile) *StoreOp {
	return &StoreOp{dst: dst, row0: row0, col0: col0, in: in}
}

// Kind implements Operation.
func (op *StoreOp) Kind() Kind { return KindStore }

// Backward gathers the destination gradient into the stored tile's adjoint.
func (op *StoreOp) Backward(cfg parallel.Config) {
	if !op.dst.RequiresGrad() {
		return
	}
	grad := op.dst.Grad()
	inGrad := op.in.Grad()
	cols := op.in.Cols()
	parallel.For2D(op.in.Rows(), cols, func(i, j int) {
		inGrad[i*cols+j] += grad.LoadAt(grad.Offset2(op.row0+i, op.col0+j))
	}, cfg)
}

// ZeroAdjoints implements Operation. The stored tile is owned by its producer.
func (op *StoreOp) ZeroAdjoints() {}

func (op *StoreOp) operation() {}
