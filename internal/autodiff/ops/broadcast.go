package ops

import (
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// BroadcastOp represents replicating a column tile: out[m×n] = src[m×1].
//
// Backward pass:
//   - grad_src[i] += sum_j grad_out[i, j]
type BroadcastOp struct {
	src *tile.Tile
	out *tile.Tile
}

// NewBroadcastOp creates a new BroadcastOp.
func NewBroadcastOp(src, out *tile.Tile) *BroadcastOp {
	return &BroadcastOp{src: src, out: out}
}

// Kind implements Operation.
func (op *BroadcastOp) Kind() Kind { return KindBroadcast }

// Backward reduces the output adjoint over columns.
func (op *BroadcastOp) Backward(cfg parallel.Config) {
	n := op.out.Cols()
	outGrad := op.out.Grad()
	srcGrad := op.src.Grad()
	parallel.For(op.out.Rows(), func(i int) {
		var sum float32
		for _, g := range outGrad[i*n : (i+1)*n] {
			sum += g
		}
		srcGrad[i] += sum
	}, cfg)
}

// ZeroAdjoints implements Operation.
func (op *BroadcastOp) ZeroAdjoints() { op.out.ZeroGrad() }

func (op *BroadcastOp) operation() {}
