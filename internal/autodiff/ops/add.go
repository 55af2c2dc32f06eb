package ops

import (
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// AddOp represents an element-wise tile addition: out = a + b.
//
// Backward pass:
//   - grad_a += grad_out
//   - grad_b += grad_out
//
// When b is a broadcast view its adjoint is dense; the BroadcastOp that
// produced it reduces that adjoint back to a single column.
type AddOp struct {
	a, b *tile.Tile
	out  *tile.Tile
}

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, out *tile.Tile) *AddOp {
	return &AddOp{a: a, b: b, out: out}
}

// Kind implements Operation.
func (op *AddOp) Kind() Kind { return KindAdd }

// Backward passes the output adjoint through to both operands.
func (op *AddOp) Backward(_ parallel.Config) {
	outGrad := op.out.Grad()
	accumulate(op.a.Grad(), outGrad)
	accumulate(op.b.Grad(), outGrad)
}

// ZeroAdjoints implements Operation.
func (op *AddOp) ZeroAdjoints() { op.out.ZeroGrad() }

func (op *AddOp) operation() {}
