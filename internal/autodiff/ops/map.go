package ops

import (
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// MapOp represents an element-wise scalar function: out = f(in).
//
// Backward pass:
//   - grad_in += grad_out * f'(in)
//
// f' comes from the function table, evaluated at the saved input tile.
type MapOp struct {
	f   tile.Func
	in  *tile.Tile
	out *tile.Tile
}

// NewMapOp creates a new MapOp.
func NewMapOp(f tile.Func, in, out *tile.Tile) *MapOp {
	return &MapOp{f: f, in: in, out: out}
}

// Kind implements Operation.
func (op *MapOp) Kind() Kind { return KindMap }

// Func returns the mapped scalar function.
func (op *MapOp) Func() tile.Func { return op.f }

// Backward applies the chain rule element-wise.
func (op *MapOp) Backward(cfg parallel.Config) {
	cols := op.in.Cols()
	outGrad := op.out.Grad()
	inGrad := op.in.Grad()
	parallel.For2D(op.in.Rows(), cols, func(i, j int) {
		e := i*cols + j
		inGrad[e] += outGrad[e] * op.f.Derivative(op.in.At(i, j))
	}, cfg)
}

// ZeroAdjoints implements Operation.
func (op *MapOp) ZeroAdjoints() { op.out.ZeroGrad() }

func (op *MapOp) operation() {}
