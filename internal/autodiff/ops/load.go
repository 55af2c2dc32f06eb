package ops

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// LoadOp records a cooperative tile load: out = src[row0:row0+m, col0:col0+n].
//
// Backward pass:
//   - grad_src[row0+i, col0+j] += grad_out[i, j]
//
// Many blocks may load the same region (weights are loaded by every block),
// so the scatter into the source gradient is an atomic add.
type LoadOp struct {
	src        *array.Array
	row0, col0 int
	out        *tile.Tile
}

// NewLoadOp creates a LoadOp. row0 and col0 are element offsets.
func NewLoadOp(src *array.Array, row0, col0 int, out *tile.Tile) *LoadOp {
	return &LoadOp{src: src, row0: row0, col0: col0, out: out}
}

// Kind implements Operation.
func (op *LoadOp) Kind() Kind { return KindLoad }

// Backward scatters the tile adjoint into the source gradient.
func (op *LoadOp) Backward(cfg parallel.Config) {
	if !op.src.RequiresGrad() {
		return
	}
	grad := op.src.Grad()
	outGrad := op.out.Grad()
	cols := op.out.Cols()
	parallel.For2D(op.out.Rows(), cols, func(i, j int) {
		if g := outGrad[i*cols+j]; g != 0 {
			grad.AddAt(grad.Offset2(op.row0+i, op.col0+j), float64(g))
		}
	}, cfg)
}

// ZeroAdjoints implements Operation.
func (op *LoadOp) ZeroAdjoints() { op.out.ZeroGrad() }

func (op *LoadOp) operation() {}
