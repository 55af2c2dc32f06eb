package ops

import (
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// MatMulOp represents a tile matrix multiplication: out = a @ b.
//
// Backward pass:
//   - grad_a += grad_out @ b^T
//   - grad_b += a^T @ grad_out
//
// Both contractions read the saved operand tiles from the retained arena.
type MatMulOp struct {
	a, b *tile.Tile
	out  *tile.Tile
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, out *tile.Tile) *MatMulOp {
	return &MatMulOp{a: a, b: b, out: out}
}

// Kind implements Operation.
func (op *MatMulOp) Kind() Kind { return KindMatMul }

// Backward computes the two outer-product style contractions.
func (op *MatMulOp) Backward(cfg parallel.Config) {
	m, k, n := op.a.Rows(), op.a.Cols(), op.b.Cols()
	outGrad := op.out.Grad()

	// grad_a[i, p] += sum_j grad_out[i, j] * b[p, j]
	gradA := op.a.Grad()
	parallel.For2D(m, k, func(i, p int) {
		var sum float32
		for j := 0; j < n; j++ {
			sum += outGrad[i*n+j] * op.b.At(p, j)
		}
		gradA[i*k+p] += sum
	}, cfg)

	// grad_b[p, j] += sum_i a[i, p] * grad_out[i, j]
	gradB := op.b.Grad()
	parallel.For2D(k, n, func(p, j int) {
		var sum float32
		for i := 0; i < m; i++ {
			sum += op.a.At(i, p) * outGrad[i*n+j]
		}
		gradB[p*n+j] += sum
	}, cfg)
}

// ZeroAdjoints implements Operation.
func (op *MatMulOp) ZeroAdjoints() { op.out.ZeroGrad() }

func (op *MatMulOp) operation() {}
