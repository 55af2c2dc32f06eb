package ops

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// SquaredErrorOp records one lane's contribution to a squared-error loss:
// loss[off] += scale * sum_i (value[i] - ref[i])^2.
//
// Backward pass:
//   - grad_value[i] += grad_loss[off] * scale * 2 * (value[i] - ref[i])
//
// The residual is saved at record time, so the reference need not be re-read.
type SquaredErrorOp struct {
	loss     *array.Array
	off      int
	value    *tile.Value
	residual []float32
	scale    float32
}

// NewSquaredErrorOp creates a SquaredErrorOp. off is the storage offset of the
// loss element; gradient Arrays share the layout of their values, so the same
// offset addresses the loss gradient.
func NewSquaredErrorOp(loss *array.Array, off int, value *tile.Value, residual []float32, scale float32) *SquaredErrorOp {
	return &SquaredErrorOp{loss: loss, off: off, value: value, residual: residual, scale: scale}
}

// Kind implements Operation.
func (op *SquaredErrorOp) Kind() Kind { return KindSquaredError }

// Backward distributes the loss adjoint to the lane's Value.
func (op *SquaredErrorOp) Backward(_ parallel.Config) {
	if !op.loss.RequiresGrad() {
		return
	}
	seed := op.loss.Grad().LoadAt(op.off)
	if seed == 0 {
		return
	}
	g := op.value.Grad()
	for i, r := range op.residual {
		g[i] += seed * op.scale * 2 * r
	}
}

// ZeroAdjoints implements Operation. The Value is owned by the untile record.
func (op *SquaredErrorOp) ZeroAdjoints() {}

func (op *SquaredErrorOp) operation() {}
