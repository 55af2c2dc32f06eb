package ops

import (
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// TileOfValuesOp records gathering one per-lane Value into each column of out.
//
// Backward pass:
//   - grad_values[lane][i] += grad_out[i, lane]
type TileOfValuesOp struct {
	values []*tile.Value // indexed by lane
	out    *tile.Tile
}

// NewTileOfValuesOp creates a TileOfValuesOp. values is indexed by lane.
func NewTileOfValuesOp(values []*tile.Value, out *tile.Tile) *TileOfValuesOp {
	return &TileOfValuesOp{values: values, out: out}
}

// Kind implements Operation.
func (op *TileOfValuesOp) Kind() Kind { return KindTileOfValues }

// Backward scatters each output column back to its lane's Value.
func (op *TileOfValuesOp) Backward(_ parallel.Config) {
	cols := op.out.Cols()
	outGrad := op.out.Grad()
	for lane, v := range op.values {
		g := v.Grad()
		for i := range g {
			g[i] += outGrad[i*cols+lane]
		}
	}
}

// ZeroAdjoints clears the output adjoint and the adjoints of the gathered
// Values, which no other record owns.
func (op *TileOfValuesOp) ZeroAdjoints() {
	op.out.ZeroGrad()
	for _, v := range op.values {
		v.ZeroGrad()
	}
}

func (op *TileOfValuesOp) operation() {}

// ValueFromTileOp records each lane reading its own column of in.
//
// Backward pass:
//   - grad_in[i, lane] += grad_values[lane][i]
type ValueFromTileOp struct {
	in     *tile.Tile
	values []*tile.Value // indexed by lane
}

// NewValueFromTileOp creates a ValueFromTileOp. values is indexed by lane.
func NewValueFromTileOp(in *tile.Tile, values []*tile.Value) *ValueFromTileOp {
	return &ValueFromTileOp{in: in, values: values}
}

// Kind implements Operation.
func (op *ValueFromTileOp) Kind() Kind { return KindValueFromTile }

// Backward gathers the lane adjoints into the tile adjoint.
func (op *ValueFromTileOp) Backward(_ parallel.Config) {
	cols := op.in.Cols()
	inGrad := op.in.Grad()
	for lane, v := range op.values {
		for i, g := range v.Grad() {
			inGrad[i*cols+lane] += g
		}
	}
}

// ZeroAdjoints implements Operation.
func (op *ValueFromTileOp) ZeroAdjoints() {
	for _, v := range op.values {
		v.ZeroGrad()
	}
}

func (op *ValueFromTileOp) operation() {}
