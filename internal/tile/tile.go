// Package tile implements block-local tiles and the compute kernels behind the
// tile operators.
//
// A Tile is a rows×cols view over a region of a block's Arena. Tiles carry a
// row and a column stride so that a broadcast can be expressed as a stride-0
// view instead of a materialised copy. The kernels in this package work on a
// lane's share of a tile (elements whose flat index is congruent to the lane
// id modulo the block width); synchronisation between lanes is the caller's job.
package tile

import (
	"fmt"
	"sync"
)

// Tile is a block-scoped view over arena storage.
type Tile struct {
	rows, cols           int
	rowStride, colStride int
	data                 []float32 // nil for shape-only tiles

	gradOnce sync.Once
	grad     []float32 // dense rows*cols adjoint
}

func newTile(rows, cols int, data []float32) *Tile {
	return &Tile{rows: rows, cols: cols, rowStride: cols, colStride: 1, data: data}
}

// Rows returns the number of rows.
func (t *Tile) Rows() int { return t.rows }

// Cols returns the number of columns.
func (t *Tile) Cols() int { return t.cols }

// Len returns rows*cols.
func (t *Tile) Len() int { return t.rows * t.cols }

// Shaped reports whether t is a shape-only tile produced during validation.
func (t *Tile) Shaped() bool { return t.data == nil }

// IsView reports whether t aliases another tile's storage (a broadcast).
func (t *Tile) IsView() bool { return t.colStride == 0 }

// At returns element (i, j).
func (t *Tile) At(i, j int) float32 {
	return t.data[i*t.rowStride+j*t.colStride]
}

// Set writes element (i, j). Writing through a broadcast view writes the shared column.
func (t *Tile) Set(i, j int, v float32) {
	t.data[i*t.rowStride+j*t.colStride] = v
}

// Values returns a row-major copy of the tile contents.
func (t *Tile) Values() []float32 {
	out := make([]float32, t.Len())
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			out[i*t.cols+j] = t.At(i, j)
		}
	}
	return out
}

// Grad returns the dense row-major adjoint buffer, allocating it on first use.
func (t *Tile) Grad() []float32 {
	t.gradOnce.Do(func() { t.grad = make([]float32, t.Len()) })
	return t.grad
}

// ZeroGrad clears the adjoint buffer, allocating a zeroed one on first use.
func (t *Tile) ZeroGrad() {
	clear(t.Grad())
}

// String describes the tile shape.
func (t *Tile) String() string {
	if t.IsView() {
		return fmt.Sprintf("tile[%dx%d broadcast]", t.rows, t.cols)
	}
	return fmt.Sprintf("tile[%dx%d]", t.rows, t.cols)
}
