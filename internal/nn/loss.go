package nn

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// addSquaredError adds this lane's share of the mean squared error between
// out and column col of reference to loss[0]. scale is 1/(channels·pixels).
func addSquaredError(t *kernel.Thread, loss, reference *array.Array, out *tile.Value, col int, scale float32) {
	ref := make([]float32, out.Len())
	for c := range ref {
		ref[c] = t.Read(reference, c, col)
	}
	t.AtomicAddSquaredError(loss, out, ref, scale, 0)
}

// MSEScale returns the per-element weight of the mean squared error over an
// image of the given configuration.
func MSEScale(cfg Config) float32 {
	return 1 / float32(cfg.Out*cfg.Pixels())
}
