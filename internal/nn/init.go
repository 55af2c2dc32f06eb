package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
)

// Uniform creates a differentiable Array with values drawn from U(-bound, bound).
//
// Values are drawn in row-major order, so a fixed rng seed reproduces the
// same initialization.
func Uniform(rng *rand.Rand, shape array.Shape, bound float64, dtype array.DataType) (*array.Array, error) {
	if dtype == array.Float16 {
		return nil, errors.Errorf("nn: %s parameters cannot accumulate gradients atomically", dtype)
	}
	values := make([]float64, shape.NumElements())
	for i := range values {
		values[i] = (rng.Float64()*2 - 1) * bound
	}
	a, err := array.FromFloat64s(values, shape, dtype, array.RequiresGrad())
	if err != nil {
		return nil, errors.WithMessage(err, "nn.Uniform")
	}
	return a, nil
}

// FanInBound returns 1/√fanIn, the default initialization range of a layer.
func FanInBound(fanIn int) float64 {
	return 1 / math.Sqrt(float64(fanIn))
}
