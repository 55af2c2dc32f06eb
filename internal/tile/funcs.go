package tile

import (
	"math"
)

// Func is a scalar element-wise function from a closed table. Every entry has
// a registered derivative so the tape can apply the chain rule at the saved input.
type Func int

// Registered scalar functions.
const (
	Identity Func = iota
	ReLU
	Sigmoid
	Tanh
	Sin
	Cos
	Exp
	Square
	numFuncs
)

var funcNames = [numFuncs]string{"identity", "relu", "sigmoid", "tanh", "sin", "cos", "exp", "square"}

// Valid reports whether f is a registered function.
func (f Func) Valid() bool {
	return f >= 0 && f < numFuncs
}

// String returns the function name.
func (f Func) String() string {
	if !f.Valid() {
		return "invalid"
	}
	return funcNames[f]
}

// Apply evaluates f(x).
func (f Func) Apply(x float32) float32 {
	switch f {
	case Identity:
		return x
	case ReLU:
		return max(x, 0)
	case Sigmoid:
		return float32(1 / (1 + math.Exp(-float64(x))))
	case Tanh:
		return float32(math.Tanh(float64(x)))
	case Sin:
		return float32(math.Sin(float64(x)))
	case Cos:
		return float32(math.Cos(float64(x)))
	case Exp:
		return float32(math.Exp(float64(x)))
	case Square:
		return x * x
	}
	panic("tile: unregistered scalar function")
}

// Derivative evaluates f'(x).
func (f Func) Derivative(x float32) float32 {
	switch f {
	case Identity:
		return 1
	case ReLU:
		if x > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		s := f.Apply(x)
		return s * (1 - s)
	case Tanh:
		th := f.Apply(x)
		return 1 - th*th
	case Sin:
		return float32(math.Cos(float64(x)))
	case Cos:
		return float32(-math.Sin(float64(x)))
	case Exp:
		return f.Apply(x)
	case Square:
		return 2 * x
	}
	panic("tile: unregistered scalar function")
}
