// Package reference is a dense float64 evaluation of the per-pixel MLP on
// gonum matrices, used to check the tile pipeline. Nothing computed here
// flows back into Arrays other than through ToArray.
package reference

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tilegrad/internal/array"
)

// Layer is one dense layer: W is [out, in], B is [out, 1].
type Layer struct {
	W, B *mat.Dense
}

// Dense copies a 2-D Array into a matrix.
func Dense(a *array.Array) (*mat.Dense, error) {
	shape := a.Shape()
	if len(shape) != 2 {
		return nil, errors.Wrapf(array.ErrShapeMismatch, "reference: need a 2-D array, got shape %s", shape)
	}
	return mat.NewDense(shape[0], shape[1], a.Float64s()), nil
}

// Layers pairs up weight and bias Arrays, given as w0, b0, w1, b1, ...
func Layers(params ...*array.Array) ([]Layer, error) {
	if len(params)%2 != 0 {
		return nil, errors.Errorf("reference: %d parameter arrays do not pair into layers", len(params))
	}
	layers := make([]Layer, 0, len(params)/2)
	for i := 0; i < len(params); i += 2 {
		w, err := Dense(params[i])
		if err != nil {
			return nil, err
		}
		b, err := Dense(params[i+1])
		if err != nil {
			return nil, err
		}
		out, in := w.Dims()
		if br, bc := b.Dims(); br != out || bc != 1 {
			return nil, errors.Wrapf(array.ErrShapeMismatch, "reference: layer %d bias is %d×%d for a %d×%d weight",
				i/2, br, bc, out, in)
		}
		layers = append(layers, Layer{W: w, B: b})
	}
	return layers, nil
}

// Trace holds the pre-activation of every layer of a forward pass.
type Trace struct {
	Input *mat.Dense
	Pre   []*mat.Dense
	Out   *mat.Dense
}

// Forward evaluates relu(W·z + b) layer by layer on input, one column per sample.
func Forward(layers []Layer, input *mat.Dense) (*Trace, error) {
	tr := &Trace{Input: input}
	z := input
	for i, l := range layers {
		out, in := l.W.Dims()
		if r, _ := z.Dims(); r != in {
			return nil, errors.Wrapf(array.ErrShapeMismatch, "reference: layer %d expects %d inputs, got %d", i, in, r)
		}
		_, n := z.Dims()
		pre := mat.NewDense(out, n, nil)
		pre.Mul(l.W, z)
		pre.Apply(func(r, _ int, v float64) float64 { return v + l.B.At(r, 0) }, pre)
		tr.Pre = append(tr.Pre, pre)

		post := mat.NewDense(out, n, nil)
		post.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, pre)
		z = post
	}
	tr.Out = z
	return tr, nil
}

// Backward propagates outGrad, the gradient of the loss with respect to
// tr.Out, through the layers. It returns the parameter gradients in layer
// order and the gradient with respect to the input.
func Backward(layers []Layer, tr *Trace, outGrad *mat.Dense) ([]Layer, *mat.Dense, error) {
	if len(tr.Pre) != len(layers) {
		return nil, nil, errors.Errorf("reference: trace of %d layers for %d layers", len(tr.Pre), len(layers))
	}
	if !sameDims(outGrad, tr.Out) {
		return nil, nil, errors.Wrapf(array.ErrShapeMismatch, "reference: output gradient dims differ from the output")
	}
	grads := make([]Layer, len(layers))
	delta := mat.DenseCopyOf(outGrad)
	for i := len(layers) - 1; i >= 0; i-- {
		pre := tr.Pre[i]
		delta.Apply(func(r, c int, v float64) float64 {
			if pre.At(r, c) > 0 {
				return v
			}
			return 0
		}, delta)

		in := tr.Input
		if i > 0 {
			in = relu(tr.Pre[i-1])
		}
		out, _ := layers[i].W.Dims()
		dW := &mat.Dense{}
		dW.Mul(delta, in.T())
		dB := mat.NewDense(out, 1, nil)
		for r := 0; r < out; r++ {
			dB.Set(r, 0, mat.Sum(delta.RowView(r)))
		}
		grads[i] = Layer{W: dW, B: dB}

		next := &mat.Dense{}
		next.Mul(layers[i].W.T(), delta)
		delta = next
	}
	return grads, delta, nil
}

// MSE returns mean((out − ref)²) over every element.
func MSE(out, ref *mat.Dense) float64 {
	diff := &mat.Dense{}
	diff.Sub(out, ref)
	diff.MulElem(diff, diff)
	r, c := diff.Dims()
	return mat.Sum(diff) / float64(r*c)
}

// MSEGrad returns the gradient of MSE with respect to out: 2(out − ref)/N.
func MSEGrad(out, ref *mat.Dense) *mat.Dense {
	grad := &mat.Dense{}
	grad.Sub(out, ref)
	r, c := grad.Dims()
	grad.Scale(2/float64(r*c), grad)
	return grad
}

// Ones returns an r×c matrix of ones.
func Ones(r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return 1 }, m)
	return m
}

// ToArray copies m into a new Array.
func ToArray(m mat.Matrix, dtype array.DataType) (*array.Array, error) {
	r, c := m.Dims()
	return array.FromFloat64s(mat.DenseCopyOf(m).RawMatrix().Data, array.Shape{r, c}, dtype)
}

// Compare checks |got − want| ≤ atol + rtol·|want| element-wise and returns
// the largest absolute difference. The error names the first violation.
func Compare(got *array.Array, want mat.Matrix, rtol, atol float64) (float64, error) {
	g, err := Dense(got)
	if err != nil {
		return 0, err
	}
	if !sameDims(g, want) {
		gr, gc := g.Dims()
		wr, wc := want.Dims()
		return 0, errors.Wrapf(array.ErrShapeMismatch, "reference: comparing %d×%d against %d×%d", gr, gc, wr, wc)
	}
	var maxDiff float64
	var violation error
	r, c := g.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			gv, wv := g.At(i, j), want.At(i, j)
			d := math.Abs(gv - wv)
			if math.IsNaN(d) {
				d = math.Inf(1)
			}
			maxDiff = math.Max(maxDiff, d)
			if violation == nil && d > atol+rtol*math.Abs(wv) {
				violation = errors.Errorf("reference: element (%d, %d) is %g, want %g (tolerance %g)",
					i, j, gv, wv, atol+rtol*math.Abs(wv))
			}
		}
	}
	return maxDiff, violation
}

func relu(m *mat.Dense) *mat.Dense {
	out := &mat.Dense{}
	out.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, m)
	return out
}

func sameDims(a, b mat.Matrix) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}
