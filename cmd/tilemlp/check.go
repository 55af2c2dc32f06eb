package main

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/asset"
	"github.com/born-ml/tilegrad/internal/nn"
	"github.com/born-ml/tilegrad/internal/reference"
)

const (
	rtol = 1e-2
	atol = 1e-2
)

func arraysOf(m nn.Module) []*array.Array {
	params := m.Parameters()
	out := make([]*array.Array, len(params))
	for i, p := range params {
		out[i] = p.Array()
	}
	return out
}

func report(name string, got *array.Array, want mat.Matrix) error {
	maxDiff, err := reference.Compare(got, want, rtol, atol)
	if err != nil {
		return errors.WithMessage(err, name)
	}
	fmt.Printf("  %-14s close (max |Δ| %.3g)\n", name, maxDiff)
	return nil
}

// checkMLP compares the last iteration's outputs and gradients with the
// dense reference. It is skipped once an optimizer has moved the parameters
// past the values the output was computed with.
func checkMLP(model *nn.MLP, b *nn.Buffers, updated bool) error {
	if updated {
		fmt.Println("Parameters were updated after the last forward pass; skipping reference check")
		return nil
	}
	layers, err := reference.Layers(arraysOf(model)...)
	if err != nil {
		return err
	}
	input, err := reference.Dense(b.Input)
	if err != nil {
		return err
	}
	tr, err := reference.Forward(layers, input)
	if err != nil {
		return err
	}
	ref, err := reference.Dense(b.Reference)
	if err != nil {
		return err
	}
	grads, _, err := reference.Backward(layers, tr, reference.MSEGrad(tr.Out, ref))
	if err != nil {
		return err
	}

	fmt.Printf("Reference check (loss %.6g, reference %.6g):\n", b.Loss.At(0), reference.MSE(tr.Out, ref))
	if err := report("output", b.Output, tr.Out); err != nil {
		return err
	}
	params := model.Parameters()
	for i, g := range grads {
		if err := report(params[2*i].Name()+".grad", params[2*i].Grad(), g.W); err != nil {
			return err
		}
		if err := report(params[2*i+1].Name()+".grad", params[2*i+1].Grad(), g.B); err != nil {
			return err
		}
	}
	return nil
}

func checkSingle(layer *nn.SingleLayer, input, output *array.Array) error {
	layers, err := reference.Layers(arraysOf(layer)...)
	if err != nil {
		return err
	}
	x, err := reference.Dense(input)
	if err != nil {
		return err
	}
	tr, err := reference.Forward(layers, x)
	if err != nil {
		return err
	}
	r, c := tr.Out.Dims()
	grads, dx, err := reference.Backward(layers, tr, reference.Ones(r, c))
	if err != nil {
		return err
	}

	fmt.Println("Reference check:")
	for _, cmp := range []struct {
		name string
		got  *array.Array
		want mat.Matrix
	}{
		{"output", output, tr.Out},
		{"input.grad", input.Grad(), dx},
		{"weight.grad", layer.Layer().Weight().Grad(), grads[0].W},
		{"bias.grad", layer.Layer().Bias().Grad(), grads[0].B},
	} {
		if err := report(cmp.name, cmp.got, cmp.want); err != nil {
			return err
		}
	}
	return nil
}

func saveOraclePrediction(path string, model *nn.MLP, b *nn.Buffers) error {
	layers, err := reference.Layers(arraysOf(model)...)
	if err != nil {
		return err
	}
	input, err := reference.Dense(b.Input)
	if err != nil {
		return err
	}
	tr, err := reference.Forward(layers, input)
	if err != nil {
		return err
	}
	out, err := reference.ToArray(tr.Out, array.Float32)
	if err != nil {
		return err
	}
	cfg := model.Config()
	return asset.SavePrediction(path, out, cfg.Width, cfg.Height)
}
