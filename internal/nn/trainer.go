package nn

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/optim"
)

// Trainer runs the fitting loop of an MLP: record the forward launch, replay
// it backward from the loss, then update the parameters.
type Trainer struct {
	model     *MLP
	buffers   *Buffers
	tape      *autodiff.Tape
	optimizer optim.Optimizer
	opts      []kernel.Option
	step      int
}

// NewTrainer creates a Trainer. A nil optimizer computes gradients without
// ever updating the parameters.
func NewTrainer(model *MLP, buffers *Buffers, optimizer optim.Optimizer, opts ...kernel.Option) *Trainer {
	return &Trainer{
		model:     model,
		buffers:   buffers,
		tape:      autodiff.NewTape(),
		optimizer: optimizer,
		opts:      opts,
	}
}

// Tape returns the tape the Trainer records into.
func (tr *Trainer) Tape() *autodiff.Tape {
	return tr.tape
}

// Steps returns the number of completed iterations.
func (tr *Trainer) Steps() int {
	return tr.step
}

// Step runs one iteration and returns the loss of the forward pass, measured
// before the parameters are updated.
//
// Gradients are cleared at the start of the step, so after Step returns they
// hold this iteration's gradients. On error the parameters are unchanged.
func (tr *Trainer) Step(ctx context.Context) (float32, error) {
	start := time.Now()
	loss := tr.buffers.Loss
	loss.Zero()
	loss.ZeroGrad()
	ZeroGrad(tr.model)

	opts := append(append([]kernel.Option(nil), tr.opts...), kernel.WithTape(tr.tape))
	err := tr.tape.Record(func() error {
		return tr.model.Forward(ctx, tr.buffers, opts...)
	})
	if err != nil {
		_ = tr.tape.Discard()
		return 0, errors.WithMessagef(err, "step %d: forward", tr.step)
	}
	value := loss.At(0)
	if err := tr.tape.Backward(loss); err != nil {
		_ = tr.tape.Discard()
		return value, errors.WithMessagef(err, "step %d: backward", tr.step)
	}

	if tr.optimizer != nil {
		if err := tr.optimizer.Step(); err != nil {
			return value, errors.WithMessagef(err, "step %d: update", tr.step)
		}
	}
	tr.step++
	klog.V(1).Infof("step %d: loss %.6g in %s", tr.step, value, time.Since(start))
	return value, nil
}

// Train runs iters steps, calling onStep (if not nil) after each one.
func (tr *Trainer) Train(ctx context.Context, iters int, onStep func(iter int, loss float32)) error {
	for i := 0; i < iters; i++ {
		loss, err := tr.Step(ctx)
		if err != nil {
			return err
		}
		if onStep != nil {
			onStep(i, loss)
		}
	}
	return nil
}

// CheckGradients returns an error wrapping array.ErrNumericDivergence if any
// parameter gradient is not finite.
func (tr *Trainer) CheckGradients() error {
	for _, p := range tr.model.Parameters() {
		if err := p.Grad().CheckFinite(); err != nil {
			return errors.WithMessagef(err, "gradient of %s", p.Name())
		}
	}
	return nil
}

// Checkpoint snapshots the model at the current step.
func (tr *Trainer) Checkpoint(loss float32) *Checkpoint {
	c := &Checkpoint{Model: tr.model, Step: tr.step, Loss: loss}
	if tr.optimizer != nil {
		c.LR = tr.optimizer.GetLR()
	}
	return c
}
