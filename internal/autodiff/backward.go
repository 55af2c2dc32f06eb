package autodiff

import (
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/array"
)

type backwardConfig struct {
	retain   bool
	seedGrad *array.Array
}

// BackwardOption configures a Backward call.
type BackwardOption func(*backwardConfig)

// RetainGraph keeps the log after Backward so it can be replayed again.
// Without it the log is discarded, since the arenas it references are
// recycled by later launches.
func RetainGraph() BackwardOption {
	return func(c *backwardConfig) { c.retain = true }
}

// WithSeedGrad seeds the terminal output's gradient with g instead of ones.
// g must have the shape of the seed Array.
func WithSeedGrad(g *array.Array) BackwardOption {
	return func(c *backwardConfig) { c.seedGrad = g }
}

// Backward computes gradients by walking the log in reverse.
//
// Algorithm:
//  1. Seed the gradient of the terminal output: seed.Grad() is set to ones
//     (or to WithSeedGrad's values). A nil seed means the caller has already
//     populated the gradients of the outputs it cares about.
//  2. Zero the intermediate tile and value adjoints.
//  3. Walk operations in strict reverse order, applying each adjoint rule.
//
// Array gradients are accumulated into, never overwritten, so calling
// Backward twice on a retained log doubles them.
func (t *Tape) Backward(seed *array.Array, opts ...BackwardOption) error {
	var cfg backwardConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t.mu.Lock()
	if t.state != Recorded {
		state := t.state
		t.mu.Unlock()
		return errors.Wrapf(ErrTapeState, "backward: tape is %s", state)
	}
	t.state = Replaying
	operations := t.operations
	t.mu.Unlock()

	if err := seedGradient(seed, cfg.seedGrad); err != nil {
		t.setState(Recorded)
		return err
	}

	start := time.Now()
	for _, op := range operations {
		op.ZeroAdjoints()
	}
	for i := len(operations) - 1; i >= 0; i-- {
		operations[i].Backward(t.parallel)
	}
	klog.V(1).Infof("tape: backward over %d operations in %s", len(operations), time.Since(start))

	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg.retain {
		t.state = Recorded
		return nil
	}
	t.discardLocked()
	t.state = Inactive
	return nil
}

func (t *Tape) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func seedGradient(seed, seedGrad *array.Array) error {
	if seed == nil {
		if seedGrad != nil {
			return errors.New("backward: WithSeedGrad requires a seed array")
		}
		return nil
	}
	if !seed.RequiresGrad() {
		return errors.Errorf("backward: seed array of shape %s has no gradient buffer", seed.Shape())
	}
	if seedGrad == nil {
		seed.Grad().Fill(1)
		return nil
	}
	if err := seed.Grad().CopyFrom(seedGrad); err != nil {
		return errors.WithMessage(err, "backward: seed gradient")
	}
	return nil
}
