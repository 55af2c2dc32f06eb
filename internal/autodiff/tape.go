package autodiff

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/autodiff/ops"
	"github.com/born-ml/tilegrad/internal/parallel"
)

// Tape records tile operations during forward launches and computes
// gradients during the backward pass.
//
// Lifecycle:
//
//	Inactive --Begin--> Recording --End--> Recorded --Backward--> Replaying --> Inactive
//
// Backward with RetainGraph returns to Recorded instead, keeping the log
// and the retained arenas for another pass. Blocks append concurrently, so
// all methods are safe for concurrent use; Backward itself runs on the
// calling goroutine.
type Tape struct {
	mu         sync.Mutex
	state      State
	operations []ops.Operation // Recorded operations (in execution order per block)
	retained   []Releaser
	parallel   parallel.Config
}

// TapeOption configures a Tape.
type TapeOption func(*Tape)

// WithParallel sets the worker configuration used by adjoint rules.
func WithParallel(cfg parallel.Config) TapeOption {
	return func(t *Tape) { t.parallel = cfg }
}

// NewTape creates an inactive tape.
func NewTape(opts ...TapeOption) *Tape {
	t := &Tape{
		operations: make([]ops.Operation, 0, 256),
		parallel:   parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts recording, discarding any stale log.
func (t *Tape) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Recording || t.state == Replaying {
		return errors.Wrapf(ErrTapeState, "begin recording: tape is %s", t.state)
	}
	if len(t.operations) > 0 {
		klog.V(2).Infof("tape: discarding %d stale records", len(t.operations))
	}
	t.discardLocked()
	t.state = Recording
	return nil
}

// End closes the recording region. The log is held for Backward.
func (t *Tape) End() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Recording {
		return errors.Wrapf(ErrTapeState, "end recording: tape is %s", t.state)
	}
	t.state = Recorded
	klog.V(2).Infof("tape: recorded %d operations", len(t.operations))
	return nil
}

// Record runs fn inside a recording region. Recording ends when fn returns,
// whether it succeeded, failed or panicked.
func (t *Tape) Record(fn func() error) (err error) {
	if err = t.Begin(); err != nil {
		return err
	}
	defer func() {
		if endErr := t.End(); err == nil {
			err = endErr
		}
	}()
	return fn()
}

// IsRecording reports whether operations are currently being recorded.
func (t *Tape) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == Recording
}

// State returns the current lifecycle state.
func (t *Tape) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Append adds an operation to the log. It is a no-op unless recording.
func (t *Tape) Append(op ops.Operation) {
	t.mu.Lock()
	if t.state == Recording {
		t.operations = append(t.operations, op)
	}
	t.mu.Unlock()
}

// Retain keeps r alive until the log is discarded. It reports false, and
// leaves r to the caller, when the tape is not recording.
func (t *Tape) Retain(r Releaser) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Recording {
		return false
	}
	t.retained = append(t.retained, r)
	return true
}

// Len returns the number of recorded operations.
func (t *Tape) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.operations)
}

// Counts returns the number of recorded operations per kind.
func (t *Tape) Counts() map[ops.Kind]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[ops.Kind]int)
	for _, op := range t.operations {
		counts[op.Kind()]++
	}
	return counts
}

// Discard drops the log and releases retained resources.
func (t *Tape) Discard() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Recording || t.state == Replaying {
		return errors.Wrapf(ErrTapeState, "discard: tape is %s", t.state)
	}
	t.discardLocked()
	t.state = Inactive
	return nil
}

func (t *Tape) discardLocked() {
	for _, r := range t.retained {
		r.Release()
	}
	t.retained = nil
	clear(t.operations)
	t.operations = t.operations[:0]
}
