// Package autodiff implements reverse-mode differentiation of tile kernels.
//
// A Tape records the tile operators executed by launches made while it is
// recording, and replays the records in reverse to accumulate gradients
// into every differentiable Array that took part.
//
// Architecture:
//   - Tape: state machine and append-only log of ops.Operation records
//   - ops: one record type per tile operator, each with its adjoint rule
//   - kernel: launches consult the tape passed to them and append records
//
// Usage:
//
//	tape := autodiff.NewTape()
//	err := tape.Record(func() error {
//	    return kernel.Launch(ctx, k, dims, 32, kernel.WithTape(tape))
//	})
//	err = tape.Backward(loss) // seeds loss.Grad() with ones
package autodiff

import (
	"github.com/pkg/errors"
)

// ErrTapeState is returned when a tape method is called in a state that does
// not allow it, e.g. Backward on an inactive tape or Begin while recording.
var ErrTapeState = errors.New("invalid tape state")

// State is the lifecycle state of a Tape.
type State int

// Tape states. Recorded means the recording region has closed and the log is
// held for a Backward call.
const (
	Inactive State = iota
	Recording
	Recorded
	Replaying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Recording:
		return "recording"
	case Recorded:
		return "recorded"
	case Replaying:
		return "replaying"
	default:
		return "unknown"
	}
}

// Releaser is a resource whose lifetime the tape extends until its log is
// discarded, such as the arena backing the tiles saved in the records.
type Releaser interface {
	Release()
}
