// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides the reverse-mode tape kernels record into.
//
// A Tape is passed explicitly to a launch with kernel.WithTape. While it is
// recording, every tile operator appends one operation to its log;
// Backward then replays the log in reverse, accumulating into the gradient
// buffers of the Arrays involved.
//
// Example:
//
//	tape := autodiff.NewTape()
//	err := tape.Record(func() error {
//	    return kernel.Launch(ctx, k, dims, 32, kernel.WithTape(tape))
//	})
//	err = tape.Backward(loss)
package autodiff

import (
	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/autodiff"
)

// Tape records kernel operations for the backward pass.
type Tape = autodiff.Tape

// State is the lifecycle state of a Tape.
type State = autodiff.State

// BackwardOption configures a Backward call.
type BackwardOption = autodiff.BackwardOption

// Tape lifecycle states.
const (
	Inactive  = autodiff.Inactive
	Recording = autodiff.Recording
	Recorded  = autodiff.Recorded
	Replaying = autodiff.Replaying
)

// ErrTapeState is returned for an operation the tape's state does not allow.
var ErrTapeState = autodiff.ErrTapeState

// NewTape creates an inactive tape.
func NewTape() *Tape {
	return autodiff.NewTape()
}

// RetainGraph keeps the log after Backward so it can be replayed again.
func RetainGraph() BackwardOption {
	return autodiff.RetainGraph()
}

// WithSeedGrad seeds the terminal gradient with g instead of ones.
func WithSeedGrad(g *array.Array) BackwardOption {
	return autodiff.WithSeedGrad(g)
}
