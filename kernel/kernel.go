// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernel launches block-cooperative tile kernels.
//
// A kernel body runs once per thread. Threads are grouped into blocks of a
// fixed width; the tile operators of Thread (TileLoad, TileMatMul, TileStore
// and the rest) are collective, so every thread of a block must reach them
// in the same order with the same arguments.
//
// Example:
//
//	k := kernel.Kernel{Name: "dense", Body: func(t *kernel.Thread) {
//	    x := t.TileLoad(input, 0, t.BlockIndex(), 16, t.BlockWidth())
//	    w := t.TileLoad(weights, 0, 0, 3, 16)
//	    t.TileStore(output, 0, t.BlockIndex(), t.TileMatMul(w, x))
//	}}
//	err := kernel.Launch(ctx, k, []int{n}, 32)
package kernel

import (
	"context"

	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// Kernel is a named kernel body.
type Kernel = kernel.Kernel

// Thread is the handle a kernel body receives.
type Thread = kernel.Thread

// Option configures a launch.
type Option = kernel.Option

// Tile is a block-shared 2-D buffer.
type Tile = tile.Tile

// Value is a per-thread vector.
type Value = tile.Value

// Func is an element-wise function usable with Thread.TileMap.
type Func = tile.Func

// Element-wise functions.
const (
	Identity = tile.Identity
	ReLU     = tile.ReLU
	Sigmoid  = tile.Sigmoid
	Tanh     = tile.Tanh
	Sin      = tile.Sin
	Cos      = tile.Cos
	Exp      = tile.Exp
	Square   = tile.Square
)

// ErrDivergentBlock is returned when the threads of a block disagree on a collective.
var ErrDivergentBlock = kernel.ErrDivergentBlock

// Launch runs k over the domain dims in blocks of blockWidth threads.
func Launch(ctx context.Context, k Kernel, dims []int, blockWidth int, opts ...Option) error {
	return kernel.Launch(ctx, k, dims, blockWidth, opts...)
}

// LaunchTiled runs one block per point of the block grid.
func LaunchTiled(ctx context.Context, k Kernel, blocks []int, blockWidth int, opts ...Option) error {
	return kernel.LaunchTiled(ctx, k, blocks, blockWidth, opts...)
}

// WithTape records the launch into tape while it is recording.
func WithTape(tape *autodiff.Tape) Option {
	return kernel.WithTape(tape)
}

// WithWorkers bounds the number of blocks executing at once.
func WithWorkers(n int) Option {
	cfg := parallel.DefaultConfig()
	cfg.Enabled, cfg.NumWorkers = n > 1, n
	return kernel.WithParallel(cfg)
}

// NewValue creates a zero per-thread value of length n.
func NewValue(n int) *Value {
	return tile.NewValue(n)
}

// ValueOf creates a per-thread value holding xs.
func ValueOf(xs ...float32) *Value {
	return tile.ValueOf(xs...)
}
