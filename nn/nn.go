// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the per-pixel coordinate MLP and its building blocks.
//
// # Overview
//
// This package contains:
//   - Linear and Sequential: layers evaluated on tiles inside a kernel body
//   - MLP: the network fitted to an image, one thread per pixel
//   - SingleLayer: one layer over a pre-tiled input
//   - Trainer: record, backward and update in one Step
//   - Checkpoint: parameter snapshots in SafeTensors files
//
// # Basic Usage
//
//	cfg := nn.DefaultConfig()
//	model, err := nn.NewMLP(cfg)
//	buffers, err := model.NewBuffers(reference)
//
//	params, err := nn.OptimParams(model.Parameters())
//	trainer := nn.NewTrainer(model, buffers, optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}))
//	for range iters {
//	    loss, err := trainer.Step(ctx)
//	    ...
//	}
package nn

import (
	"math/rand"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/kernel"
	"github.com/born-ml/tilegrad/internal/nn"
	"github.com/born-ml/tilegrad/internal/optim"
	"github.com/born-ml/tilegrad/internal/tile"
)

// Module is anything that owns trainable parameters.
type Module = nn.Module

// Parameter is a named trainable Array.
type Parameter = nn.Parameter

// Config describes the network and the image it is fitted to.
type Config = nn.Config

// Linear is a fully connected layer.
type Linear = nn.Linear

// Sequential chains Linear layers.
type Sequential = nn.Sequential

// MLP is the per-pixel coordinate network.
type MLP = nn.MLP

// Buffers are the Arrays an MLP launch reads and writes.
type Buffers = nn.Buffers

// SingleLayer is one layer over a pre-tiled input.
type SingleLayer = nn.SingleLayer

// Trainer runs the fitting loop.
type Trainer = nn.Trainer

// Checkpoint is a parameter snapshot.
type Checkpoint = nn.Checkpoint

// DefaultConfig returns the default 64×64 configuration.
func DefaultConfig() Config {
	return nn.DefaultConfig()
}

// NewLinear creates a layer initialized from U(-1/√in, 1/√in).
func NewLinear(rng *rand.Rand, name string, inFeatures, outFeatures int, dtype array.DataType) (*Linear, error) {
	return nn.NewLinear(rng, name, inFeatures, outFeatures, dtype)
}

// NewSequential creates layers between consecutive dims.
func NewSequential(rng *rand.Rand, dims []int, activation tile.Func, dtype array.DataType) (*Sequential, error) {
	return nn.NewSequential(rng, dims, activation, dtype)
}

// NewMLP creates the coordinate network.
func NewMLP(cfg Config) (*MLP, error) {
	return nn.NewMLP(cfg)
}

// NewSingleLayer creates the single-layer model.
func NewSingleLayer(cfg Config) (*SingleLayer, error) {
	return nn.NewSingleLayer(cfg)
}

// NewTrainer creates a Trainer; a nil optimizer only computes gradients.
func NewTrainer(model *MLP, buffers *Buffers, optimizer optim.Optimizer, opts ...kernel.Option) *Trainer {
	return nn.NewTrainer(model, buffers, optimizer, opts...)
}

// OptimParams flattens parameters for an optimizer.
func OptimParams(params []*Parameter) ([]optim.Param, error) {
	return nn.OptimParams(params)
}

// LoadCheckpoint restores model from path.
func LoadCheckpoint(path string, model Module) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model)
}

// PositionalEncoding encodes pixel (row, col) of a height×width image.
func PositionalEncoding(row, col, height, width, numFreq int) *tile.Value {
	return nn.PositionalEncoding(row, col, height, width, numFreq)
}
