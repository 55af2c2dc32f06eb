// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tilegrad/array"
	"github.com/born-ml/tilegrad/autodiff"
	"github.com/born-ml/tilegrad/nn"
	"github.com/born-ml/tilegrad/optim"
)

func TestPublicTrainingLoop(t *testing.T) {
	cfg := nn.DefaultConfig()
	cfg.Width, cfg.Height = 8, 8

	model, err := nn.NewMLP(cfg)
	require.NoError(t, err)
	values := make([]float32, 3*cfg.Pixels())
	for i := range values {
		values[i] = 0.5
	}
	ref, err := array.FromSlice(values, array.Shape{3, cfg.Pixels()}, array.Float32)
	require.NoError(t, err)
	buffers, err := model.NewBuffers(ref)
	require.NoError(t, err)

	params, err := nn.OptimParams(model.Parameters())
	require.NoError(t, err)
	trainer := nn.NewTrainer(model, buffers, optim.NewAdam(params, optim.AdamConfig{LR: 0.01}))

	first, err := trainer.Step(context.Background())
	require.NoError(t, err)
	var last float32
	for range 20 {
		last, err = trainer.Step(context.Background())
		require.NoError(t, err)
	}
	assert.Less(t, last, first)
	assert.Equal(t, autodiff.Inactive, trainer.Tape().State())
}
