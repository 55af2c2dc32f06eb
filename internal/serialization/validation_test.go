package serialization

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name: "adjacent",
			tensors: []TensorMeta{
				{Name: "b", Offset: 16, Size: 8},
				{Name: "a", Offset: 0, Size: 16},
			},
			dataSize: 24,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 16},
				{Name: "b", Offset: 8, Size: 16},
			},
			dataSize: 32,
			want:     ErrOffsetOverlap,
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 8, Size: 16}},
			dataSize: 16,
			want:     ErrOutOfBounds,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -4, Size: 4}},
			dataSize: 16,
			want:     ErrNegativeOffset,
		},
		{
			name:     "too many",
			tensors:  make([]TensorMeta, MaxTensorCount+1),
			dataSize: 0,
			want:     ErrTooManyTensors,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{"layer0.weight", "layer_2.bias", "w"} {
		assert.NoError(t, ValidateTensorName(name), name)
	}
	for _, name := range []string{"", "__metadata__", "../etc/passwd", "a/b", `a\b`, "a\x00b", strings.Repeat("x", MaxTensorNameLen+1)} {
		err := ValidateTensorName(name)
		assert.True(t, errors.Is(err, ErrInvalidTensorName), "%q", name)
	}
}

func TestValidationError_Messages(t *testing.T) {
	err := &ValidationError{Err: ErrOffsetOverlap, Tensor: "a", Tensor2: "b", Details: "regions overlap"}
	assert.Contains(t, err.Error(), `tensors "a" and "b"`)
	err = &ValidationError{Err: ErrOutOfBounds, Tensor: "a", Details: "too far"}
	assert.Contains(t, err.Error(), `tensor "a": too far`)
	err = &ValidationError{Err: ErrTooManyTensors, Details: "got 5"}
	assert.Equal(t, ErrTooManyTensors.Error()+": got 5", err.Error())
}
