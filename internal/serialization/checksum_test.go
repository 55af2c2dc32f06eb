package serialization

import (
	"encoding/hex"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestComputeChecksum_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := ComputeChecksum([]byte(tt.input))
			assert.Equal(t, tt.expected, hex.EncodeToString(sum[:]))
			assert.NoError(t, ValidateChecksum([]byte(tt.input), tt.expected))
		})
	}
}

func TestValidateChecksum_Mismatch(t *testing.T) {
	err := ValidateChecksum([]byte("test data"), "00")
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}
