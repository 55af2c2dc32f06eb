package array

import "github.com/pkg/errors"

// Error taxonomy shared by the tile store, the operators and the launcher.
// Callers match them with errors.Is; the wrapped message carries the details.
var (
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrNumericDivergence = errors.New("non-finite value")
	ErrMemorySpace       = errors.New("array in wrong memory space")
	ErrWriteConflict     = errors.New("overlapping writes from different blocks")
)
