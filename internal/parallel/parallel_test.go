package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, DefaultConfig())

	assert.Equal(t, int64(n), counter)
}

func TestFor2D(t *testing.T) {
	rows, cols := 4, 8
	results := make([][]bool, rows)
	for r := range results {
		results[r] = make([]bool, cols)
	}

	For2D(rows, cols, func(i, j int) {
		results[i][j] = true
	}, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.True(t, results[i][j], "missing result at [%d][%d]", i, j)
		}
	}
}

func TestForRange_CoversDisjointChunks(t *testing.T) {
	hits := make([]int32, 1000)
	ForRange(len(hits), func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, Config{Enabled: true, NumWorkers: 7, MinChunkSize: 10})

	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, Sequential())

	assert.Equal(t, int64(100), counter)
	assert.Equal(t, 1, Sequential().Workers())
}

func TestForRange_Empty(t *testing.T) {
	called := false
	ForRange(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}
