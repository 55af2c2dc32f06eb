package kernel

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestBarrier_ReleasesAllParties(t *testing.T) {
	const parties, rounds = 8, 50
	b := newBarrier(parties)
	counts := make([]int, rounds)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				mu.Lock()
				counts[r]++
				mu.Unlock()
				assert.NoError(t, b.wait())
				mu.Lock()
				assert.Equal(t, parties, counts[r], "round %d released early", r)
				mu.Unlock()
				assert.NoError(t, b.wait())
			}
		}()
	}
	wg.Wait()
	assert.NoError(t, b.cause())
}

func TestBarrier_LeaveBreaksWaiters(t *testing.T) {
	b := newBarrier(2)
	done := make(chan error)
	go func() { done <- b.wait() }()

	// Spin until the waiter has arrived.
	for {
		b.mu.Lock()
		arrived := b.arrived
		b.mu.Unlock()
		if arrived == 1 {
			break
		}
	}
	b.leave()
	err := <-done
	assert.True(t, errors.Is(err, ErrDivergentBlock))
	assert.True(t, errors.Is(b.wait(), ErrDivergentBlock), "later waits fail too")
}

func TestBarrier_WaitAfterLeave(t *testing.T) {
	b := newBarrier(2)
	b.leave()
	assert.True(t, errors.Is(b.wait(), ErrDivergentBlock))
}

func TestBarrier_BreakWithKeepsFirstError(t *testing.T) {
	b := newBarrier(3)
	first := errors.New("first")
	b.breakWith(first)
	b.breakWith(errors.New("second"))
	assert.Equal(t, first, b.wait())
	assert.Equal(t, first, b.cause())
}
