package kernel

import (
	"sync"

	"github.com/pkg/errors"
)

// barrier is a reusable block-wide barrier that can be broken.
//
// A broken barrier releases every waiter with the breaking error, and every
// later wait fails with it too, so a failed or exited lane never leaves its
// siblings deadlocked.
type barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	parties    int
	arrived    int
	generation uint64
	left       int // lanes whose body has returned
	err        error
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// wait blocks until all parties have arrived.
func (b *barrier) wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.left > 0 {
		b.breakLocked(errors.Wrapf(ErrDivergentBlock, "%d of %d lanes returned before a barrier", b.left, b.parties))
		return b.err
	}

	gen := b.generation
	b.arrived++
	if b.arrived == b.parties {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.generation && b.err == nil {
		b.cond.Wait()
	}
	if gen != b.generation {
		return nil
	}
	return b.err
}

// leave marks a lane whose body returned normally.
func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.left++
	if b.arrived > 0 {
		b.breakLocked(errors.Wrapf(ErrDivergentBlock, "a lane returned while %d lanes wait at a barrier", b.arrived))
	}
}

// breakWith breaks the barrier with err unless it is already broken.
func (b *barrier) breakWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakLocked(err)
}

func (b *barrier) breakLocked(err error) {
	if b.err == nil {
		b.err = err
	}
	b.cond.Broadcast()
}

// cause returns the error that broke the barrier, or nil.
func (b *barrier) cause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
