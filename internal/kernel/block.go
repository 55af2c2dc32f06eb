package kernel

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/tile"
)

// grid describes how blocks and lanes map onto the iteration domain.
type grid struct {
	numBlocks int
	width     int
	coords    func(block int) []int
	tid       func(block, lane int) []int
}

// collective identifies one collective call. Every lane must present the
// same key as lane 0 at the same point of the block's execution.
type collective struct {
	op         string
	a, b       *tile.Tile
	arr        *array.Array
	f          tile.Func
	i, j, m, n int
}

// slot is the block state lane 0 publishes to the other lanes between the
// entry and exit barriers of a collective.
type slot struct {
	key    collective
	tile   *tile.Tile
	values []*tile.Value
	row0   int
	col0   int
	err    error
}

// region is a rectangle of an Array written by a tile store.
type region struct {
	arr        *array.Array
	block      int
	row0, col0 int
	rows, cols int
}

// block is the shared state of one kernel-body invocation.
type block struct {
	index   int
	coords  []int
	width   int
	grid    grid
	arena   *tile.Arena
	barrier *barrier
	tape    *autodiff.Tape // nil when not recording
	dryRun  bool

	slot    slot
	staging []*tile.Value // indexed by lane
	stores  []region      // dry run only
}

func newBlock(g grid, index int, arena *tile.Arena, tape *autodiff.Tape, dryRun bool) *block {
	return &block{
		index:   index,
		coords:  g.coords(index),
		width:   g.width,
		grid:    g,
		arena:   arena,
		barrier: newBarrier(g.width),
		tape:    tape,
		dryRun:  dryRun,
		staging: make([]*tile.Value, g.width),
	}
}

// run executes body on every lane and returns the first error raised by any
// lane. It returns once all lanes have finished.
func (b *block) run(body func(*Thread)) error {
	var wg sync.WaitGroup
	wg.Add(b.width)
	for lane := 0; lane < b.width; lane++ {
		t := &Thread{b: b, lane: lane, tid: b.grid.tid(b.index, lane)}
		go func() {
			defer wg.Done()
			if exception := exceptions.Try(func() { body(t) }); exception != nil {
				b.barrier.breakWith(toError(exception))
				return
			}
			b.barrier.leave()
		}()
	}
	wg.Wait()
	if err := b.barrier.cause(); err != nil {
		return errors.WithMessagef(err, "block %d", b.index)
	}
	return nil
}

func (b *block) alloc(rows, cols int) (*tile.Tile, error) {
	t, err := b.arena.Alloc(rows, cols)
	if err != nil {
		return nil, errors.Wrap(array.ErrShapeMismatch, err.Error())
	}
	return t, nil
}
