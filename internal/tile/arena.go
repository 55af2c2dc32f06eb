package tile

import (
	"sync"

	"github.com/pkg/errors"
)

// Arena is the fast block-local storage backing a block's tiles for one
// kernel-body invocation. It is a bump allocator over a fixed buffer; a
// measuring arena hands out shape-only tiles and records the footprint.
type Arena struct {
	buf       []float32
	used      int
	tiles     int
	measuring bool
}

// NewArena creates an arena with room for capacity float32 elements.
func NewArena(capacity int) *Arena {
	return &Arena{buf: make([]float32, capacity)}
}

// NewMeasuringArena creates an arena that allocates no storage and only
// accumulates the footprint of the tiles requested from it.
func NewMeasuringArena() *Arena {
	return &Arena{measuring: true}
}

// Alloc reserves a dense rows×cols tile.
func (a *Arena) Alloc(rows, cols int) (*Tile, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("tile extents must be positive, got %dx%d", rows, cols)
	}
	n := rows * cols
	a.tiles++
	if a.measuring {
		a.used += n
		return newTile(rows, cols, nil), nil
	}
	if a.used+n > len(a.buf) {
		return nil, errors.Errorf("arena exhausted: %d of %d elements used, %dx%d tile requested",
			a.used, len(a.buf), rows, cols)
	}
	data := a.buf[a.used : a.used+n : a.used+n]
	clear(data)
	a.used += n
	return newTile(rows, cols, data), nil
}

// Footprint returns the number of float32 elements allocated so far.
func (a *Arena) Footprint() int { return a.used }

// NumTiles returns the number of tiles allocated so far.
func (a *Arena) NumTiles() int { return a.tiles }

// Capacity returns the arena size in elements.
func (a *Arena) Capacity() int { return len(a.buf) }

// Reset makes the whole arena available again. Tiles handed out before are invalidated.
func (a *Arena) Reset() {
	a.used = 0
	a.tiles = 0
}

// Pool recycles arenas of equal capacity across launches.
type Pool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

// NewPool creates an empty arena pool.
func NewPool() *Pool {
	return &Pool{pools: make(map[int]*sync.Pool)}
}

// Get returns an arena with exactly capacity elements.
func (p *Pool) Get(capacity int) *Arena {
	p.mu.Lock()
	sp, ok := p.pools[capacity]
	if !ok {
		sp = &sync.Pool{New: func() any { return NewArena(capacity) }}
		p.pools[capacity] = sp
	}
	p.mu.Unlock()

	a := sp.Get().(*Arena)
	a.Reset()
	return a
}

// Put returns an arena to the pool. The caller must not use its tiles afterwards.
func (p *Pool) Put(a *Arena) {
	if a == nil || a.measuring {
		return
	}
	p.mu.Lock()
	sp, ok := p.pools[len(a.buf)]
	p.mu.Unlock()
	if ok {
		sp.Put(a)
	}
}
