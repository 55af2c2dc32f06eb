// Package kernel runs block-cooperative tile kernels.
//
// A launch partitions an iteration domain into blocks of a fixed number of
// lanes. Each lane runs the kernel body on its own goroutine; the lanes of a
// block cooperate through the collective tile operators of Thread, which are
// separated by block-wide barriers. Blocks never communicate.
//
// Every launch first runs each block once in shape-only mode: tiles carry
// extents but no storage, nothing is written, and every shape, bound, memory
// space and write-conflict error is reported before a single element moves.
// The same pass measures the arena footprint of a block, so the real run
// draws fixed-size arenas from a pool.
//
// Operators report errors by panicking with a wrapped sentinel error. The
// launcher recovers them at the block boundary and returns the first one.
package kernel

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/tilegrad/internal/autodiff"
	"github.com/born-ml/tilegrad/internal/parallel"
	"github.com/born-ml/tilegrad/internal/tile"
)

// ErrDivergentBlock is returned when the lanes of a block do not execute the
// same sequence of collective operators, e.g. one lane returns early while its
// siblings wait at a barrier.
var ErrDivergentBlock = errors.New("divergent block")

// Kernel is a named kernel body. Body is run once per lane.
type Kernel struct {
	Name string
	Body func(t *Thread)
}

func (k Kernel) String() string {
	if k.Name == "" {
		return "kernel"
	}
	return fmt.Sprintf("kernel %q", k.Name)
}

type launchConfig struct {
	tape     *autodiff.Tape
	parallel parallel.Config
	pool     *tile.Pool
}

// Option configures a launch.
type Option func(*launchConfig)

// WithTape makes every operator of the launch consult tape. Operators are
// recorded only while the tape is recording.
func WithTape(tape *autodiff.Tape) Option {
	return func(c *launchConfig) { c.tape = tape }
}

// WithParallel bounds the number of blocks executing at once.
func WithParallel(cfg parallel.Config) Option {
	return func(c *launchConfig) { c.parallel = cfg }
}

// WithArenaPool draws block arenas from pool instead of the shared default pool.
func WithArenaPool(pool *tile.Pool) Option {
	return func(c *launchConfig) { c.pool = pool }
}

var defaultPool = tile.NewPool()

func newLaunchConfig(opts []Option) launchConfig {
	cfg := launchConfig{
		parallel: parallel.DefaultConfig(),
		pool:     defaultPool,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// arenaRelease returns a retained arena to its pool when the tape lets go of it.
type arenaRelease struct {
	pool  *tile.Pool
	arena *tile.Arena
}

func (r arenaRelease) Release() { r.pool.Put(r.arena) }

func toError(exception any) error {
	if err, ok := exception.(error); ok {
		return err
	}
	return errors.Errorf("%v", exception)
}
