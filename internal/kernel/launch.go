package kernel

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/autodiff"
)

// Launch runs k over the iteration domain dims in blocks of blockWidth lanes.
//
// The domain is flattened in row-major order and cut into prod(dims)/blockWidth
// consecutive blocks; Thread.TID returns the domain coordinates of each lane.
// The domain size must be a multiple of blockWidth.
//
// Launch returns once every block has finished. Errors found while validating
// the launch are returned before any Array is written. The context is only
// consulted before dispatch: a launch is never cancelled half way.
func Launch(ctx context.Context, k Kernel, dims []int, blockWidth int, opts ...Option) error {
	total, err := domainSize("domain", dims)
	if err != nil {
		return errors.WithMessagef(err, "launch %s", k)
	}
	if blockWidth <= 0 {
		return errors.Wrapf(array.ErrShapeMismatch, "launch %s: block width must be positive, got %d", k, blockWidth)
	}
	if total%blockWidth != 0 {
		return errors.Wrapf(array.ErrShapeMismatch, "launch %s: domain %v of %d threads is not a multiple of block width %d",
			k, dims, total, blockWidth)
	}
	dims = append([]int(nil), dims...)
	g := grid{
		numBlocks: total / blockWidth,
		width:     blockWidth,
		coords:    func(block int) []int { return []int{block} },
		tid: func(block, lane int) []int {
			return unravel(block*blockWidth+lane, dims)
		},
	}
	return launch(ctx, k, g, opts)
}

// LaunchTiled runs one block of blockWidth lanes per point of the block grid.
// Thread.TID and Thread.BlockCoords both return the block's grid coordinates.
func LaunchTiled(ctx context.Context, k Kernel, blocks []int, blockWidth int, opts ...Option) error {
	numBlocks, err := domainSize("grid", blocks)
	if err != nil {
		return errors.WithMessagef(err, "launch %s", k)
	}
	if blockWidth <= 0 {
		return errors.Wrapf(array.ErrShapeMismatch, "launch %s: block width must be positive, got %d", k, blockWidth)
	}
	dims := append([]int(nil), blocks...)
	return launch(ctx, k, gridOf(numBlocks, blockWidth, dims), opts)
}

func gridOf(numBlocks, width int, dims []int) grid {
	return grid{
		numBlocks: numBlocks,
		width:     width,
		coords:    func(block int) []int { return unravel(block, dims) },
		tid:       func(block, _ int) []int { return unravel(block, dims) },
	}
}

func launch(ctx context.Context, k Kernel, g grid, opts []Option) error {
	if k.Body == nil {
		return errors.Errorf("launch %s: nil kernel body", k)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "launch %s", k)
	}
	cfg := newLaunchConfig(opts)

	start := time.Now()
	footprint, err := validate(k, g, cfg)
	if err != nil {
		return errors.WithMessagef(err, "launch %s", k)
	}
	validated := time.Since(start)
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "launch %s", k)
	}

	var tape *autodiff.Tape
	if cfg.tape != nil && cfg.tape.IsRecording() {
		tape = cfg.tape
	}

	var eg errgroup.Group
	eg.SetLimit(cfg.parallel.Workers())
	for i := 0; i < g.numBlocks; i++ {
		eg.Go(func() error {
			arena := cfg.pool.Get(footprint)
			b := newBlock(g, i, arena, tape, false)
			err := b.run(k.Body)
			if tape == nil || !tape.Retain(arenaRelease{pool: cfg.pool, arena: arena}) {
				cfg.pool.Put(arena)
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.WithMessagef(err, "launch %s", k)
	}
	klog.V(1).Infof("%s: %d blocks × %d lanes, footprint %d elements/block, validated in %s, ran in %s (recorded=%t)",
		k, g.numBlocks, g.width, footprint, validated, time.Since(start)-validated, tape != nil)
	return nil
}

func domainSize(what string, dims []int) (int, error) {
	if len(dims) == 0 {
		return 0, errors.Wrapf(array.ErrShapeMismatch, "empty %s", what)
	}
	total := 1
	for _, d := range dims {
		if d <= 0 {
			return 0, errors.Wrapf(array.ErrShapeMismatch, "%s %v has a non-positive extent", what, dims)
		}
		total *= d
	}
	return total, nil
}

// unravel converts a row-major linear index into coordinates over dims.
func unravel(linear int, dims []int) []int {
	coords := make([]int, len(dims))
	for d := len(dims) - 1; d >= 0; d-- {
		coords[d] = linear % dims[d]
		linear /= dims[d]
	}
	return coords
}
