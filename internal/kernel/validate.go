package kernel

import (
	"cmp"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/born-ml/tilegrad/internal/array"
	"github.com/born-ml/tilegrad/internal/tile"
)

// validate runs every block in shape-only mode and returns the largest arena
// footprint of a block. It never writes to an Array and never records.
func validate(k Kernel, g grid, cfg launchConfig) (int, error) {
	var (
		mu        sync.Mutex
		footprint int
		tiles     int
		stores    []region
	)
	var eg errgroup.Group
	eg.SetLimit(cfg.parallel.Workers())
	for i := 0; i < g.numBlocks; i++ {
		eg.Go(func() error {
			b := newBlock(g, i, tile.NewMeasuringArena(), nil, true)
			if err := b.run(k.Body); err != nil {
				return errors.WithMessage(err, "validation")
			}
			mu.Lock()
			defer mu.Unlock()
			footprint = max(footprint, b.arena.Footprint())
			tiles = max(tiles, b.arena.NumTiles())
			stores = append(stores, b.stores...)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	if err := checkWriteConflicts(stores); err != nil {
		return 0, errors.WithMessage(err, "validation")
	}
	klog.V(2).Infof("%s: block arena of %d elements in %d tiles, %d tile stores", k, footprint, tiles, len(stores))
	return footprint, nil
}

// checkWriteConflicts rejects stores of different blocks into overlapping
// regions of the same Array. Stores of one block are ordered by its barriers
// and may overlap.
//
// Regions are swept along the axis with more distinct start offsets, so the
// usual layouts (blocks side by side along one axis) take a single pass after
// the sort.
func checkWriteConflicts(stores []region) error {
	byArray := make(map[*array.Array][]region)
	for _, r := range stores {
		byArray[r.arr] = append(byArray[r.arr], r)
	}
	for arr, regions := range byArray {
		sweep, other := rowSpan, colSpan
		if distinctStarts(regions, colSpan) > distinctStarts(regions, rowSpan) {
			sweep, other = colSpan, rowSpan
		}
		slices.SortFunc(regions, func(a, b region) int {
			as, _ := sweep(a)
			bs, _ := sweep(b)
			if c := cmp.Compare(as, bs); c != 0 {
				return c
			}
			ao, _ := other(a)
			bo, _ := other(b)
			return cmp.Compare(ao, bo)
		})
		for i, a := range regions {
			_, aEnd := sweep(a)
			for _, b := range regions[i+1:] {
				if bStart, _ := sweep(b); bStart >= aEnd {
					break
				}
				if a.block != b.block && spansOverlap(other, a, b) {
					return errors.Wrapf(array.ErrWriteConflict,
						"blocks %d and %d both store to rows [%d, %d) cols [%d, %d) of array %s",
						a.block, b.block, max(a.row0, b.row0), min(a.row0+a.rows, b.row0+b.rows),
						max(a.col0, b.col0), min(a.col0+a.cols, b.col0+b.cols), arr.Shape())
				}
			}
		}
	}
	return nil
}

func rowSpan(r region) (start, end int) { return r.row0, r.row0 + r.rows }

func colSpan(r region) (start, end int) { return r.col0, r.col0 + r.cols }

func spansOverlap(span func(region) (int, int), a, b region) bool {
	as, ae := span(a)
	bs, be := span(b)
	return as < be && bs < ae
}

func distinctStarts(regions []region, span func(region) (int, int)) int {
	seen := make(map[int]struct{})
	for _, r := range regions {
		s, _ := span(r)
		seen[s] = struct{}{}
	}
	return len(seen)
}
