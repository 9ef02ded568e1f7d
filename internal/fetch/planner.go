package fetch

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/hyperstage/internal/cache"
	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/resource"
	"github.com/hupe1980/hyperstage/selection"
)

var (
	// ErrUnsupportedSelection is returned for selections that are not a single
	// contiguous block.
	ErrUnsupportedSelection = errors.New("fetch: selection is not a single block")
	// ErrStorageRead marks failures of the storage collaborator.
	ErrStorageRead = errors.New("fetch: storage read failed")
)

// Reader is the storage collaborator: it transfers the elements of fileSel
// into the positions of memSel inside dst.
type Reader interface {
	Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) error
}

// Strategy selects how missing chunks are fetched.
type Strategy uint8

const (
	// PerChunk issues one storage read per missing chunk.
	PerChunk Strategy = iota
	// Bulk issues one storage read for all missing chunks.
	Bulk
)

func (s Strategy) String() string {
	switch s {
	case PerChunk:
		return "PER_CHUNK"
	case Bulk:
		return "BULK"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// ReadError reports a failed storage read. Chunk is nil for bulk reads.
type ReadError struct {
	Strategy Strategy
	Chunk    []uint64
	Err      error
}

func (e *ReadError) Error() string {
	if e.Chunk != nil {
		return fmt.Sprintf("%s: chunk %v: %v", ErrStorageRead, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s: %s read: %v", ErrStorageRead, e.Strategy, e.Err)
}

func (e *ReadError) Unwrap() []error { return []error{ErrStorageRead, e.Err} }

// Range is a requested block together with the chunks it touches.
type Range struct {
	Start []uint64
	Count []uint64
	// First and End bound the chunk coordinates, half-open per axis.
	First []uint64
	End   []uint64
}

// NumChunks returns the number of chunks in the range.
func (r Range) NumChunks() uint64 {
	n := uint64(1)
	for i := range r.First {
		n *= r.End[i] - r.First[i]
	}
	return n
}

// Result summarizes one EnsureResident call.
type Result struct {
	Strategy  Strategy
	Hits      int
	Misses    int
	Reads     int
	BytesRead uint64
}

// Planner fills the cache from storage.
type Planner struct {
	cache  *cache.Manager
	reader Reader
	rc     *resource.Controller
}

// NewPlanner returns a planner that fills c from r. rc may be nil.
func NewPlanner(c *cache.Manager, r Reader, rc *resource.Controller) *Planner {
	return &Planner{cache: c, reader: r, rc: rc}
}

// Plan validates sel against the cached dataset and computes its chunk range.
func (p *Planner) Plan(sel *selection.Selection) (Range, error) {
	if sel.Rank() != p.cache.Rank() {
		return Range{}, fmt.Errorf("%w: rank %d, dataset rank %d", selection.ErrRankMismatch, sel.Rank(), p.cache.Rank())
	}
	if !slices.Equal(sel.Extents(), p.cache.Extents()) {
		return Range{}, fmt.Errorf("%w: extents %v, dataset extents %v", selection.ErrOutOfBounds, sel.Extents(), p.cache.Extents())
	}
	start, _, count, _, ok := sel.Regular()
	if !ok {
		return Range{}, fmt.Errorf("%w: %d blocks", ErrUnsupportedSelection, sel.NumBoxes())
	}
	first, end := grid.ChunkRange(start, count, p.cache.ChunkShape())
	return Range{Start: start, Count: count, First: first, End: end}, nil
}

// EnsureResident makes every chunk of r resident using strategy s.
//
// On a storage failure the chunks acquired for the failed read are
// discarded, so no chunk is ever resident with unfilled contents.
func (p *Planner) EnsureResident(ctx context.Context, r Range, s Strategy) (Result, error) {
	switch s {
	case PerChunk:
		return p.perChunk(ctx, r)
	case Bulk:
		return p.bulk(ctx, r)
	default:
		return Result{}, fmt.Errorf("fetch: unknown strategy %s", s)
	}
}

// Fetch reads the chunk at coords into the cache, resident or not.
func (p *Planner) Fetch(ctx context.Context, coords []uint64) (uint64, error) {
	buf, err := p.cache.Acquire(coords)
	if err != nil {
		return 0, err
	}
	n, err := p.fill(ctx, coords, buf)
	if err != nil {
		p.cache.Discard(coords)
		return 0, &ReadError{Strategy: PerChunk, Chunk: slices.Clone(coords), Err: err}
	}
	return n, nil
}

func (p *Planner) perChunk(ctx context.Context, r Range) (Result, error) {
	res := Result{Strategy: PerChunk}
	err := grid.ForEach(r.First, r.End, p.cache.Grid().Order, func(c []uint64) error {
		if p.cache.Lookup(c) != nil {
			res.Hits++
			return nil
		}
		res.Misses++
		n, err := p.Fetch(ctx, c)
		if err != nil {
			return err
		}
		res.Reads++
		res.BytesRead += n
		return nil
	})
	return res, err
}

// fill reads the dataset footprint of the chunk at coords into buf.
func (p *Planner) fill(ctx context.Context, coords []uint64, buf []byte) (uint64, error) {
	start, count := p.cache.Footprint(coords)
	if p.cache.Partial(coords) {
		clear(buf)
	}

	fileSel := selection.NewNone(p.cache.Extents()...)
	if err := fileSel.SelectBox(selection.Set, start, count); err != nil {
		return 0, err
	}
	memSel := selection.NewNone(p.cache.ChunkShape()...)
	if err := memSel.SelectBox(selection.Set, make([]uint64, len(count)), count); err != nil {
		return 0, err
	}

	if err := p.reader.Read(ctx, fileSel, memSel, buf); err != nil {
		return 0, err
	}
	return fileSel.NumElements() * p.cache.ElemSize(), nil
}

func (p *Planner) bulk(ctx context.Context, r Range) (Result, error) {
	res := Result{Strategy: Bulk}
	extents := p.cache.Extents()
	chunk := p.cache.ChunkShape()
	order := p.cache.Grid().Order
	elemSize := p.cache.ElemSize()

	fileSel := selection.NewNone(extents...)
	if err := fileSel.SelectBox(selection.Set, r.Start, r.Count); err != nil {
		return res, err
	}

	var missing [][]uint64
	err := grid.ForEach(r.First, r.End, order, func(c []uint64) error {
		start, count := p.cache.Footprint(c)
		if p.cache.Lookup(c) != nil {
			res.Hits++
			return fileSel.SelectBox(selection.NotB, start, count)
		}
		res.Misses++
		missing = append(missing, slices.Clone(c))
		return fileSel.SelectBox(selection.Or, start, count)
	})
	if err != nil || len(missing) == 0 {
		return res, err
	}

	// Chunked bounding box of the range, clipped to the dataset.
	bbStart := make([]uint64, len(extents))
	bbCount := make([]uint64, len(extents))
	delta := make([]int64, len(extents))
	for i := range extents {
		bbStart[i] = r.First[i] * chunk[i]
		bbCount[i] = min(r.End[i]*chunk[i], extents[i]) - bbStart[i]
		delta[i] = -int64(bbStart[i])
	}
	bbLayout := grid.Layout{Extents: bbCount, Order: order}

	scratchBytes := bbLayout.Len() * elemSize
	if err := p.rc.AcquireMemory(int64(scratchBytes)); err != nil {
		// No room for the scratch buffer: fetch chunk by chunk instead.
		pr, perr := p.perChunk(ctx, r)
		pr.Strategy = Bulk
		return pr, perr
	}
	defer p.rc.ReleaseMemory(int64(scratchBytes))

	memSel, err := fileSel.Translate(bbCount, delta)
	if err != nil {
		return res, err
	}

	scratch := make([]byte, scratchBytes)
	if err := p.reader.Read(ctx, fileSel, memSel, scratch); err != nil {
		return res, &ReadError{Strategy: Bulk, Err: err}
	}
	res.Reads++
	res.BytesRead = fileSel.NumElements() * elemSize

	chunkLayout := p.cache.ChunkLayout()
	origin := make([]uint64, len(extents))
	rel := make([]uint64, len(extents))
	for _, c := range missing {
		buf, err := p.cache.Acquire(c)
		if err != nil {
			return res, err
		}
		if p.cache.Partial(c) {
			clear(buf)
		}
		start, count := p.cache.Footprint(c)
		for i := range rel {
			rel[i] = start[i] - bbStart[i]
		}
		grid.CopyBox(buf, chunkLayout, origin, scratch, bbLayout, rel, count, elemSize)
	}
	return res, nil
}
