package hyperstage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hyperstage/dataset"
	"github.com/hupe1980/hyperstage/internal/cache"
	"github.com/hupe1980/hyperstage/internal/fetch"
	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/selection"
)

// Stage is a bounded chunk cache in front of a dataset.
//
// A Stage is not safe for concurrent use.
type Stage struct {
	ds      dataset.Dataset
	cfg     Config
	cache   *cache.Manager
	planner *fetch.Planner
	copier  *fetch.Copier
	logger  *Logger
	metrics MetricsCollector
	closed  bool

	reads        uint64
	hits         uint64
	misses       uint64
	refetches    uint64
	storageReads uint64
	bytesRead    uint64
}

// Stats is a snapshot of a Stage.
type Stats struct {
	// Reads is the number of Read calls that reached the cache.
	Reads uint64
	// Hits and Misses count chunks found resident or missing during
	// residency planning.
	Hits   uint64
	Misses uint64
	// Refetches counts chunks read again because they were evicted
	// before copy-out.
	Refetches    uint64
	StorageReads uint64
	BytesRead    uint64

	Resident    int
	Capacity    uint64
	Occupied    uint64
	Limit       uint64
	ChunkBytes  uint64
	Allocations uint64
	Evictions   uint64
	Discards    uint64
}

// New creates a Stage over ds. The chunk grid is derived from the dataset
// extents and cfg; no data is read until the first Read.
//
// The Stage does not take ownership of ds.
func New(ds dataset.Dataset, cfg Config, optFns ...Option) (*Stage, error) {
	if ds == nil {
		return nil, &ConfigError{Field: "dataset", Value: nil}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := applyOptions(optFns)

	s := &Stage{
		ds:      ds,
		cfg:     cfg,
		logger:  opts.logger.WithDataset(ds.Extents(), ds.ElementSize()),
		metrics: opts.metricsCollector,
	}

	m, err := cache.New(cache.Config{
		Extents:    ds.Extents(),
		Order:      ds.Order(),
		ElemSize:   ds.ElementSize(),
		ChunkSize:  cfg.ChunkSize,
		Limit:      uint64(cfg.CacheLimit),
		Policy:     cachePolicy(cfg.Eviction),
		Geometry:   cacheGeometry(cfg.Shape),
		Controller: opts.rc,
		OnEvict:    s.onEvict,
	})
	if err != nil {
		return nil, translateError(err)
	}
	s.cache = m
	s.planner = fetch.NewPlanner(m, ds, opts.rc)
	s.copier = fetch.NewCopier(m)

	st := m.Stats()
	s.logger.Info("stage initialized",
		"chunk_shape", m.ChunkShape(),
		"grid", m.Grid().Extents,
		"chunk_bytes", st.ChunkBytes,
		"capacity", st.Capacity,
		"eviction", cfg.Eviction,
		"strategy", cfg.Strategy,
	)
	return s, nil
}

func cachePolicy(e Eviction) cache.Policy {
	if e == EvictFIFO {
		return cache.FIFO
	}
	return cache.LRU
}

func cacheGeometry(s Shape) cache.Geometry {
	if s == ShapeLine {
		return cache.Line
	}
	return cache.Square
}

func fetchStrategy(s Strategy) fetch.Strategy {
	if s == Bulk {
		return fetch.Bulk
	}
	return fetch.PerChunk
}

func (s *Stage) onEvict(coords []uint64) {
	s.metrics.RecordEviction()
	s.logger.LogEviction(context.Background(), coords)
}

// Config returns the configuration the stage was built with.
func (s *Stage) Config() Config { return s.cfg }

// ChunkShape returns the chunk extents in elements.
func (s *Stage) ChunkShape() []uint64 { return slices.Clone(s.cache.ChunkShape()) }

// GridExtents returns the number of chunks along every axis.
func (s *Stage) GridExtents() []uint64 { return slices.Clone(s.cache.Grid().Extents) }

// Read copies the block selected by fileSel into dst.
//
// fileSel must be a dataspace over the dataset extents selecting a single
// contiguous block. memSel describes dst: its extents are the buffer shape
// and it must select one block of the same size. A nil memSel means dst is
// a dense buffer of the block's shape. dst is linearized in the dataset's
// order.
//
// A failed Read leaves the Stage usable.
func (s *Stage) Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) (err error) {
	if s.closed {
		return ErrClosed
	}
	if fileSel == nil {
		return fmt.Errorf("%w: nil file selection", ErrInvalidSelection)
	}
	if !slices.Equal(fileSel.Extents(), s.cache.Extents()) {
		return fmt.Errorf("%w: selection over %v, dataset extents %v", ErrInvalidSelection, fileSel.Extents(), s.cache.Extents())
	}
	if fileSel.IsEmpty() {
		return nil
	}

	began := time.Now()
	r, err := s.planner.Plan(fileSel)
	if err != nil {
		return translateError(err)
	}

	var res fetch.Result
	defer func() {
		s.metrics.RecordRead(fileSel.NumElements(), res.Hits, res.Misses, time.Since(began), err)
		s.logger.LogRead(ctx, r.Start, r.Count, res.Hits, res.Misses, err)
	}()

	dstLayout, origin, err := s.destination(r, memSel, dst)
	if err != nil {
		return err
	}

	s.reads++
	res, err = s.ensureResident(ctx, r)
	if err != nil {
		return translateError(err)
	}

	var onMiss func(coords []uint64) error
	if s.cfg.MissPolicy == MissRefetch {
		onMiss = func(coords []uint64) error {
			return s.refetch(ctx, coords)
		}
	}
	return translateError(s.copier.Copy(dst, dstLayout, origin, r, onMiss))
}

// destination validates the memory side of a Read.
func (s *Stage) destination(r fetch.Range, memSel *selection.Selection, dst []byte) (grid.Layout, []uint64, error) {
	order := s.cache.Grid().Order
	rank := len(r.Count)

	layout := grid.Layout{Extents: r.Count, Order: order}
	origin := make([]uint64, rank)
	if memSel != nil {
		if memSel.Rank() != rank {
			return grid.Layout{}, nil, fmt.Errorf("%w: memory rank %d, file rank %d", ErrInvalidSelection, memSel.Rank(), rank)
		}
		start, _, count, _, ok := memSel.Regular()
		if !ok {
			return grid.Layout{}, nil, fmt.Errorf("%w: memory selection has %d blocks", ErrUnsupportedSelection, memSel.NumBoxes())
		}
		if !slices.Equal(count, r.Count) {
			return grid.Layout{}, nil, fmt.Errorf("%w: memory block %v, file block %v", ErrInvalidSelection, count, r.Count)
		}
		layout = grid.Layout{Extents: memSel.Extents(), Order: order}
		origin = start
	}

	if need := layout.Len() * s.cache.ElemSize(); uint64(len(dst)) < need {
		return grid.Layout{}, nil, fmt.Errorf("%w: destination holds %d bytes, need %d", ErrInvalidSelection, len(dst), need)
	}
	return layout, origin, nil
}

func (s *Stage) ensureResident(ctx context.Context, r fetch.Range) (fetch.Result, error) {
	began := time.Now()
	res, err := s.planner.EnsureResident(ctx, r, fetchStrategy(s.cfg.Strategy))

	s.hits += uint64(res.Hits)
	s.misses += uint64(res.Misses)
	s.storageReads += uint64(res.Reads)
	s.bytesRead += res.BytesRead

	s.metrics.RecordFetch(res.Reads, res.BytesRead, time.Since(began), err)
	s.logger.LogFetch(ctx, res.Strategy.String(), res.Reads, res.BytesRead, err)
	return res, err
}

func (s *Stage) refetch(ctx context.Context, coords []uint64) error {
	began := time.Now()
	n, err := s.planner.Fetch(ctx, coords)
	if err == nil {
		s.refetches++
		s.storageReads++
		s.bytesRead += n
		s.logger.LogRefetch(ctx, coords)
	}
	s.metrics.RecordFetch(1, n, time.Since(began), err)
	return err
}

// ReadRegion reads the block at start with the given count into a new
// dense buffer.
func (s *Stage) ReadRegion(ctx context.Context, start, count []uint64) ([]byte, error) {
	if s.closed {
		return nil, ErrClosed
	}
	sel := selection.NewNone(s.cache.Extents()...)
	if err := sel.SelectBox(selection.Set, start, count); err != nil {
		return nil, translateError(err)
	}
	buf := make([]byte, sel.NumElements()*s.cache.ElemSize())
	if err := s.Read(ctx, sel, nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Prefetch makes the chunks covering sel resident without copying data.
// Chunks beyond the cache capacity evict earlier ones of the same call.
func (s *Stage) Prefetch(ctx context.Context, sel *selection.Selection) error {
	if s.closed {
		return ErrClosed
	}
	if sel == nil {
		return fmt.Errorf("%w: nil selection", ErrInvalidSelection)
	}
	if sel.IsEmpty() {
		return nil
	}
	r, err := s.planner.Plan(sel)
	if err != nil {
		return translateError(err)
	}
	_, err = s.ensureResident(ctx, r)
	return translateError(err)
}

// IsResident reports whether the chunk at coords is cached.
func (s *Stage) IsResident(coords []uint64) bool {
	if s.closed {
		return false
	}
	return s.cache.Contains(coords)
}

// Resident returns the linear indices of the resident chunks.
// Use ChunkCoords to turn an index into chunk coordinates.
func (s *Stage) Resident() *roaring.Bitmap {
	if s.closed {
		return roaring.New()
	}
	return s.cache.Resident()
}

// ChunkCoords returns the chunk coordinates of a linear chunk index, as
// found in Resident. It reports false if idx is outside the chunk grid.
func (s *Stage) ChunkCoords(idx uint64) ([]uint64, bool) {
	g := s.cache.Grid()
	if idx >= g.Len() {
		return nil, false
	}
	return g.Coords(idx, nil), true
}

// Stats returns a snapshot of the stage counters and cache state.
func (s *Stage) Stats() Stats {
	cs := s.cache.Stats()
	return Stats{
		Reads:        s.reads,
		Hits:         s.hits,
		Misses:       s.misses,
		Refetches:    s.refetches,
		StorageReads: s.storageReads,
		BytesRead:    s.bytesRead,
		Resident:     cs.Resident,
		Capacity:     cs.Capacity,
		Occupied:     cs.Occupied,
		Limit:        cs.Limit,
		ChunkBytes:   cs.ChunkBytes,
		Allocations:  cs.Allocations,
		Evictions:    cs.Evictions,
		Discards:     cs.Discards,
	}
}

// Close releases every chunk buffer. The dataset is left open.
// Close is idempotent.
func (s *Stage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("stage closed", "evictions", s.cache.Stats().Evictions)
	return s.cache.Close()
}
