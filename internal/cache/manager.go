package cache

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/internal/ring"
	"github.com/hupe1980/hyperstage/resource"
)

var (
	// ErrInvalidConfig is returned for unusable cache configurations.
	ErrInvalidConfig = errors.New("cache: invalid configuration")
	// ErrAllocation is returned when no chunk buffer can be obtained.
	ErrAllocation = errors.New("cache: allocation failed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache: closed")
)

// Policy selects the eviction order.
type Policy uint8

const (
	// LRU evicts the least recently used chunk.
	LRU Policy = iota
	// FIFO evicts the oldest admitted chunk.
	FIFO
)

func (p Policy) String() string {
	switch p {
	case LRU:
		return "LRU"
	case FIFO:
		return "FIFO"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// Geometry selects the chunk shape.
type Geometry uint8

const (
	// Square chunks are hyper-cubes with ChunkSize elements per edge.
	Square Geometry = iota
	// Line chunks cover one whole row along the fastest axis.
	Line
)

func (g Geometry) String() string {
	switch g {
	case Square:
		return "SQUARE"
	case Line:
		return "LINE"
	default:
		return fmt.Sprintf("Geometry(%d)", uint8(g))
	}
}

// Config describes a cache.
type Config struct {
	Extents   []uint64
	Order     grid.Order
	ElemSize  uint64
	ChunkSize uint64
	// Limit is the byte capacity of the pool.
	Limit    uint64
	Policy   Policy
	Geometry Geometry

	// Controller accounts chunk buffers against a shared memory budget.
	Controller *resource.Controller
	// OnEvict is called with the coordinates of every evicted chunk.
	OnEvict func(coords []uint64)
}

// Stats is a snapshot of the cache state.
type Stats struct {
	Resident    int
	Capacity    uint64
	Occupied    uint64
	Limit       uint64
	ChunkBytes  uint64
	Allocations uint64
	Evictions   uint64
	Discards    uint64
}

// Manager owns the slot ring and every chunk buffer.
type Manager struct {
	extents    []uint64
	chunk      []uint64
	grid       grid.Layout
	elemSize   uint64
	chunkBytes uint64
	limit      uint64
	occupied   uint64
	policy     Policy
	geometry   Geometry

	ring     *ring.Ring
	resident *roaring.Bitmap
	rc       *resource.Controller
	onEvict  func(coords []uint64)

	allocations uint64
	evictions   uint64
	discards    uint64

	scratch []uint64
}

// New validates cfg and builds an empty cache.
func New(cfg Config) (*Manager, error) {
	rank := len(cfg.Extents)
	if rank == 0 || rank > grid.MaxRank {
		return nil, fmt.Errorf("%w: rank %d not in [1, %d]", ErrInvalidConfig, rank, grid.MaxRank)
	}
	if cfg.ElemSize == 0 {
		return nil, fmt.Errorf("%w: element size is zero", ErrInvalidConfig)
	}
	if cfg.Geometry == Square && cfg.ChunkSize == 0 {
		return nil, fmt.Errorf("%w: chunk size is zero", ErrInvalidConfig)
	}
	if cfg.Policy > FIFO {
		return nil, fmt.Errorf("%w: unknown policy %s", ErrInvalidConfig, cfg.Policy)
	}
	for i, e := range cfg.Extents {
		if e == 0 {
			return nil, fmt.Errorf("%w: axis %d has zero extent", ErrInvalidConfig, i)
		}
	}

	chunk := make([]uint64, rank)
	switch cfg.Geometry {
	case Square:
		for i := range chunk {
			chunk[i] = cfg.ChunkSize
		}
	case Line:
		fastest := grid.Layout{Extents: cfg.Extents, Order: cfg.Order}.Fastest()
		for i := range chunk {
			chunk[i] = 1
		}
		chunk[fastest] = cfg.Extents[fastest]
	default:
		return nil, fmt.Errorf("%w: unknown geometry %s", ErrInvalidConfig, cfg.Geometry)
	}

	chunkBytes := cfg.ElemSize
	for _, c := range chunk {
		if chunkBytes > math.MaxUint64/c {
			return nil, fmt.Errorf("%w: chunk size overflows", ErrInvalidConfig)
		}
		chunkBytes *= c
	}
	if cfg.Limit < chunkBytes {
		return nil, fmt.Errorf("%w: limit %d smaller than one chunk (%d bytes)", ErrInvalidConfig, cfg.Limit, chunkBytes)
	}

	gridExtents := make([]uint64, rank)
	total := uint64(1)
	for i := range gridExtents {
		gridExtents[i] = grid.CeilDiv(cfg.Extents[i], chunk[i])
		total *= gridExtents[i]
		if total > math.MaxUint32 {
			return nil, fmt.Errorf("%w: more than %d chunks", ErrInvalidConfig, uint64(math.MaxUint32))
		}
	}

	r, err := ring.New(total)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	return &Manager{
		extents:    append([]uint64(nil), cfg.Extents...),
		chunk:      chunk,
		grid:       grid.Layout{Extents: gridExtents, Order: cfg.Order},
		elemSize:   cfg.ElemSize,
		chunkBytes: chunkBytes,
		limit:      cfg.Limit,
		policy:     cfg.Policy,
		geometry:   cfg.Geometry,
		ring:       r,
		resident:   roaring.New(),
		rc:         cfg.Controller,
		onEvict:    cfg.OnEvict,
		scratch:    make([]uint64, rank),
	}, nil
}

// Close releases every chunk buffer. It is safe to call more than once.
func (m *Manager) Close() error {
	if m.ring == nil {
		return nil
	}
	m.rc.ReleaseMemory(int64(m.occupied))
	m.occupied = 0
	m.ring.Reset()
	m.ring = nil
	m.resident.Clear()
	return nil
}

// Closed reports whether Close was called.
func (m *Manager) Closed() bool {
	return m.ring == nil
}

// Rank returns the number of axes.
func (m *Manager) Rank() int { return len(m.extents) }

// Extents returns the dataset extents.
func (m *Manager) Extents() []uint64 { return m.extents }

// ChunkShape returns the chunk extents.
func (m *Manager) ChunkShape() []uint64 { return m.chunk }

// Grid returns the chunk-grid layout.
func (m *Manager) Grid() grid.Layout { return m.grid }

// ChunkLayout returns the element layout inside one chunk buffer.
func (m *Manager) ChunkLayout() grid.Layout {
	return grid.Layout{Extents: m.chunk, Order: m.grid.Order}
}

// ElemSize returns the element size in bytes.
func (m *Manager) ElemSize() uint64 { return m.elemSize }

// ChunkBytes returns the size of one chunk buffer.
func (m *Manager) ChunkBytes() uint64 { return m.chunkBytes }

// Occupied returns the bytes held by chunk buffers.
func (m *Manager) Occupied() uint64 { return m.occupied }

// Limit returns the byte capacity.
func (m *Manager) Limit() uint64 { return m.limit }

// Policy returns the eviction policy.
func (m *Manager) Policy() Policy { return m.policy }

// Geometry returns the chunk geometry.
func (m *Manager) Geometry() Geometry { return m.geometry }

// Footprint returns the dataset region covered by the chunk at coords,
// clipped to the dataset extents.
func (m *Manager) Footprint(coords []uint64) (start, count []uint64) {
	start = make([]uint64, len(coords))
	count = make([]uint64, len(coords))
	for i, c := range coords {
		start[i] = c * m.chunk[i]
		count[i] = min(m.chunk[i], m.extents[i]-start[i])
	}
	return start, count
}

// Partial reports whether the chunk at coords is clipped by the dataset
// extents on any axis.
func (m *Manager) Partial(coords []uint64) bool {
	for i, c := range coords {
		if (c+1)*m.chunk[i] > m.extents[i] {
			return true
		}
	}
	return false
}

func (m *Manager) index(coords []uint64) (int, error) {
	if m.ring == nil {
		return 0, ErrClosed
	}
	idx, err := m.grid.CheckedIndex(coords)
	if err != nil {
		return 0, err
	}
	return int(idx), nil
}

// Lookup returns the buffer of a resident chunk, or nil. Under LRU the
// chunk is promoted.
func (m *Manager) Lookup(coords []uint64) []byte {
	idx, err := m.index(coords)
	if err != nil {
		return nil
	}
	buf := m.ring.Buffer(idx)
	if buf != nil && m.policy == LRU {
		m.ring.MoveToFront(idx)
	}
	return buf
}

// Contains reports residency without touching the recency order.
func (m *Manager) Contains(coords []uint64) bool {
	idx, err := m.index(coords)
	if err != nil {
		return false
	}
	return m.ring.Buffer(idx) != nil
}

// Acquire returns a buffer for the chunk at coords, linking it into the
// recency list. A resident chunk reuses its own buffer. Otherwise a new
// buffer is allocated while the limit allows it, else the tail chunk is
// evicted and its buffer handed over.
//
// The returned buffer may hold stale bytes from an evicted chunk.
func (m *Manager) Acquire(coords []uint64) ([]byte, error) {
	idx, err := m.index(coords)
	if err != nil {
		return nil, err
	}

	if buf := m.ring.Buffer(idx); buf != nil {
		if m.policy == LRU {
			m.ring.MoveToFront(idx)
		}
		return buf, nil
	}

	if m.occupied+m.chunkBytes <= m.limit {
		if err := m.rc.AcquireMemory(int64(m.chunkBytes)); err == nil {
			buf := make([]byte, m.chunkBytes)
			m.occupied += m.chunkBytes
			m.allocations++
			m.install(idx, buf)
			return buf, nil
		}
	}

	tail, ok := m.ring.Tail()
	if !ok {
		return nil, fmt.Errorf("%w: memory budget exhausted and no chunk to evict", ErrAllocation)
	}

	buf := m.ring.TakeBuffer(tail)
	m.ring.PopTail()
	m.resident.Remove(uint32(tail))
	m.evictions++
	if m.onEvict != nil {
		m.onEvict(m.grid.Coords(uint64(tail), m.scratch))
	}

	m.install(idx, buf)
	return buf, nil
}

func (m *Manager) install(idx int, buf []byte) {
	m.ring.SetBuffer(idx, buf)
	m.ring.MoveToFront(idx)
	m.resident.Add(uint32(idx))
}

// Discard drops the chunk at coords and releases its buffer. It is a no-op
// for chunks that are not resident.
func (m *Manager) Discard(coords []uint64) {
	idx, err := m.index(coords)
	if err != nil {
		return
	}
	if m.ring.Buffer(idx) == nil {
		return
	}
	m.ring.Remove(idx)
	m.ring.TakeBuffer(idx)
	m.resident.Remove(uint32(idx))
	m.occupied -= m.chunkBytes
	m.rc.ReleaseMemory(int64(m.chunkBytes))
	m.discards++
}

// Resident returns a copy of the set of resident linear chunk indices.
func (m *Manager) Resident() *roaring.Bitmap {
	return m.resident.Clone()
}

// Order returns the resident linear chunk indices from most to least
// recently used (LRU) or newest to oldest (FIFO).
func (m *Manager) Order() []uint64 {
	if m.ring == nil {
		return nil
	}
	out := make([]uint64, 0, m.ring.Len())
	m.ring.Walk(func(i int) bool {
		out = append(out, uint64(i))
		return true
	})
	return out
}

// Stats returns a snapshot of the cache state.
func (m *Manager) Stats() Stats {
	s := Stats{
		Resident:    int(m.resident.GetCardinality()),
		Capacity:    m.limit / m.chunkBytes,
		Occupied:    m.occupied,
		Limit:       m.limit,
		ChunkBytes:  m.chunkBytes,
		Allocations: m.allocations,
		Evictions:   m.evictions,
		Discards:    m.discards,
	}
	return s
}
