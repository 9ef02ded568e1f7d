package cache

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/resource"
)

// line1D returns a cache over n one-element chunks holding k of them.
func line1D(t *testing.T, n, k uint64, p Policy) *Manager {
	t.Helper()
	m, err := New(Config{
		Extents:   []uint64{n},
		ElemSize:  1,
		ChunkSize: 1,
		Limit:     k,
		Policy:    p,
	})
	require.NoError(t, err)
	return m
}

// touch mimics the planner: lookup, acquire on miss.
func touch(t *testing.T, m *Manager, c uint64) {
	t.Helper()
	if m.Lookup([]uint64{c}) != nil {
		return
	}
	_, err := m.Acquire([]uint64{c})
	require.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	base := Config{Extents: []uint64{16, 16}, ElemSize: 4, ChunkSize: 4, Limit: 1 << 20}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"rank zero", func(c *Config) { c.Extents = nil }},
		{"rank eleven", func(c *Config) { c.Extents = make([]uint64, 11) }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"zero elem", func(c *Config) { c.ElemSize = 0 }},
		{"zero extent", func(c *Config) { c.Extents = []uint64{16, 0} }},
		{"limit below chunk", func(c *Config) { c.Limit = 63 }},
		{"zero limit", func(c *Config) { c.Limit = 0 }},
		{"bad policy", func(c *Config) { c.Policy = Policy(7) }},
		{"bad geometry", func(c *Config) { c.Geometry = Geometry(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	m, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 4}, m.Grid().Extents)
	assert.Equal(t, uint64(64), m.ChunkBytes())
	assert.Zero(t, m.Occupied())
}

func TestNew_Geometry(t *testing.T) {
	sq, err := New(Config{Extents: []uint64{10, 7}, ElemSize: 2, ChunkSize: 4, Limit: 1 << 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, sq.Grid().Extents)
	assert.Equal(t, []uint64{4, 4}, sq.ChunkShape())

	line, err := New(Config{Extents: []uint64{10, 7}, ElemSize: 2, Geometry: Line, Limit: 1 << 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 1}, line.Grid().Extents)
	assert.Equal(t, []uint64{1, 7}, line.ChunkShape())
	assert.Equal(t, uint64(14), line.ChunkBytes())

	col, err := New(Config{Extents: []uint64{10, 7}, Order: grid.ColumnMajor, ElemSize: 2, Geometry: Line, Limit: 1 << 10})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 1}, col.ChunkShape())
	assert.Equal(t, []uint64{1, 7}, col.Grid().Extents)
}

func TestFootprint(t *testing.T) {
	m, err := New(Config{Extents: []uint64{10, 7}, ElemSize: 1, ChunkSize: 4, Limit: 16})
	require.NoError(t, err)

	start, count := m.Footprint([]uint64{1, 0})
	assert.Equal(t, []uint64{4, 0}, start)
	assert.Equal(t, []uint64{4, 4}, count)
	assert.False(t, m.Partial([]uint64{1, 0}))

	start, count = m.Footprint([]uint64{2, 1})
	assert.Equal(t, []uint64{8, 4}, start)
	assert.Equal(t, []uint64{2, 3}, count)
	assert.True(t, m.Partial([]uint64{2, 1}))
}

func TestEviction_LRUvsFIFO(t *testing.T) {
	const k = 4
	// Chunks 1..K, then 1 and 2 again, then K+1.
	seq := []uint64{1, 2, 3, 4, 1, 2, 5}

	lru := line1D(t, 8, k, LRU)
	var lruEvicted []uint64
	lru.onEvict = func(c []uint64) { lruEvicted = append(lruEvicted, c[0]) }
	for _, c := range seq {
		touch(t, lru, c)
	}
	assert.Equal(t, []uint64{3}, lruEvicted)
	assert.False(t, lru.Contains([]uint64{3}))
	assert.Equal(t, []uint64{5, 2, 1, 4}, lru.Order())

	fifo := line1D(t, 8, k, FIFO)
	var fifoEvicted []uint64
	fifo.onEvict = func(c []uint64) { fifoEvicted = append(fifoEvicted, c[0]) }
	for _, c := range seq {
		touch(t, fifo, c)
	}
	assert.Equal(t, []uint64{1}, fifoEvicted)
	assert.False(t, fifo.Contains([]uint64{1}))
	assert.Equal(t, []uint64{5, 4, 3, 2}, fifo.Order())
}

func TestAcquire_BufferTransfer(t *testing.T) {
	m := line1D(t, 4, 1, LRU)

	a, err := m.Acquire([]uint64{0})
	require.NoError(t, err)
	a[0] = 42

	b, err := m.Acquire([]uint64{1})
	require.NoError(t, err)
	assert.Same(t, &a[0], &b[0], "evicted buffer is reused, not reallocated")
	assert.Equal(t, byte(42), b[0], "stale bytes are left for the caller to overwrite")

	assert.Nil(t, m.Lookup([]uint64{0}))
	assert.NotNil(t, m.Lookup([]uint64{1}))
	assert.Equal(t, uint64(1), m.Stats().Allocations)
	assert.Equal(t, uint64(1), m.Stats().Evictions)
}

func TestAcquire_ResidentTailReusedInPlace(t *testing.T) {
	m := line1D(t, 4, 2, LRU)
	touch(t, m, 0)
	touch(t, m, 1)

	// 0 is the tail; acquiring it again must not evict anything.
	buf, err := m.Acquire([]uint64{0})
	require.NoError(t, err)
	assert.Len(t, buf, 1)
	assert.Zero(t, m.Stats().Evictions)
	assert.Equal(t, []uint64{0, 1}, m.Order())
}

func TestCapacityBound(t *testing.T) {
	m, err := New(Config{Extents: []uint64{64, 64}, ElemSize: 8, ChunkSize: 4, Limit: 10*128 + 17})
	require.NoError(t, err)

	capacity := m.Limit() / m.ChunkBytes()
	require.Equal(t, uint64(10), capacity)

	rng := rand.New(rand.NewSource(7))
	for range 5000 {
		c := []uint64{uint64(rng.Intn(16)), uint64(rng.Intn(16))}
		if m.Lookup(c) == nil {
			_, err := m.Acquire(c)
			require.NoError(t, err)
		}
		require.LessOrEqual(t, m.Occupied(), m.Limit())
		require.LessOrEqual(t, uint64(m.Resident().GetCardinality()), capacity)
		require.Equal(t, int(m.Resident().GetCardinality()), m.ring.Len())
	}
	assert.Equal(t, 10*m.ChunkBytes(), m.Occupied())
}

func TestDiscard(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	m, err := New(Config{Extents: []uint64{8}, ElemSize: 1, ChunkSize: 2, Limit: 8, Controller: rc})
	require.NoError(t, err)

	touch(t, m, 0)
	touch(t, m, 1)
	assert.Equal(t, int64(4), rc.MemoryUsage())

	m.Discard([]uint64{0})
	assert.False(t, m.Contains([]uint64{0}))
	assert.Equal(t, uint64(2), m.Occupied())
	assert.Equal(t, int64(2), rc.MemoryUsage())
	assert.Equal(t, []uint64{1}, m.Order())

	// Not resident: no-op.
	m.Discard([]uint64{0})
	assert.Equal(t, uint64(1), m.Stats().Discards)

	require.NoError(t, m.Close())
	assert.Zero(t, rc.MemoryUsage())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())

	_, err = m.Acquire([]uint64{0})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, m.Lookup([]uint64{0}))
}

func TestAcquire_ControllerDenial(t *testing.T) {
	// Shared budget of one chunk: the second cache cannot allocate at all.
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 4})
	cfg := Config{Extents: []uint64{16}, ElemSize: 1, ChunkSize: 4, Limit: 16, Controller: rc}

	a, err := New(cfg)
	require.NoError(t, err)
	b, err := New(cfg)
	require.NoError(t, err)

	_, err = a.Acquire([]uint64{0})
	require.NoError(t, err)

	_, err = b.Acquire([]uint64{0})
	assert.ErrorIs(t, err, ErrAllocation)

	// a falls back to eviction when the budget is exhausted.
	_, err = a.Acquire([]uint64{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.Stats().Evictions)
	assert.Equal(t, []uint64{1}, a.Order())
}

func TestAcquire_OutOfRange(t *testing.T) {
	m := line1D(t, 4, 2, LRU)
	_, err := m.Acquire([]uint64{4})
	assert.ErrorIs(t, err, grid.ErrOutOfRange)
	_, err = m.Acquire([]uint64{0, 0})
	assert.ErrorIs(t, err, grid.ErrRankMismatch)
}
