package testutil

import (
	"math/rand/v2"
	"sync"
)

// RNG draws reproducible random regions and chunk coordinates. It is safe
// for concurrent use.
type RNG struct {
	mu   sync.Mutex
	seed uint64
	r    *rand.Rand
}

func NewRNG(seed uint64) *RNG {
	g := &RNG{seed: seed}
	g.Reset()
	return g
}

// Reset rewinds the sequence to its seed.
func (g *RNG) Reset() {
	g.mu.Lock()
	g.r = rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	g.mu.Unlock()
}

// Box returns a random non-empty block inside extents.
func (g *RNG) Box(extents []uint64) (start, count []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start = make([]uint64, len(extents))
	count = make([]uint64, len(extents))
	for i, e := range extents {
		start[i] = g.r.Uint64N(e)
		count[i] = 1 + g.r.Uint64N(e-start[i])
	}
	return start, count
}

// Chunks returns n random coordinates inside a chunk grid.
func (g *RNG) Chunks(n int, gridExtents []uint64) [][]uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([][]uint64, n)
	for k := range out {
		c := make([]uint64, len(gridExtents))
		for i, e := range gridExtents {
			c[i] = g.r.Uint64N(e)
		}
		out[k] = c
	}
	return out
}
