package fetch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/hyperstage/internal/cache"
	"github.com/hupe1980/hyperstage/internal/grid"
)

// ErrChunkNotResident is returned when a chunk needed for a copy is not in
// the cache.
var ErrChunkNotResident = errors.New("fetch: chunk not resident")

// MissError names the chunk that was not resident.
type MissError struct {
	Chunk []uint64
}

func (e *MissError) Error() string {
	return fmt.Sprintf("%s: chunk %v", ErrChunkNotResident, e.Chunk)
}

func (e *MissError) Unwrap() error { return ErrChunkNotResident }

// Copier moves requested regions out of resident chunks.
type Copier struct {
	cache *cache.Manager
}

// NewCopier returns a copier reading from c.
func NewCopier(c *cache.Manager) *Copier {
	return &Copier{cache: c}
}

// Copy copies the block of r out of the cache into dst, which is
// linearized by dstLayout. The block lands at dstOrigin.
//
// A chunk that is not resident is passed to onMiss, which may make it
// resident; a chunk still missing afterwards (or with a nil onMiss) stops
// the copy with a *MissError.
func (c *Copier) Copy(dst []byte, dstLayout grid.Layout, dstOrigin []uint64, r Range, onMiss func(coords []uint64) error) error {
	return grid.ForEach(r.First, r.End, c.cache.Grid().Order, func(coords []uint64) error {
		buf := c.cache.Lookup(coords)
		if buf == nil && onMiss != nil {
			if err := onMiss(coords); err != nil {
				return err
			}
			buf = c.cache.Lookup(coords)
		}
		if buf == nil {
			return &MissError{Chunk: slices.Clone(coords)}
		}
		c.copyChunk(dst, dstLayout, dstOrigin, r, coords, buf)
		return nil
	})
}

// copyChunk copies the intersection of the request with one chunk. The
// first and last chunk on every axis are partial, middle chunks full.
func (c *Copier) copyChunk(dst []byte, dstLayout grid.Layout, dstOrigin []uint64, r Range, coords []uint64, buf []byte) {
	chunk := c.cache.ChunkShape()
	rank := len(coords)

	src := make([]uint64, rank)
	at := make([]uint64, rank)
	count := make([]uint64, rank)
	for i := 0; i < rank; i++ {
		off, n := grid.Span(coords[i], chunk[i], r.Start[i], r.Start[i]+r.Count[i])
		src[i] = off
		count[i] = n
		at[i] = dstOrigin[i] + coords[i]*chunk[i] + off - r.Start[i]
	}
	grid.CopyBox(dst, dstLayout, at, buf, c.cache.ChunkLayout(), src, count, c.cache.ElemSize())
}
