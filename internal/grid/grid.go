package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrRankMismatch is returned when a coordinate tuple has the wrong rank.
	ErrRankMismatch = errors.New("grid: rank mismatch")
	// ErrOutOfRange is returned when a coordinate is outside the extents.
	ErrOutOfRange = errors.New("grid: coordinate out of range")
)

// MaxRank is the highest supported number of axes.
const MaxRank = 10

// Order is the axis order convention of a layout.
type Order uint8

const (
	// RowMajor makes axis 0 the most significant axis.
	RowMajor Order = iota
	// ColumnMajor makes axis 0 the least significant axis.
	ColumnMajor
)

func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// CeilDiv returns the smallest integer >= a/b.
func CeilDiv(a, b uint64) uint64 {
	q := a / b
	if a%b > 0 {
		return q + 1
	}
	return q
}

// Layout describes a linearized N-dimensional array.
type Layout struct {
	Extents []uint64
	Order   Order
}

// Rank returns the number of axes.
func (l Layout) Rank() int {
	return len(l.Extents)
}

// Len returns the number of elements.
func (l Layout) Len() uint64 {
	n := uint64(1)
	for _, e := range l.Extents {
		n *= e
	}
	return n
}

// axisAt returns the axis visited at position k, from most to least significant.
func axisAt(o Order, rank, k int) int {
	if o == ColumnMajor {
		return rank - 1 - k
	}
	return k
}

func (l Layout) axis(k int) int {
	return axisAt(l.Order, len(l.Extents), k)
}

// Fastest returns the axis with stride 1.
func (l Layout) Fastest() int {
	return l.axis(len(l.Extents) - 1)
}

// Strides returns the element stride of every axis.
func (l Layout) Strides() []uint64 {
	strides := make([]uint64, len(l.Extents))
	mul := uint64(1)
	for k := len(l.Extents) - 1; k >= 0; k-- {
		a := l.axis(k)
		strides[a] = mul
		mul *= l.Extents[a]
	}
	return strides
}

// Index returns the linear index of coords without bounds checks.
func (l Layout) Index(coords []uint64) uint64 {
	var idx uint64
	mul := uint64(1)
	for k := len(l.Extents) - 1; k >= 0; k-- {
		a := l.axis(k)
		idx += coords[a] * mul
		mul *= l.Extents[a]
	}
	return idx
}

// CheckedIndex is Index with rank and range validation.
func (l Layout) CheckedIndex(coords []uint64) (uint64, error) {
	if len(coords) != len(l.Extents) {
		return 0, fmt.Errorf("%w: got %d coordinates, want %d", ErrRankMismatch, len(coords), len(l.Extents))
	}
	for i, c := range coords {
		if c >= l.Extents[i] {
			return 0, fmt.Errorf("%w: axis %d coordinate %d >= extent %d", ErrOutOfRange, i, c, l.Extents[i])
		}
	}
	return l.Index(coords), nil
}

// Coords is the inverse of Index. The result is written into dst when it
// has the right length, otherwise a new slice is allocated.
func (l Layout) Coords(idx uint64, dst []uint64) []uint64 {
	if len(dst) != len(l.Extents) {
		dst = make([]uint64, len(l.Extents))
	}
	for k := len(l.Extents) - 1; k >= 0; k-- {
		a := l.axis(k)
		dst[a] = idx % l.Extents[a]
		idx /= l.Extents[a]
	}
	return dst
}

// ByteOffset returns the byte offset of coords for elements of elemSize bytes.
func (l Layout) ByteOffset(coords []uint64, elemSize uint64) uint64 {
	return l.Index(coords) * elemSize
}

// LinearIndex is the row-major linear index of coords in an array of extents.
func LinearIndex(coords, extents []uint64) uint64 {
	return Layout{Extents: extents}.Index(coords)
}

// LinearByteOffset is LinearIndex scaled by the element size.
func LinearByteOffset(coords, extents []uint64, elemSize uint64) uint64 {
	return LinearIndex(coords, extents) * elemSize
}

// ChunkRange returns the half-open range of chunk indices touched by the
// block [start, start+count) on every axis.
func ChunkRange(start, count, chunk []uint64) (first, end []uint64) {
	first = make([]uint64, len(start))
	end = make([]uint64, len(start))
	for i := range start {
		first[i] = start[i] / chunk[i]
		end[i] = CeilDiv(start[i]+count[i], chunk[i])
	}
	return first, end
}

// Span returns the part of chunk k (edge length c) covered by the block
// [start, end) on one axis: the offset inside the chunk and the length.
//
// The first chunk begins at start mod c, the last chunk stops at
// ((end - 1) mod c) + 1, middle chunks are covered completely.
func Span(k, c, start, end uint64) (offset, length uint64) {
	first := start / c
	last := (end - 1) / c

	if k == first {
		offset = start % c
	}
	stop := c
	if k == last {
		stop = (end-1)%c + 1
	}
	return offset, stop - offset
}

// ForEach visits every coordinate tuple in [first, end) in layout order
// (the fastest axis of order varies fastest). fn may not retain coords.
// Iteration stops early when fn returns an error.
func ForEach(first, end []uint64, order Order, fn func(coords []uint64) error) error {
	rank := len(first)
	if rank == 0 {
		return nil
	}
	for i := range first {
		if first[i] >= end[i] {
			return nil
		}
	}

	coords := make([]uint64, rank)
	copy(coords, first)

	for {
		if err := fn(coords); err != nil {
			return err
		}
		k := rank - 1
		for ; k >= 0; k-- {
			a := axisAt(order, rank, k)
			coords[a]++
			if coords[a] < end[a] {
				break
			}
			coords[a] = first[a]
		}
		if k < 0 {
			return nil
		}
	}
}
