package dataset

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/selection"
)

var (
	// ErrSelectionMismatch is returned when a file and memory selection do
	// not describe the same element shapes, or when a selection does not
	// match the dataset.
	ErrSelectionMismatch = errors.New("dataset: selection mismatch")
	// ErrBufferTooSmall is returned when the destination cannot hold the
	// memory dataspace.
	ErrBufferTooSmall = errors.New("dataset: destination buffer too small")
	// ErrInvalidFormat is returned for blobs that are not datasets.
	ErrInvalidFormat = errors.New("dataset: invalid format")
	// ErrCorrupt is returned when stored data fails its checksum.
	ErrCorrupt = errors.New("dataset: corrupt data")
	// ErrInvalidSpec is returned by Create for unusable dataset parameters.
	ErrInvalidSpec = errors.New("dataset: invalid spec")
	// ErrClosed is returned when reading from a closed dataset.
	ErrClosed = errors.New("dataset: closed")
)

// Order is the axis order in which elements are linearized.
type Order = grid.Order

const (
	// RowMajor stores the last axis contiguously.
	RowMajor = grid.RowMajor
	// ColumnMajor stores the first axis contiguously.
	ColumnMajor = grid.ColumnMajor
)

// Dataset is a read-only N-dimensional array of fixed-size elements.
type Dataset interface {
	// Rank returns the number of axes.
	Rank() int
	// Extents returns the size of every axis.
	Extents() []uint64
	// ElementSize returns the element width in bytes.
	ElementSize() uint64
	// Order returns the linearization order of the stored data and of
	// memory buffers passed to Read.
	Order() Order
	// Read transfers the elements selected by fileSel into the positions
	// selected by memSel in dst. memSel's extents describe dst. The boxes of
	// both selections are paired in canonical order and must be congruent.
	Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) error
	Close() error
}

// run is a contiguous byte range of the linearized dataset and its
// destination offset.
type run struct {
	file uint64
	mem  uint64
	n    uint64
}

// span is a single storage request covering one or more runs.
type span struct {
	off  uint64
	n    uint64
	runs []run
}

// validate checks a Read request against a dataset of the given shape and
// returns the memory layout.
func validate(h *Header, fileSel, memSel *selection.Selection, dst []byte) (grid.Layout, error) {
	if fileSel.Rank() != len(h.Extents) || !slices.Equal(fileSel.Extents(), h.Extents) {
		return grid.Layout{}, fmt.Errorf("%w: file selection over %v, dataset extents %v", ErrSelectionMismatch, fileSel.Extents(), h.Extents)
	}
	if memSel.Rank() != fileSel.Rank() {
		return grid.Layout{}, fmt.Errorf("%w: memory rank %d, file rank %d", ErrSelectionMismatch, memSel.Rank(), fileSel.Rank())
	}
	if !fileSel.Congruent(memSel) {
		return grid.Layout{}, fmt.Errorf("%w: %s vs %s", ErrSelectionMismatch, fileSel, memSel)
	}

	memLayout := grid.Layout{Extents: memSel.Extents(), Order: h.Order}
	if need := memLayout.Len() * h.ElemSize; uint64(len(dst)) < need {
		return grid.Layout{}, fmt.Errorf("%w: have %d bytes, need %d", ErrBufferTooSmall, len(dst), need)
	}
	return memLayout, nil
}

// runs splits the paired boxes into contiguous runs in storage order and
// joins runs that are adjacent in both the file and memory.
func runs(h *Header, memLayout grid.Layout, fileSel, memSel *selection.Selection) []run {
	fileLayout := grid.Layout{Extents: h.Extents, Order: h.Order}
	fastest := fileLayout.Fastest()
	rank := len(h.Extents)

	fb, mb := fileSel.Boxes(), memSel.Boxes()
	var out []run
	fc := make([]uint64, rank)
	mc := make([]uint64, rank)
	for k := range fb {
		n := fb[k].Count[fastest] * h.ElemSize
		_ = grid.ForEachRun(fb[k].Count, h.Order, func(rel []uint64) error {
			for a := 0; a < rank; a++ {
				fc[a] = fb[k].Start[a] + rel[a]
				mc[a] = mb[k].Start[a] + rel[a]
			}
			r := run{
				file: fileLayout.ByteOffset(fc, h.ElemSize),
				mem:  memLayout.ByteOffset(mc, h.ElemSize),
				n:    n,
			}
			if l := len(out) - 1; l >= 0 && out[l].file+out[l].n == r.file && out[l].mem+out[l].n == r.mem {
				out[l].n += r.n
				return nil
			}
			out = append(out, r)
			return nil
		})
	}
	slices.SortFunc(out, func(a, b run) int {
		switch {
		case a.file < b.file:
			return -1
		case a.file > b.file:
			return 1
		}
		return 0
	})
	return out
}

// spans groups sorted runs into storage requests. Runs separated by at most
// gap bytes share a request; a request never grows past maxSpan bytes
// unless a single run is larger.
func spans(rs []run, gap, maxSpan uint64) []span {
	var out []span
	for _, r := range rs {
		if l := len(out) - 1; l >= 0 {
			s := &out[l]
			end := s.off + s.n
			if r.file >= end && r.file-end <= gap && r.file+r.n-s.off <= maxSpan {
				s.n = r.file + r.n - s.off
				s.runs = append(s.runs, r)
				continue
			}
		}
		out = append(out, span{off: r.file, n: r.n, runs: []run{r}})
	}
	return out
}
