package testutil

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/selection"
)

// ErrInjected is the default error returned by failing ArrayDataset reads.
var ErrInjected = errors.New("testutil: injected storage failure")

// Pattern returns an array of extents whose elements hold their linear
// index (little endian, truncated to elemSize bytes).
func Pattern(extents []uint64, elemSize uint64, order grid.Order) []byte {
	l := grid.Layout{Extents: extents, Order: order}
	n := l.Len()
	out := make([]byte, n*elemSize)

	var word [8]byte
	for i := uint64(0); i < n; i++ {
		binary.LittleEndian.PutUint64(word[:], i+1)
		copy(out[i*elemSize:(i+1)*elemSize], word[:])
	}
	return out
}

// Region copies the block (start, count) of an array into a new dense
// buffer of shape count. It is the reference for staged reads.
func Region(data []byte, extents []uint64, elemSize uint64, order grid.Order, start, count []uint64) []byte {
	dstLayout := grid.Layout{Extents: count, Order: order}
	dst := make([]byte, dstLayout.Len()*elemSize)
	grid.CopyBox(
		dst, dstLayout, make([]uint64, len(count)),
		data, grid.Layout{Extents: extents, Order: order}, start,
		count, elemSize,
	)
	return dst
}

// ArrayDataset is an in-memory dataset that counts storage calls.
type ArrayDataset struct {
	extents  []uint64
	elemSize uint64
	order    grid.Order
	data     []byte

	mu        sync.Mutex
	calls     int
	elements  uint64
	boxes     [][]selection.Box
	closed    bool
	recordSel bool

	// FailOn is consulted before every read with the 1-based call number;
	// a non-nil result fails that read.
	FailOn func(call int) error
}

// NewArrayDataset wraps data, which must hold the full array.
func NewArrayDataset(extents []uint64, elemSize uint64, order grid.Order, data []byte) *ArrayDataset {
	return &ArrayDataset{
		extents:  append([]uint64(nil), extents...),
		elemSize: elemSize,
		order:    order,
		data:     data,
	}
}

// NewPatternDataset returns an ArrayDataset filled by Pattern.
func NewPatternDataset(extents []uint64, elemSize uint64, order grid.Order) *ArrayDataset {
	return NewArrayDataset(extents, elemSize, order, Pattern(extents, elemSize, order))
}

// RecordSelections makes the dataset remember the file boxes of every read.
func (d *ArrayDataset) RecordSelections() { d.recordSel = true }

func (d *ArrayDataset) Rank() int           { return len(d.extents) }
func (d *ArrayDataset) Extents() []uint64   { return append([]uint64(nil), d.extents...) }
func (d *ArrayDataset) ElementSize() uint64 { return d.elemSize }
func (d *ArrayDataset) Order() grid.Order   { return d.order }
func (d *ArrayDataset) Data() []byte        { return d.data }

// Read copies the boxes of fileSel into the boxes of memSel pairwise.
func (d *ArrayDataset) Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.calls++
	call := d.calls
	if d.recordSel {
		d.boxes = append(d.boxes, fileSel.Boxes())
	}
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return errors.New("testutil: dataset closed")
	}
	if d.FailOn != nil {
		if err := d.FailOn(call); err != nil {
			return err
		}
	}
	if !fileSel.Congruent(memSel) {
		return fmt.Errorf("testutil: selections not congruent: %s vs %s", fileSel, memSel)
	}

	srcLayout := grid.Layout{Extents: d.extents, Order: d.order}
	dstLayout := grid.Layout{Extents: memSel.Extents(), Order: d.order}
	if uint64(len(dst)) < dstLayout.Len()*d.elemSize {
		return fmt.Errorf("testutil: destination holds %d bytes, need %d", len(dst), dstLayout.Len()*d.elemSize)
	}

	fb, mb := fileSel.Boxes(), memSel.Boxes()
	for k := range fb {
		grid.CopyBox(dst, dstLayout, mb[k].Start, d.data, srcLayout, fb[k].Start, fb[k].Count, d.elemSize)
	}

	d.mu.Lock()
	d.elements += fileSel.NumElements()
	d.mu.Unlock()
	return nil
}

// Calls returns the number of Read calls.
func (d *ArrayDataset) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ElementsRead returns the number of elements transferred by successful reads.
func (d *ArrayDataset) ElementsRead() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements
}

// Selections returns the recorded file boxes per read.
func (d *ArrayDataset) Selections() [][]selection.Box {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.boxes
}

// ResetCounters clears call statistics.
func (d *ArrayDataset) ResetCounters() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = 0
	d.elements = 0
	d.boxes = nil
}

// Close marks the dataset closed.
func (d *ArrayDataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
