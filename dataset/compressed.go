package dataset

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hyperstage/blobstore"
	"github.com/hupe1980/hyperstage/internal/hash"
	"github.com/hupe1980/hyperstage/resource"
	"github.com/hupe1980/hyperstage/selection"
)

// CompressedDataset is a dataset stored as independently compressed bands
// of slices along the slowest axis.
type CompressedDataset struct {
	name   string
	blob   blobstore.Blob
	header Header
	bands  []bandEntry
	// bandBytes is the decoded size of a full band.
	bandBytes uint64
	opts      options

	closed   atomic.Bool
	counters readCounters
}

var _ Dataset = (*CompressedDataset)(nil)

func newCompressedDataset(ctx context.Context, name string, blob blobstore.Blob, h Header, opts options) (*CompressedDataset, error) {
	n := h.numBands()
	buf := make([]byte, n*indexEntrySize+4)
	if _, err := blob.ReadAt(ctx, buf, int64(h.Size())); err != nil {
		return nil, fmt.Errorf("%w: read band index of %s: %w", ErrInvalidFormat, name, err)
	}
	bands, err := decodeIndex(buf, n)
	if err != nil {
		return nil, err
	}

	d := &CompressedDataset{
		name:      name,
		blob:      blob,
		header:    h,
		bands:     bands,
		bandBytes: h.BandRows * h.sliceBytes(),
		opts:      opts,
	}
	var total uint64
	for i, b := range bands {
		if b.off+uint64(b.stored) > uint64(blob.Size()) {
			return nil, fmt.Errorf("%w: band %d of %s extends past the blob", ErrInvalidFormat, i, name)
		}
		if uint64(b.raw) != d.bandLen(i) {
			return nil, fmt.Errorf("%w: band %d of %s decodes to %d bytes, want %d", ErrInvalidFormat, i, name, b.raw, d.bandLen(i))
		}
		total += uint64(b.raw)
	}
	if total != h.DataSize() {
		return nil, fmt.Errorf("%w: bands of %s cover %d bytes, want %d", ErrInvalidFormat, name, total, h.DataSize())
	}
	return d, nil
}

// bandLen returns the decoded size of band i.
func (d *CompressedDataset) bandLen(i int) uint64 {
	start := uint64(i) * d.bandBytes
	return min(start+d.bandBytes, d.header.DataSize()) - start
}

func (d *CompressedDataset) Rank() int           { return len(d.header.Extents) }
func (d *CompressedDataset) Extents() []uint64   { return slices.Clone(d.header.Extents) }
func (d *CompressedDataset) ElementSize() uint64 { return d.header.ElemSize }
func (d *CompressedDataset) Order() Order        { return d.header.Order }

// Header returns a copy of the dataset header.
func (d *CompressedDataset) Header() Header {
	h := d.header
	h.Extents = slices.Clone(h.Extents)
	return h
}

// Name returns the blob name the dataset was opened from.
func (d *CompressedDataset) Name() string { return d.name }

// NumBands returns the number of compressed bands.
func (d *CompressedDataset) NumBands() int { return len(d.bands) }

// Stats returns the storage request counters.
func (d *CompressedDataset) Stats() ReadStats { return d.counters.stats() }

// Read implements Dataset. Every band touched by the selection is fetched
// and decoded once.
func (d *CompressedDataset) Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) error {
	if d.closed.Load() {
		return ErrClosed
	}
	memLayout, err := validate(&d.header, fileSel, memSel, dst)
	if err != nil {
		return err
	}
	if fileSel.IsEmpty() {
		return nil
	}
	d.counters.reads.Add(1)

	// Runs are sorted by file offset, so each band's runs are contiguous
	// in the list. A run crossing a band boundary belongs to both.
	perBand := make(map[int][]run)
	var order []int
	for _, r := range runs(&d.header, memLayout, fileSel, memSel) {
		first := int(r.file / d.bandBytes)
		last := int((r.file + r.n - 1) / d.bandBytes)
		for b := first; b <= last; b++ {
			if _, ok := perBand[b]; !ok {
				order = append(order, b)
			}
			perBand[b] = append(perBand[b], r)
		}
	}

	rc := d.opts.rc
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rc.ReadConcurrency())
	for _, b := range order {
		g.Go(func() error {
			return d.readBand(gctx, rc, b, perBand[b], dst)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dataset: read %s: %w", d.name, err)
	}
	return nil
}

func (d *CompressedDataset) readBand(ctx context.Context, rc *resource.Controller, b int, rs []run, dst []byte) error {
	if err := rc.AcquireRead(ctx); err != nil {
		return err
	}
	defer rc.ReleaseRead()

	e := d.bands[b]
	body, err := d.blob.ReadRange(ctx, int64(e.off), int64(e.stored))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	stored := make([]byte, e.stored)
	if _, err := io.ReadFull(resource.NewRateLimitedReader(ctx, body, rc), stored); err != nil {
		return fmt.Errorf("band %d: %w", b, err)
	}
	d.counters.requests.Add(1)
	d.counters.bytes.Add(uint64(e.stored))

	if err := hash.Verify(stored, e.crc); err != nil {
		return fmt.Errorf("%w: band %d: %w", ErrCorrupt, b, err)
	}

	decoded := stored
	if e.flags&flagStoredRaw == 0 {
		decoded = make([]byte, e.raw)
		if err := decompressBand(d.header.Codec, stored, decoded); err != nil {
			return fmt.Errorf("band %d: %w", b, err)
		}
	}

	lo := uint64(b) * d.bandBytes
	hi := lo + uint64(len(decoded))
	for _, r := range rs {
		from := max(r.file, lo)
		to := min(r.file+r.n, hi)
		m := r.mem + (from - r.file)
		copy(dst[m:m+(to-from)], decoded[from-lo:to-lo])
	}
	return nil
}

// Close releases the underlying blob. It is safe to call more than once.
func (d *CompressedDataset) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.blob.Close()
}
