package dataset

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hyperstage/blobstore"
	"github.com/hupe1980/hyperstage/internal/conv"
	"github.com/hupe1980/hyperstage/resource"
	"github.com/hupe1980/hyperstage/selection"
)

// ReadStats counts storage requests issued by a dataset.
type ReadStats struct {
	Reads     uint64 // Read calls
	Requests  uint64 // ranged storage requests
	BytesRead uint64 // bytes fetched from storage
}

type readCounters struct {
	reads    atomic.Uint64
	requests atomic.Uint64
	bytes    atomic.Uint64
}

func (c *readCounters) stats() ReadStats {
	return ReadStats{
		Reads:     c.reads.Load(),
		Requests:  c.requests.Load(),
		BytesRead: c.bytes.Load(),
	}
}

// BlobDataset is an uncompressed dataset stored in a blob.
type BlobDataset struct {
	name    string
	blob    blobstore.Blob
	header  Header
	dataOff uint64
	opts    options

	closed   atomic.Bool
	counters readCounters
}

var _ Dataset = (*BlobDataset)(nil)

func newBlobDataset(name string, blob blobstore.Blob, h Header, opts options) (*BlobDataset, error) {
	dataOff := uint64(h.Size())
	if need := dataOff + h.DataSize(); uint64(blob.Size()) < need {
		return nil, fmt.Errorf("%w: %s holds %d bytes, need %d", ErrInvalidFormat, name, blob.Size(), need)
	}
	return &BlobDataset{
		name:    name,
		blob:    blob,
		header:  h,
		dataOff: dataOff,
		opts:    opts,
	}, nil
}

func (d *BlobDataset) Rank() int           { return len(d.header.Extents) }
func (d *BlobDataset) Extents() []uint64   { return slices.Clone(d.header.Extents) }
func (d *BlobDataset) ElementSize() uint64 { return d.header.ElemSize }
func (d *BlobDataset) Order() Order        { return d.header.Order }

// Header returns a copy of the dataset header.
func (d *BlobDataset) Header() Header {
	h := d.header
	h.Extents = slices.Clone(h.Extents)
	return h
}

// Name returns the blob name the dataset was opened from.
func (d *BlobDataset) Name() string { return d.name }

// Stats returns the storage request counters.
func (d *BlobDataset) Stats() ReadStats { return d.counters.stats() }

// Read implements Dataset. Runs are coalesced into spans that are fetched
// concurrently, bounded by the resource controller's read limit.
func (d *BlobDataset) Read(ctx context.Context, fileSel, memSel *selection.Selection, dst []byte) error {
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

	rc := d.opts.rc
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rc.ReadConcurrency())

	for _, s := range spans(runs(&d.header, memLayout, fileSel, memSel), d.opts.gap, d.opts.maxSpan) {
		g.Go(func() error {
			return d.readSpan(gctx, rc, s, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("dataset: read %s: %w", d.name, err)
	}
	return nil
}

func (d *BlobDataset) readSpan(ctx context.Context, rc *resource.Controller, s span, dst []byte) error {
	if err := rc.AcquireRead(ctx); err != nil {
		return err
	}
	defer rc.ReleaseRead()

	n, err := conv.Uint64ToInt(s.n)
	if err != nil {
		return err
	}
	if err := rc.AcquireIO(ctx, n); err != nil {
		return err
	}

	buf := make([]byte, n)
	if _, err := d.blob.ReadAt(ctx, buf, int64(d.dataOff+s.off)); err != nil {
		return err
	}
	d.counters.requests.Add(1)
	d.counters.bytes.Add(s.n)

	for _, r := range s.runs {
		rel := r.file - s.off
		copy(dst[r.mem:r.mem+r.n], buf[rel:rel+r.n])
	}
	return nil
}

// Close releases the underlying blob. It is safe to call more than once.
func (d *BlobDataset) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.blob.Close()
}
