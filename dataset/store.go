package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/hupe1980/hyperstage/blobstore"
	"github.com/hupe1980/hyperstage/internal/conv"
	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/internal/hash"
	"github.com/hupe1980/hyperstage/resource"
)

// Spec describes a dataset to create.
type Spec struct {
	Extents  []uint64
	ElemSize uint64
	Order    Order
	Codec    Codec
	// BandRows is the band height along the slowest axis for compressed
	// datasets. Zero selects DefaultBandRows. Ignored for CodecNone.
	BandRows uint64
}

func (s Spec) header() Header {
	h := Header{
		Order:    s.Order,
		Codec:    s.Codec,
		ElemSize: s.ElemSize,
		Extents:  slices.Clone(s.Extents),
	}
	if s.Codec != CodecNone && len(s.Extents) > 0 {
		rows := s.BandRows
		if rows == 0 {
			rows = DefaultBandRows
		}
		h.BandRows = min(rows, s.Extents[h.slowest()])
	}
	return h
}

// Create writes data, linearized in spec.Order, as a dataset blob.
// The blob is published only when every byte has been written.
func Create(ctx context.Context, store blobstore.BlobStore, name string, spec Spec, data []byte, optFns ...Option) error {
	h := spec.header()
	hdr, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if uint64(len(data)) != h.DataSize() {
		return fmt.Errorf("%w: data holds %d bytes, dataset needs %d", ErrInvalidSpec, len(data), h.DataSize())
	}

	var payload [][]byte
	if h.Codec == CodecNone {
		payload = [][]byte{hdr, data}
	} else {
		index, bands, err := encodeBands(&h, data)
		if err != nil {
			return err
		}
		payload = append([][]byte{hdr, index}, bands...)
	}

	opts := applyOptions(optFns)
	wb, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", name, err)
	}
	if err := writeAll(ctx, wb, opts.rc, payload); err != nil {
		if a, ok := wb.(blobstore.Aborter); ok {
			_ = a.Abort()
		} else {
			_ = wb.Close()
			_ = store.Delete(ctx, name)
		}
		return fmt.Errorf("dataset: write %s: %w", name, err)
	}
	if err := wb.Close(); err != nil {
		return fmt.Errorf("dataset: publish %s: %w", name, err)
	}
	return nil
}

func writeAll(ctx context.Context, wb blobstore.WritableBlob, rc *resource.Controller, parts [][]byte) error {
	w := resource.NewRateLimitedWriter(ctx, wb, rc)
	for _, p := range parts {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return wb.Sync()
}

// encodeBands compresses data band by band and returns the encoded index
// and the stored band payloads.
func encodeBands(h *Header, data []byte) ([]byte, [][]byte, error) {
	n := h.numBands()
	bandBytes := h.BandRows * h.sliceBytes()
	entries := make([]bandEntry, n)
	bands := make([][]byte, n)

	off := uint64(h.Size()) + n*indexEntrySize + hash.TrailerSize
	for i := uint64(0); i < n; i++ {
		lo := i * bandBytes
		hi := min(lo+bandBytes, uint64(len(data)))
		out, raw, err := compressBand(h.Codec, data[lo:hi])
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: compress band %d: %w", i, err)
		}
		stored, err := conv.Uint64ToUint32(uint64(len(out)))
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: band %d: %w", i, err)
		}
		e := bandEntry{
			off:    off,
			stored: stored,
			raw:    uint32(hi - lo),
			crc:    hash.CRC32C(out),
		}
		if raw {
			e.flags |= flagStoredRaw
		}
		entries[i] = e
		bands[i] = out
		off += uint64(len(out))
	}
	return encodeIndex(entries), bands, nil
}

// Stat reads the header of a stored dataset.
func Stat(ctx context.Context, store blobstore.BlobStore, name string) (Header, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return Header{}, fmt.Errorf("dataset: open %s: %w", name, err)
	}
	defer func() { _ = blob.Close() }()
	return readHeader(ctx, name, blob)
}

func readHeader(ctx context.Context, name string, blob blobstore.Blob) (Header, error) {
	buf := make([]byte, min(int64(headerSize(grid.MaxRank)), blob.Size()))
	if _, err := blob.ReadAt(ctx, buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return Header{}, fmt.Errorf("dataset: read header of %s: %w", name, err)
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return Header{}, fmt.Errorf("dataset: %s: %w", name, err)
	}
	return h, nil
}

// Open opens a stored dataset. The returned Dataset is a *BlobDataset or a
// *CompressedDataset depending on the stored codec.
func Open(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (Dataset, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", name, err)
	}
	h, err := readHeader(ctx, name, blob)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	opts := applyOptions(optFns)
	var ds Dataset
	if h.Codec == CodecNone {
		ds, err = newBlobDataset(name, blob, h, opts)
	} else {
		ds, err = newCompressedDataset(ctx, name, blob, h, opts)
	}
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return ds, nil
}
