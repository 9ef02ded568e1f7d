package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/hyperstage/internal/conv"
	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/internal/hash"
)

const (
	magic   = "HSDS"
	version = 1

	// fixedHeaderSize is the header size without extents and checksum.
	fixedHeaderSize = 20
	// indexEntrySize is the size of one band index entry.
	indexEntrySize = 24
)

// Codec is the compression applied to dataset bands.
type Codec uint8

const (
	// CodecNone stores the raw element array.
	CodecNone Codec = iota
	// CodecLZ4 compresses bands with LZ4 block compression.
	CodecLZ4
	// CodecZstd compresses bands with Zstandard.
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// ParseCodec parses a codec name as printed by Codec.String.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "none", "raw":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd", "zstandard":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("%w: unknown codec %q", ErrInvalidSpec, s)
	}
}

// Header describes a stored dataset.
type Header struct {
	Order    Order
	Codec    Codec
	ElemSize uint64
	// BandRows is the number of slices along the slowest axis per
	// compressed band. Zero for raw datasets.
	BandRows uint64
	Extents  []uint64
}

// Size returns the encoded header size in bytes.
func (h *Header) Size() int {
	return headerSize(len(h.Extents))
}

func headerSize(rank int) int {
	return fixedHeaderSize + 8*rank + hash.TrailerSize
}

// NumElements returns the number of elements in the dataset.
func (h *Header) NumElements() uint64 {
	return grid.Layout{Extents: h.Extents}.Len()
}

// DataSize returns the size of the uncompressed element array in bytes.
func (h *Header) DataSize() uint64 {
	return h.NumElements() * h.ElemSize
}

// slowest returns the slowest varying axis.
func (h *Header) slowest() int {
	if h.Order == grid.ColumnMajor {
		return len(h.Extents) - 1
	}
	return 0
}

// sliceBytes returns the byte size of one slice along the slowest axis.
func (h *Header) sliceBytes() uint64 {
	s := h.ElemSize
	for i, e := range h.Extents {
		if i != h.slowest() {
			s *= e
		}
	}
	return s
}

// numBands returns the number of compressed bands.
func (h *Header) numBands() uint64 {
	if h.BandRows == 0 {
		return 0
	}
	return grid.CeilDiv(h.Extents[h.slowest()], h.BandRows)
}

// validate checks the header fields independently of how they were obtained.
func (h *Header) validate() error {
	rank := len(h.Extents)
	if rank == 0 || rank > grid.MaxRank {
		return fmt.Errorf("%w: rank %d not in [1, %d]", ErrInvalidSpec, rank, grid.MaxRank)
	}
	if h.ElemSize == 0 || h.ElemSize > math.MaxUint32 {
		return fmt.Errorf("%w: element size %d", ErrInvalidSpec, h.ElemSize)
	}
	if h.Order != grid.RowMajor && h.Order != grid.ColumnMajor {
		return fmt.Errorf("%w: order %s", ErrInvalidSpec, h.Order)
	}
	if h.Codec > CodecZstd {
		return fmt.Errorf("%w: codec %s", ErrInvalidSpec, h.Codec)
	}

	for i, e := range h.Extents {
		if e == 0 {
			return fmt.Errorf("%w: extent %d is zero", ErrInvalidSpec, i)
		}
	}
	if _, err := conv.Product(math.MaxInt64, append([]uint64{h.ElemSize}, h.Extents...)...); err != nil {
		return fmt.Errorf("%w: dataset size: %w", ErrInvalidSpec, err)
	}

	if h.Codec == CodecNone {
		if h.BandRows != 0 {
			return fmt.Errorf("%w: band rows set on a raw dataset", ErrInvalidSpec)
		}
		return nil
	}
	if h.BandRows == 0 || h.BandRows > h.Extents[h.slowest()] {
		return fmt.Errorf("%w: band rows %d not in [1, %d]", ErrInvalidSpec, h.BandRows, h.Extents[h.slowest()])
	}
	if h.sliceBytes()*h.BandRows > math.MaxUint32 {
		return fmt.Errorf("%w: band of %d slices exceeds 4 GiB", ErrInvalidSpec, h.BandRows)
	}
	return nil
}

// MarshalBinary encodes the header.
//
// Layout (little-endian):
//
//	magic [4] | version u16 | order u8 | codec u8 | rank u8 | pad [3]
//	elemSize u32 | bandRows u32 | extents [rank]u64 | crc32c u32
func (h *Header) MarshalBinary() ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	rank := len(h.Extents)
	buf := make([]byte, headerSize(rank)-hash.TrailerSize, headerSize(rank))
	copy(buf, magic)
	binary.LittleEndian.PutUint16(buf[4:], version)
	buf[6] = byte(h.Order)
	buf[7] = byte(h.Codec)
	buf[8] = byte(rank)
	binary.LittleEndian.PutUint32(buf[12:], uint32(h.ElemSize))
	binary.LittleEndian.PutUint32(buf[16:], uint32(h.BandRows))
	for i, e := range h.Extents {
		binary.LittleEndian.PutUint64(buf[fixedHeaderSize+8*i:], e)
	}
	return hash.AppendTrailer(buf), nil
}

// UnmarshalBinary decodes and verifies a header. data may extend past the
// header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < fixedHeaderSize {
		return fmt.Errorf("%w: %d bytes is too short for a header", ErrInvalidFormat, len(data))
	}
	if string(data[:4]) != magic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidFormat, data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != version {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, v)
	}
	rank := int(data[8])
	if rank == 0 || rank > grid.MaxRank {
		return fmt.Errorf("%w: rank %d", ErrInvalidFormat, rank)
	}
	size := headerSize(rank)
	if len(data) < size {
		return fmt.Errorf("%w: header truncated", ErrInvalidFormat)
	}
	if _, err := hash.SplitTrailer(data[:size]); err != nil {
		return fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}

	h.Order = grid.Order(data[6])
	h.Codec = Codec(data[7])
	h.ElemSize = uint64(binary.LittleEndian.Uint32(data[12:]))
	h.BandRows = uint64(binary.LittleEndian.Uint32(data[16:]))
	h.Extents = make([]uint64, rank)
	for i := range h.Extents {
		h.Extents[i] = binary.LittleEndian.Uint64(data[fixedHeaderSize+8*i:])
	}
	if err := h.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return nil
}

// bandEntry locates one compressed band.
type bandEntry struct {
	off    uint64 // absolute blob offset
	stored uint32 // bytes on storage
	raw    uint32 // decoded bytes
	flags  uint32
	crc    uint32 // CRC32C of the stored bytes
}

const flagStoredRaw = 1

func encodeIndex(entries []bandEntry) []byte {
	buf := make([]byte, len(entries)*indexEntrySize, len(entries)*indexEntrySize+hash.TrailerSize)
	for i, e := range entries {
		p := buf[i*indexEntrySize:]
		binary.LittleEndian.PutUint64(p[0:], e.off)
		binary.LittleEndian.PutUint32(p[8:], e.stored)
		binary.LittleEndian.PutUint32(p[12:], e.raw)
		binary.LittleEndian.PutUint32(p[16:], e.flags)
		binary.LittleEndian.PutUint32(p[20:], e.crc)
	}
	return hash.AppendTrailer(buf)
}

func decodeIndex(data []byte, n uint64) ([]bandEntry, error) {
	size := n*indexEntrySize + hash.TrailerSize
	if uint64(len(data)) < size {
		return nil, fmt.Errorf("%w: band index truncated", ErrInvalidFormat)
	}
	body, err := hash.SplitTrailer(data[:size])
	if err != nil {
		return nil, fmt.Errorf("%w: band index: %w", ErrCorrupt, err)
	}
	out := make([]bandEntry, n)
	for i := range out {
		p := body[uint64(i)*indexEntrySize:]
		out[i] = bandEntry{
			off:    binary.LittleEndian.Uint64(p[0:]),
			stored: binary.LittleEndian.Uint32(p[8:]),
			raw:    binary.LittleEndian.Uint32(p[12:]),
			flags:  binary.LittleEndian.Uint32(p[16:]),
			crc:    binary.LittleEndian.Uint32(p[20:]),
		}
	}
	return out, nil
}
