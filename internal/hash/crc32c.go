package hash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// TrailerSize is the size of a checksum trailer.
const TrailerSize = 4

// ErrMismatch is returned when stored bytes do not match their checksum.
var ErrMismatch = errors.New("checksum mismatch")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Verify checks data against a checksum recorded elsewhere, e.g. in a band
// index.
func Verify(data []byte, want uint32) error {
	if got := CRC32C(data); got != want {
		return fmt.Errorf("%w: %08x, want %08x", ErrMismatch, got, want)
	}
	return nil
}

// AppendTrailer appends the little-endian checksum of buf to buf.
func AppendTrailer(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, CRC32C(buf))
}

// SplitTrailer verifies a record written by AppendTrailer and returns it
// without the trailer.
func SplitTrailer(record []byte) ([]byte, error) {
	if len(record) < TrailerSize {
		return nil, fmt.Errorf("%w: record of %d bytes has no trailer", ErrMismatch, len(record))
	}
	n := len(record) - TrailerSize
	body := record[:n]
	if err := Verify(body, binary.LittleEndian.Uint32(record[n:])); err != nil {
		return nil, err
	}
	return body, nil
}
