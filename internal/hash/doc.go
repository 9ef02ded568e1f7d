// Package hash provides the CRC32-Castagnoli checksums that protect dataset
// blobs.
//
// Headers and band indexes carry a 4-byte trailer:
//
//	buf = hash.AppendTrailer(buf)
//	body, err := hash.SplitTrailer(record)
//
// Compressed bands are checked against the checksum stored in the index:
//
//	err := hash.Verify(stored, entry.crc)
package hash
