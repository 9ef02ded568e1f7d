// Package dataset implements the N-dimensional datasets that a Stage reads
// from.
//
// A dataset is stored as a single immutable blob in a blobstore.BlobStore:
//
//	+--------------------+
//	| header (CRC32C)    |  magic "HSDS", version, order, codec, rank,
//	+--------------------+  element size, band rows, extents
//	| band index (opt.)  |  compressed datasets only
//	+--------------------+
//	| element data       |  raw array, or compressed bands
//	+--------------------+
//
// Raw datasets serve a selection with ranged reads: every box of the
// selection is split into contiguous byte runs, nearby runs are merged into
// spans and the spans are fetched concurrently. Compressed datasets store
// bands of slices along the slowest axis; a read decodes only the bands its
// runs touch.
//
// Both implementations honour a resource.Controller: concurrent range reads
// are bounded by its read limit and every byte fetched is charged to its IO
// rate limiter.
package dataset
