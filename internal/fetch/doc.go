// Package fetch makes chunks resident and copies requested regions out of
// them.
//
// The Planner translates a single-block selection into a half-open range of
// chunk coordinates and fills the missing chunks with one of two
// strategies:
//
//   - PerChunk: one storage read per missing chunk, straight into the
//     chunk buffer
//   - Bulk: one storage read of the union of missing chunks into a scratch
//     buffer spanning the chunked bounding box, then a local split
//
// The Copier walks the range in layout order and copies the intersection
// of the request with every chunk into the destination. Filling one chunk
// can evict another chunk of the same request when the cache is smaller
// than the request, so the Copier re-checks residency for every chunk and
// reports misses through a callback or ErrChunkNotResident.
package fetch
