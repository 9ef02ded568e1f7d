// Package blobstore is the storage layer under datasets.
//
// A dataset is one immutable blob: a header followed by the element array,
// raw or compressed in bands. Chunk fetches become ReadAt or ReadRange calls
// on that blob, each taking a context so a canceled stage read stops its
// storage traffic.
//
// Backends:
//
//   - MemoryStore keeps blobs in a map and counts requests, for tests.
//   - LocalStore maps files with mmap and publishes writes atomically.
//   - s3.Store and minio.Store issue ranged GETs pinned to the ETag seen at
//     Open, failing with ErrModified if the object is replaced.
//
// Writers may implement Aborter so a failed dataset.Create leaves nothing
// behind, and readers may implement Mappable to hand out the raw bytes.
package blobstore
