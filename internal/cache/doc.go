// Package cache holds the chunk staging cache: a byte-bounded pool of
// chunk buffers addressed by chunk-grid coordinates.
//
// # Slots and recency
//
// Every chunk of the grid owns one slot of an index-linked ring
// (internal/ring). A slot is linked into the recency list exactly when it
// holds a buffer, so the ring length equals the number of resident chunks.
//
//   - LRU: Lookup and Acquire promote the chunk to the head
//   - FIFO: chunks are linked once, on admission, and never promoted
//
// # Admission and eviction
//
// While occupation plus one chunk fits the byte limit (and the optional
// resource.Controller grants the memory) a new buffer is allocated.
// Otherwise the tail chunk's buffer is moved to the new chunk without
// reallocation, so the pool stays bounded after the first fill.
//
// # Geometry
//
// Square chunks are hyper-cubes of ChunkSize elements per edge. Line chunks
// span the whole fastest axis and one element on every other axis, which
// collapses the grid to one chunk per row.
//
// The Manager is not safe for concurrent use.
package cache
