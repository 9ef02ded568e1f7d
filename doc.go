// Package hyperstage provides a bounded chunk staging cache for N-d datasets.
//
// A Stage sits in front of a dataset that is read through hyperslab
// selections. It divides the dataset into a grid of fixed shape chunks,
// keeps a bounded number of them resident and serves block reads by copying
// out of resident chunks, fetching missing chunks from the dataset first.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := blobstore.NewLocalStore("./data")
//	ds, _ := dataset.Open(ctx, store, "temperature")
//	defer ds.Close()
//
//	st, _ := hyperstage.New(ds, hyperstage.DefaultConfig())
//	defer st.Close()
//
//	buf, _ := st.ReadRegion(ctx, []uint64{0, 128}, []uint64{64, 64})
//
// # Chunk Geometry
//
// SQUARE chunks are hyper-cubes of ChunkSize elements per axis. LINE chunks
// span the whole fastest axis and one element on every other axis, which
// suits row-wise scans. Edge chunks are clipped by the dataset extents; the
// clipped part of their buffer is zero.
//
// # Eviction
//
// The pool holds CacheLimit / chunk bytes chunks. When it is full the LRU
// policy evicts the least recently used chunk, where both fetching and
// reading count as use. FIFO evicts in admission order.
//
// # Fetch Strategies
//
//	PER_CHUNK  one dataset read per missing chunk
//	BULK       one dataset read for all missing chunks of a request
//
// BULK needs a scratch buffer of the request's bounding box. When a
// resource.Controller denies it, the stage falls back to PER_CHUNK.
//
// # Miss Policy
//
// A request that touches more chunks than the pool holds evicts some of its
// own chunks before they are copied out. MissRefetch reads them again,
// MissFail returns ErrChunkNotResident.
//
// # Configuration
//
// LoadConfig reads a HuJSON file and the STAGING_* environment variables:
//
//	{
//	  // 512 element edges
//	  "chunk_size": 512,
//	  "cache_limit": "1GiB",
//	  "eviction_strategy": "FIFO",
//	  "cache_shape": "SQUARE",
//	  "fetch_strategy": "BULK",
//	}
//
// # Thread Safety
//
// A Stage is not safe for concurrent use. Datasets opened from a blobstore
// may be shared between stages.
package hyperstage
