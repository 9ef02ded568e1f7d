// Package resource shares limits between stages and the datasets they read.
//
// A Controller hands out three things:
//
//   - memory, for chunk slots and bulk-fetch scratch buffers
//   - read slots, bounding concurrent storage range reads
//   - bandwidth, a token bucket over bytes read from or written to storage
//
// AcquireMemory never blocks. A cache denied memory evicts one of its own
// chunks and reuses that slot; the bulk planner falls back to per-chunk
// fetches.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   1 << 30,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//	ds, _ := dataset.Open(ctx, store, "pressure.hsds", dataset.WithResourceController(rc))
//	st, _ := hyperstage.New(ds, cfg, hyperstage.WithResourceController(rc))
//
// Every method is a no-op on a nil *Controller.
package resource
