// Package testutil provides testing utilities for hyperstage.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Regions
//
//	rng := testutil.NewRNG(seed)
//	start, count := rng.Box([]uint64{64, 64})
//
// # Pattern Data
//
// Pattern fills an array so that every element encodes its own linear
// index, which makes misplaced bytes easy to spot:
//
//	data := testutil.Pattern([]uint64{16, 16}, 4, grid.RowMajor)
//
// # In-Memory Datasets
//
// ArrayDataset serves hyperslab reads from a byte slice, counts storage
// calls and can inject failures:
//
//	ds := testutil.NewArrayDataset([]uint64{16, 16}, 4, grid.RowMajor, data)
//	ds.FailOn = func(call int) error { return io.ErrUnexpectedEOF }
package testutil
