// Package selection describes rectangular regions of N-dimensional
// dataspaces.
//
// A [Selection] pairs the extents of a dataspace with the set of elements
// selected in it. Elements are selected with hyperslabs given as
// (start, stride, count, block) per axis, following HDF5 semantics:
//
//   - Start: first selected coordinate on every axis
//   - Count: number of blocks on every axis
//   - Stride: distance between block starts (nil means all ones)
//   - Block: block size (nil means all ones)
//
// Hyperslabs are combined with [Set], [Or], [And] and [NotB]. Internally a
// selection is a canonical set of disjoint boxes: the decomposition depends
// only on the selected elements, never on the sequence of operations that
// produced them. Two selections that are translations of each other
// therefore list congruent boxes in the same order, which is what allows
// storage reads to pair file and memory boxes one to one.
//
// Example:
//
//	file := selection.New(16, 16)                 // everything selected
//	_ = file.Select(selection.Set, []uint64{2, 1}, nil, []uint64{8, 8}, nil)
//	start, _, count, _, ok := file.Regular()       // [2 1] [8 8] true
//
// Selections are plain values and not safe for concurrent mutation.
package selection
