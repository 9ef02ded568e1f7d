// Package grid maps N-dimensional coordinates to linear indices and byte
// offsets, and moves rectangular boxes between linearized arrays.
//
// A [Layout] describes how an array of the given extents is linearized.
// [RowMajor] makes axis 0 the most significant axis (the innermost, fastest
// varying axis is the last one); [ColumnMajor] is the mirror image. Every
// function in this package is pure.
//
// The unchecked helpers ([Layout.Index], [LinearIndex]) do no bounds checks:
// a coordinate outside the extents produces a wrong but untrapped result.
// [Layout.CheckedIndex] validates rank and range and should be used wherever
// coordinates come from outside the package.
package grid
