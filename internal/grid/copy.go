package grid

// ForEachRun visits the contiguous runs of a box of the given per-axis
// count. Runs lie along the fastest axis of order; fn receives the box
// relative coordinates of each run start (fastest axis always 0) in layout
// order. fn may not retain rel.
func ForEachRun(count []uint64, order Order, fn func(rel []uint64) error) error {
	rank := len(count)
	if rank == 0 {
		return nil
	}
	for _, c := range count {
		if c == 0 {
			return nil
		}
	}

	fastest := axisAt(order, rank, rank-1)
	end := make([]uint64, rank)
	copy(end, count)
	end[fastest] = 1

	return ForEach(make([]uint64, rank), end, order, fn)
}

// CopyBox copies the box of per-axis size count from src (linearized by
// srcLayout, box origin srcStart) into dst (linearized by dstLayout, box
// origin dstStart). Both layouts must share the same order. Elements are
// elemSize bytes wide and are moved one run at a time.
func CopyBox(
	dst []byte, dstLayout Layout, dstStart []uint64,
	src []byte, srcLayout Layout, srcStart []uint64,
	count []uint64, elemSize uint64,
) {
	rank := len(count)
	fastest := srcLayout.Fastest()
	runBytes := count[fastest] * elemSize

	dstStrides := dstLayout.Strides()
	srcStrides := srcLayout.Strides()

	_ = ForEachRun(count, srcLayout.Order, func(rel []uint64) error {
		var d, s uint64
		for a := 0; a < rank; a++ {
			d += (dstStart[a] + rel[a]) * dstStrides[a]
			s += (srcStart[a] + rel[a]) * srcStrides[a]
		}
		d *= elemSize
		s *= elemSize
		copy(dst[d:d+runBytes], src[s:s+runBytes])
		return nil
	})
}
