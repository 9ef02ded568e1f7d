package selection

import (
	"slices"
)

// Box is an axis-aligned block of elements: [Start[i], Start[i]+Count[i])
// on every axis i.
type Box struct {
	Start []uint64
	Count []uint64
}

// NewBox returns a box with copies of start and count.
func NewBox(start, count []uint64) Box {
	return Box{Start: slices.Clone(start), Count: slices.Clone(count)}
}

// End returns the exclusive end coordinate on axis i.
func (b Box) End(i int) uint64 {
	return b.Start[i] + b.Count[i]
}

// NumElements returns the number of elements in the box.
func (b Box) NumElements() uint64 {
	n := uint64(1)
	for _, c := range b.Count {
		n *= c
	}
	return n
}

// Clone returns a deep copy of b.
func (b Box) Clone() Box {
	return NewBox(b.Start, b.Count)
}

// Intersect returns the intersection of a and b.
func (b Box) Intersect(o Box) (Box, bool) {
	rank := len(b.Start)
	out := Box{Start: make([]uint64, rank), Count: make([]uint64, rank)}
	for i := 0; i < rank; i++ {
		lo := max(b.Start[i], o.Start[i])
		hi := min(b.End(i), o.End(i))
		if hi <= lo {
			return Box{}, false
		}
		out.Start[i] = lo
		out.Count[i] = hi - lo
	}
	return out, true
}

// subtract returns b minus o as disjoint boxes.
func (b Box) subtract(o Box) []Box {
	inter, ok := b.Intersect(o)
	if !ok {
		return []Box{b.Clone()}
	}

	rank := len(b.Start)
	rest := b.Clone()
	var out []Box

	for i := 0; i < rank; i++ {
		if rest.Start[i] < inter.Start[i] {
			below := rest.Clone()
			below.Count[i] = inter.Start[i] - rest.Start[i]
			out = append(out, below)
		}
		if inter.End(i) < rest.End(i) {
			above := rest.Clone()
			above.Start[i] = inter.End(i)
			above.Count[i] = rest.End(i) - inter.End(i)
			out = append(out, above)
		}
		rest.Start[i] = inter.Start[i]
		rest.Count[i] = inter.Count[i]
	}
	return out
}

func boxesEqualFrom(a, b []Box, axis int) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !slices.Equal(a[k].Start[axis:], b[k].Start[axis:]) ||
			!slices.Equal(a[k].Count[axis:], b[k].Count[axis:]) {
			return false
		}
	}
	return true
}

// canonical returns the canonical disjoint decomposition of the union of
// boxes. It sweeps axis 0 at every box boundary, recursively decomposes each
// slab's cross-section and merges neighbouring slabs with equal
// cross-sections, so the result only depends on the covered element set.
func canonical(boxes []Box) []Box {
	if len(boxes) == 0 {
		return nil
	}
	return sweep(boxes, 0, len(boxes[0].Start))
}

func sweep(boxes []Box, axis, rank int) []Box {
	cuts := make([]uint64, 0, 2*len(boxes))
	for _, b := range boxes {
		cuts = append(cuts, b.Start[axis], b.End(axis))
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)

	var (
		out     []Box
		prevSub []Box
		prevLo  uint64
		prevHi  uint64
		have    bool
	)

	flush := func() {
		if !have {
			return
		}
		for _, sb := range prevSub {
			nb := sb.Clone()
			nb.Start[axis] = prevLo
			nb.Count[axis] = prevHi - prevLo
			out = append(out, nb)
		}
	}

	for i := 0; i+1 < len(cuts); i++ {
		lo, hi := cuts[i], cuts[i+1]

		var cover []Box
		for _, b := range boxes {
			if b.Start[axis] <= lo && lo < b.End(axis) {
				cover = append(cover, b)
			}
		}

		var sub []Box
		if len(cover) > 0 {
			if axis == rank-1 {
				sub = []Box{{Start: make([]uint64, rank), Count: make([]uint64, rank)}}
			} else {
				sub = sweep(cover, axis+1, rank)
			}
		}

		if have && prevHi == lo && boxesEqualFrom(prevSub, sub, axis+1) {
			prevHi = hi
			continue
		}

		flush()
		prevSub, prevLo, prevHi, have = sub, lo, hi, true
	}
	flush()

	return out
}
