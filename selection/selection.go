package selection

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrRankMismatch is returned when hyperslab parameters do not match the
	// dataspace rank.
	ErrRankMismatch = errors.New("selection: rank mismatch")
	// ErrOutOfBounds is returned when a hyperslab extends past the dataspace.
	ErrOutOfBounds = errors.New("selection: hyperslab out of bounds")
	// ErrInvalidHyperslab is returned for malformed hyperslab parameters.
	ErrInvalidHyperslab = errors.New("selection: invalid hyperslab")
)

// MaxBlocks bounds the number of blocks a single hyperslab may expand to.
const MaxBlocks = 1 << 16

// Op combines a hyperslab with the current selection.
type Op uint8

const (
	// Set replaces the selection.
	Set Op = iota
	// Or adds the hyperslab to the selection.
	Or
	// And keeps only the overlap with the hyperslab.
	And
	// NotB removes the hyperslab from the selection.
	NotB
)

func (o Op) String() string {
	switch o {
	case Set:
		return "SET"
	case Or:
		return "OR"
	case And:
		return "AND"
	case NotB:
		return "NOTB"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Selection is a set of selected elements within a dataspace.
type Selection struct {
	extents []uint64
	boxes   []Box
}

// New returns a dataspace of the given extents with every element selected.
func New(extents ...uint64) *Selection {
	s := NewNone(extents...)
	s.SelectAll()
	return s
}

// NewNone returns a dataspace of the given extents with nothing selected.
func NewNone(extents ...uint64) *Selection {
	return &Selection{extents: slices.Clone(extents)}
}

// Rank returns the number of axes.
func (s *Selection) Rank() int {
	return len(s.extents)
}

// Extents returns a copy of the dataspace extents.
func (s *Selection) Extents() []uint64 {
	return slices.Clone(s.extents)
}

// Boxes returns the canonical disjoint boxes of the selection.
func (s *Selection) Boxes() []Box {
	out := make([]Box, len(s.boxes))
	for i, b := range s.boxes {
		out[i] = b.Clone()
	}
	return out
}

// NumBoxes returns the number of canonical boxes.
func (s *Selection) NumBoxes() int {
	return len(s.boxes)
}

// NumElements returns the number of selected elements.
func (s *Selection) NumElements() uint64 {
	var n uint64
	for _, b := range s.boxes {
		n += b.NumElements()
	}
	return n
}

// IsEmpty reports whether nothing is selected.
func (s *Selection) IsEmpty() bool {
	return len(s.boxes) == 0
}

// Copy returns a deep copy of s.
func (s *Selection) Copy() *Selection {
	return &Selection{extents: slices.Clone(s.extents), boxes: s.Boxes()}
}

// SelectAll selects every element of the dataspace.
func (s *Selection) SelectAll() {
	s.boxes = nil
	for _, e := range s.extents {
		if e == 0 {
			return
		}
	}
	if len(s.extents) == 0 {
		return
	}
	s.boxes = []Box{NewBox(make([]uint64, len(s.extents)), s.extents)}
}

// SelectNone clears the selection.
func (s *Selection) SelectNone() {
	s.boxes = nil
}

// SelectBox applies op with a single contiguous block.
func (s *Selection) SelectBox(op Op, start, count []uint64) error {
	return s.Select(op, start, nil, count, nil)
}

// Select applies op with the hyperslab (start, stride, count, block).
// nil stride and block default to all ones.
func (s *Selection) Select(op Op, start, stride, count, block []uint64) error {
	boxes, err := s.expand(start, stride, count, block)
	if err != nil {
		return err
	}

	switch op {
	case Set:
		s.boxes = canonical(boxes)
	case Or:
		s.boxes = canonical(append(s.Boxes(), boxes...))
	case And:
		var out []Box
		for _, a := range s.boxes {
			for _, b := range boxes {
				if in, ok := a.Intersect(b); ok {
					out = append(out, in)
				}
			}
		}
		s.boxes = canonical(out)
	case NotB:
		rest := s.Boxes()
		for _, b := range boxes {
			var next []Box
			for _, a := range rest {
				next = append(next, a.subtract(b)...)
			}
			rest = next
		}
		s.boxes = canonical(rest)
	default:
		return fmt.Errorf("%w: unknown op %s", ErrInvalidHyperslab, op)
	}
	return nil
}

// expand validates a hyperslab and turns it into boxes.
func (s *Selection) expand(start, stride, count, block []uint64) ([]Box, error) {
	rank := len(s.extents)
	if len(start) != rank || len(count) != rank {
		return nil, fmt.Errorf("%w: start/count rank %d/%d, dataspace rank %d", ErrRankMismatch, len(start), len(count), rank)
	}
	if stride != nil && len(stride) != rank {
		return nil, fmt.Errorf("%w: stride rank %d, dataspace rank %d", ErrRankMismatch, len(stride), rank)
	}
	if block != nil && len(block) != rank {
		return nil, fmt.Errorf("%w: block rank %d, dataspace rank %d", ErrRankMismatch, len(block), rank)
	}

	// Per-axis list of selected intervals.
	axes := make([][][2]uint64, rank)
	total := 1
	for i := 0; i < rank; i++ {
		st, bl := uint64(1), uint64(1)
		if stride != nil {
			st = stride[i]
		}
		if block != nil {
			bl = block[i]
		}
		if count[i] == 0 {
			return nil, nil
		}
		if bl == 0 || st == 0 {
			return nil, fmt.Errorf("%w: axis %d has zero stride or block", ErrInvalidHyperslab, i)
		}
		if count[i] > 1 && st < bl {
			return nil, fmt.Errorf("%w: axis %d stride %d smaller than block %d", ErrInvalidHyperslab, i, st, bl)
		}

		// start + (count-1)*stride + block <= extent, checked without wrapping.
		ext := s.extents[i]
		if bl > ext || start[i] > ext-bl || count[i]-1 > (ext-bl-start[i])/st {
			return nil, fmt.Errorf("%w: axis %d start %d count %d block %d exceeds extent %d",
				ErrOutOfBounds, i, start[i], count[i], bl, ext)
		}
		last := start[i] + (count[i]-1)*st + bl

		if st == bl || count[i] == 1 {
			axes[i] = [][2]uint64{{start[i], last - start[i]}}
			continue
		}
		if count[i] > MaxBlocks {
			return nil, fmt.Errorf("%w: axis %d expands to %d blocks", ErrInvalidHyperslab, i, count[i])
		}
		for j := uint64(0); j < count[i]; j++ {
			axes[i] = append(axes[i], [2]uint64{start[i] + j*st, bl})
		}
		total *= len(axes[i])
		if total > MaxBlocks {
			return nil, fmt.Errorf("%w: hyperslab expands to more than %d blocks", ErrInvalidHyperslab, MaxBlocks)
		}
	}

	boxes := []Box{{Start: make([]uint64, 0, rank), Count: make([]uint64, 0, rank)}}
	for i := 0; i < rank; i++ {
		next := make([]Box, 0, len(boxes)*len(axes[i]))
		for _, b := range boxes {
			for _, iv := range axes[i] {
				next = append(next, Box{
					Start: append(slices.Clone(b.Start), iv[0]),
					Count: append(slices.Clone(b.Count), iv[1]),
				})
			}
		}
		boxes = next
	}
	return boxes, nil
}

// Bounds returns the bounding box of the selection.
func (s *Selection) Bounds() (Box, bool) {
	if len(s.boxes) == 0 {
		return Box{}, false
	}
	rank := len(s.extents)
	lo := slices.Clone(s.boxes[0].Start)
	hi := make([]uint64, rank)
	for _, b := range s.boxes {
		for i := 0; i < rank; i++ {
			lo[i] = min(lo[i], b.Start[i])
			hi[i] = max(hi[i], b.End(i))
		}
	}
	for i := range hi {
		hi[i] -= lo[i]
	}
	return Box{Start: lo, Count: hi}, true
}

// Regular reports the selection as a single contiguous hyperslab. Count is
// expressed in elements with unit stride and block. ok is false for empty
// selections and selections made of more than one block.
func (s *Selection) Regular() (start, stride, count, block []uint64, ok bool) {
	if len(s.boxes) != 1 {
		return nil, nil, nil, nil, false
	}
	b := s.boxes[0]
	ones := make([]uint64, len(b.Start))
	for i := range ones {
		ones[i] = 1
	}
	return slices.Clone(b.Start), ones, slices.Clone(b.Count), slices.Clone(ones), true
}

// Congruent reports whether s and o select translated copies of the same
// element set: identical box shapes, pairwise, in canonical order.
func (s *Selection) Congruent(o *Selection) bool {
	if len(s.boxes) != len(o.boxes) || s.Rank() != o.Rank() {
		return false
	}
	if len(s.boxes) == 0 {
		return true
	}
	d := make([]int64, s.Rank())
	for i := range d {
		d[i] = int64(o.boxes[0].Start[i]) - int64(s.boxes[0].Start[i])
	}
	for k := range s.boxes {
		a, b := s.boxes[k], o.boxes[k]
		if !slices.Equal(a.Count, b.Count) {
			return false
		}
		for i := range d {
			if int64(b.Start[i])-int64(a.Start[i]) != d[i] {
				return false
			}
		}
	}
	return true
}

// Translate returns a copy of s over extents with every box moved by delta.
// Coordinates that would leave the new dataspace yield ErrOutOfBounds.
func (s *Selection) Translate(extents []uint64, delta []int64) (*Selection, error) {
	if len(extents) != s.Rank() || len(delta) != s.Rank() {
		return nil, fmt.Errorf("%w: translate to rank %d/%d, selection rank %d", ErrRankMismatch, len(extents), len(delta), s.Rank())
	}
	out := NewNone(extents...)
	out.boxes = make([]Box, 0, len(s.boxes))
	for _, b := range s.boxes {
		nb := b.Clone()
		for i := range nb.Start {
			st := int64(nb.Start[i]) + delta[i]
			if st < 0 || uint64(st)+nb.Count[i] > extents[i] {
				return nil, fmt.Errorf("%w: axis %d moves to %d, extent is %d", ErrOutOfBounds, i, st, extents[i])
			}
			nb.Start[i] = uint64(st)
		}
		out.boxes = append(out.boxes, nb)
	}
	return out, nil
}

// Equal reports whether s and o have the same extents and select the same
// elements.
func (s *Selection) Equal(o *Selection) bool {
	if !slices.Equal(s.extents, o.extents) || len(s.boxes) != len(o.boxes) {
		return false
	}
	return boxesEqualFrom(s.boxes, o.boxes, 0)
}

func (s *Selection) String() string {
	return fmt.Sprintf("selection(extents=%v, boxes=%d, elements=%d)", s.extents, len(s.boxes), s.NumElements())
}
