package ring

import (
	"errors"
	"fmt"
	"math"
)

// ErrAllocation is returned when the slot arena cannot be allocated.
var ErrAllocation = errors.New("ring: slot allocation failed")

// none marks an absent link.
const none = -1

// maxCapacity bounds the arena so that slot indices fit into an int32 link.
const maxCapacity = math.MaxInt32

type slot struct {
	buf  []byte
	prev int32
	next int32
}

// Ring is an index-linked recency list over a preallocated slot arena.
type Ring struct {
	slots []slot
	head  int32
	tail  int32
	len   int
}

// New allocates a ring with capacity empty slots.
func New(capacity uint64) (*Ring, error) {
	if capacity > maxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds %d", ErrAllocation, capacity, maxCapacity)
	}

	slots := make([]slot, capacity)
	for i := range slots {
		slots[i].prev = none
		slots[i].next = none
	}

	return &Ring{
		slots: slots,
		head:  none,
		tail:  none,
	}, nil
}

// Cap returns the number of slots.
func (r *Ring) Cap() int {
	return len(r.slots)
}

// Len returns the number of linked slots.
func (r *Ring) Len() int {
	return r.len
}

// Reset releases every slot buffer and the slot arena.
// It is safe to call on a ring that was never populated and more than once.
func (r *Ring) Reset() {
	if r == nil {
		return
	}
	for i := range r.slots {
		r.slots[i].buf = nil
	}
	r.slots = nil
	r.head = none
	r.tail = none
	r.len = 0
}

// Buffer returns the buffer owned by slot i (nil if empty).
func (r *Ring) Buffer(i int) []byte {
	return r.slots[i].buf
}

// SetBuffer installs b as the buffer owned by slot i.
func (r *Ring) SetBuffer(i int, b []byte) {
	r.slots[i].buf = b
}

// TakeBuffer transfers ownership of slot i's buffer to the caller and
// clears the slot's buffer marker.
func (r *Ring) TakeBuffer(i int) []byte {
	b := r.slots[i].buf
	r.slots[i].buf = nil
	return b
}

// Head returns the most-recently-used slot.
func (r *Ring) Head() (int, bool) {
	if r.head == none {
		return 0, false
	}
	return int(r.head), true
}

// Tail returns the least-recently-used slot.
func (r *Ring) Tail() (int, bool) {
	if r.tail == none {
		return 0, false
	}
	return int(r.tail), true
}

// Linked reports whether slot i is part of the recency list.
func (r *Ring) Linked(i int) bool {
	s := &r.slots[i]
	return s.prev != none || s.next != none || r.head == int32(i)
}

// MoveToFront makes slot i the head of the list, linking it if necessary.
func (r *Ring) MoveToFront(i int) {
	idx := int32(i)
	if r.head == idx {
		return
	}

	if r.Linked(i) {
		r.unlink(idx)
	}

	s := &r.slots[idx]
	s.prev = none
	s.next = r.head
	if r.head != none {
		r.slots[r.head].prev = idx
	}
	r.head = idx
	if r.tail == none {
		r.tail = idx
	}
	r.len++
}

// PopTail removes the tail from the list and returns its index.
// The removed slot's buffer marker and links are cleared; the buffer itself
// is not released, callers take ownership of it first.
func (r *Ring) PopTail() (int, bool) {
	if r.tail == none {
		return 0, false
	}
	idx := r.tail
	r.unlink(idx)
	r.slots[idx].buf = nil
	return int(idx), true
}

// Remove unlinks slot i from the list. It is a no-op for unlinked slots.
// The buffer is left in place.
func (r *Ring) Remove(i int) {
	if !r.Linked(i) {
		return
	}
	r.unlink(int32(i))
}

// Walk calls fn for each linked slot from head to tail until fn returns false.
func (r *Ring) Walk(fn func(i int) bool) {
	for idx := r.head; idx != none; idx = r.slots[idx].next {
		if !fn(int(idx)) {
			return
		}
	}
}

func (r *Ring) unlink(idx int32) {
	s := &r.slots[idx]

	if s.prev != none {
		r.slots[s.prev].next = s.next
	} else {
		r.head = s.next
	}

	if s.next != none {
		r.slots[s.next].prev = s.prev
	} else {
		r.tail = s.prev
	}

	s.prev = none
	s.next = none
	r.len--
}
