package conv

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrOverflow is returned when a value does not fit the target type.
var ErrOverflow = errors.New("conv: integer overflow")

// Uint64ToInt converts a byte count or offset to int.
func Uint64ToInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("%w: %d does not fit int", ErrOverflow, v)
	}
	return int(v), nil
}

// Uint64ToUint32 converts v for a 32-bit on-disk field.
func Uint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// Product multiplies factors, failing once the product exceeds limit.
// It is used for element counts and byte sizes of N-d extents.
func Product(limit uint64, factors ...uint64) (uint64, error) {
	p := uint64(1)
	for _, f := range factors {
		hi, lo := bits.Mul64(p, f)
		if hi != 0 || lo > limit {
			return 0, fmt.Errorf("%w: product of %v exceeds %d", ErrOverflow, factors, limit)
		}
		p = lo
	}
	return p, nil
}
