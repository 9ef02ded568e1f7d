package dataset

import (
	"github.com/hupe1980/hyperstage/resource"
)

const (
	// DefaultCoalesceGap is the largest hole between two runs that is read
	// rather than split into a second request.
	DefaultCoalesceGap = 64 * 1024
	// DefaultMaxSpan bounds a single coalesced request.
	DefaultMaxSpan = 16 * 1024 * 1024
	// DefaultBandRows is the band height Create uses for compressed
	// datasets when Spec.BandRows is zero.
	DefaultBandRows = 64
)

// Option configures Open and Create.
type Option func(*options)

type options struct {
	rc      *resource.Controller
	gap     uint64
	maxSpan uint64
}

func applyOptions(optFns []Option) options {
	o := options{gap: DefaultCoalesceGap, maxSpan: DefaultMaxSpan}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithResourceController bounds concurrent range reads and charges all IO
// to rc's rate limiter.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithCoalesceGap sets the largest hole in bytes that is read through
// instead of issuing a separate request. Zero merges only adjacent runs.
func WithCoalesceGap(gap uint64) Option {
	return func(o *options) {
		o.gap = gap
	}
}

// WithMaxSpan bounds the size of a coalesced request.
func WithMaxSpan(n uint64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSpan = n
		}
	}
}
