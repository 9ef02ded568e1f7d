package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultConcurrentReads is used when Config.MaxConcurrentReads is zero.
const DefaultConcurrentReads = 8

// ErrMemoryLimitExceeded is returned by AcquireMemory when the budget is
// spent. Callers evict and retry, or fall back to a cheaper plan.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds the limits of one Controller. Zero means unlimited, except
// MaxConcurrentReads which defaults to DefaultConcurrentReads.
type Config struct {
	// MemoryLimitBytes caps chunk buffers plus bulk-fetch scratch space of
	// every stage sharing the controller.
	MemoryLimitBytes   int64
	MaxConcurrentReads int64
	IOLimitBytesPerSec int64
}

// Usage is a point-in-time view of the memory budget.
type Usage struct {
	Used  int64
	Peak  int64
	Limit int64 // 0 if unlimited
}

// Controller shares memory, read slots and storage bandwidth between stages
// and datasets. A nil *Controller imposes no limits.
type Controller struct {
	memLimit int64
	memUsed  atomic.Int64
	memPeak  atomic.Int64

	readCap int
	reads   *semaphore.Weighted
	io      *rate.Limiter
}

// NewController creates a controller. A zero MemoryLimitBytes or
// IOLimitBytesPerSec disables that limit.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentReads <= 0 {
		cfg.MaxConcurrentReads = DefaultConcurrentReads
	}
	c := &Controller{
		memLimit: max(cfg.MemoryLimitBytes, 0),
		readCap:  int(cfg.MaxConcurrentReads),
		reads:    semaphore.NewWeighted(cfg.MaxConcurrentReads),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory reserves n bytes or fails at once with
// ErrMemoryLimitExceeded. It never blocks.
func (c *Controller) AcquireMemory(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	for {
		used := c.memUsed.Load()
		next := used + n
		if c.memLimit > 0 && next > c.memLimit {
			return ErrMemoryLimitExceeded
		}
		if c.memUsed.CompareAndSwap(used, next) {
			c.notePeak(next)
			return nil
		}
	}
}

func (c *Controller) notePeak(v int64) {
	for {
		p := c.memPeak.Load()
		if v <= p || c.memPeak.CompareAndSwap(p, v) {
			return
		}
	}
}

// ReleaseMemory returns n bytes to the budget.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.memUsed.Add(-n)
}

// MemoryUsage is the number of bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Usage reports current and peak memory against the limit.
func (c *Controller) Usage() Usage {
	if c == nil {
		return Usage{}
	}
	return Usage{Used: c.memUsed.Load(), Peak: c.memPeak.Load(), Limit: c.memLimit}
}

// ReadConcurrency is the number of range reads allowed in flight.
func (c *Controller) ReadConcurrency() int {
	if c == nil {
		return DefaultConcurrentReads
	}
	return c.readCap
}

// AcquireRead blocks until a read slot is free or ctx is done.
func (c *Controller) AcquireRead(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.reads.Acquire(ctx, 1)
}

// ReleaseRead frees a slot taken by AcquireRead.
func (c *Controller) ReleaseRead() {
	if c != nil {
		c.reads.Release(1)
	}
}

// AcquireIO waits until n bytes of storage bandwidth are available. Requests
// above the one-second burst are paid for in installments.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	burst := c.io.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
