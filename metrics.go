package hyperstage

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordRead is called after each Read. elements is the number of
	// elements requested; hits and misses count chunks.
	RecordRead(elements uint64, hits, misses int, duration time.Duration, err error)

	// RecordFetch is called after the storage reads of a Read or Prefetch.
	RecordFetch(reads int, bytes uint64, duration time.Duration, err error)

	// RecordEviction is called for every evicted chunk.
	RecordEviction()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(uint64, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFetch(int, uint64, time.Duration, error)     {}
func (NoopMetricsCollector) RecordEviction()                                   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	ReadCount      atomic.Int64
	ReadErrors     atomic.Int64
	ReadTotalNanos atomic.Int64
	ElementsRead   atomic.Int64
	ChunkHits      atomic.Int64
	ChunkMisses    atomic.Int64
	FetchCount     atomic.Int64
	FetchErrors    atomic.Int64
	StorageReads   atomic.Int64
	BytesFetched   atomic.Int64
	Evictions      atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(elements uint64, hits, misses int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
		return
	}
	b.ElementsRead.Add(int64(elements))
	b.ChunkHits.Add(int64(hits))
	b.ChunkMisses.Add(int64(misses))
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(reads int, bytes uint64, _ time.Duration, err error) {
	b.FetchCount.Add(1)
	if err != nil {
		b.FetchErrors.Add(1)
	}
	b.StorageReads.Add(int64(reads))
	b.BytesFetched.Add(int64(bytes))
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction() {
	b.Evictions.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	hits, misses := b.ChunkHits.Load(), b.ChunkMisses.Load()
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return BasicMetricsStats{
		ReadCount:    b.ReadCount.Load(),
		ReadErrors:   b.ReadErrors.Load(),
		ReadAvgNanos: b.getAvgReadNanos(),
		ElementsRead: b.ElementsRead.Load(),
		ChunkHits:    hits,
		ChunkMisses:  misses,
		HitRatio:     ratio,
		FetchCount:   b.FetchCount.Load(),
		FetchErrors:  b.FetchErrors.Load(),
		StorageReads: b.StorageReads.Load(),
		BytesFetched: b.BytesFetched.Load(),
		Evictions:    b.Evictions.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgReadNanos() int64 {
	count := b.ReadCount.Load()
	if count == 0 {
		return 0
	}
	return b.ReadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount    int64
	ReadErrors   int64
	ReadAvgNanos int64
	ElementsRead int64
	ChunkHits    int64
	ChunkMisses  int64
	HitRatio     float64
	FetchCount   int64
	FetchErrors  int64
	StorageReads int64
	BytesFetched int64
	Evictions    int64
}
