package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/hyperstage"
)

// promCollector exports stage metrics to Prometheus.
type promCollector struct {
	readLatency  *prometheus.HistogramVec
	fetchLatency *prometheus.HistogramVec
	elements     prometheus.Counter
	chunks       *prometheus.CounterVec
	storageReads prometheus.Counter
	bytesFetched prometheus.Counter
	evictions    prometheus.Counter
}

var _ hyperstage.MetricsCollector = (*promCollector)(nil)

func newPromCollector(reg prometheus.Registerer) *promCollector {
	c := &promCollector{
		readLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hyperstage_read_latency_seconds",
			Help:    "Latency of staged reads",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"status"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hyperstage_fetch_latency_seconds",
			Help:    "Latency of making a range resident",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"status"}),
		elements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperstage_elements_read_total",
			Help: "Elements copied out of the cache",
		}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperstage_chunk_lookups_total",
			Help: "Chunk residency checks by result",
		}, []string{"result"}),
		storageReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperstage_storage_reads_total",
			Help: "Dataset reads issued by the stage",
		}),
		bytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperstage_fetched_bytes_total",
			Help: "Bytes read from the dataset",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperstage_evictions_total",
			Help: "Chunks evicted from the cache",
		}),
	}

	reg.MustRegister(
		c.readLatency,
		c.fetchLatency,
		c.elements,
		c.chunks,
		c.storageReads,
		c.bytesFetched,
		c.evictions,
	)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *promCollector) RecordRead(elements uint64, hits, misses int, d time.Duration, err error) {
	c.readLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	if err != nil {
		return
	}
	c.elements.Add(float64(elements))
	c.chunks.WithLabelValues("hit").Add(float64(hits))
	c.chunks.WithLabelValues("miss").Add(float64(misses))
}

func (c *promCollector) RecordFetch(reads int, bytes uint64, d time.Duration, err error) {
	c.fetchLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	c.storageReads.Add(float64(reads))
	c.bytesFetched.Add(float64(bytes))
}

func (c *promCollector) RecordEviction() {
	c.evictions.Inc()
}
