package hyperstage

import (
	"log/slog"

	"github.com/hupe1980/hyperstage/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
}

// Option configures the collaborators of a Stage.
type Option func(*options)

// WithMetricsCollector reports reads, fetches and evictions to mc. nil turns
// reporting off.
//
//	metrics := &hyperstage.BasicMetricsCollector{}
//	st, _ := hyperstage.New(ds, cfg, hyperstage.WithMetricsCollector(metrics))
//	...
//	fmt.Printf("hit ratio %.2f\n", metrics.GetStats().HitRatio)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger sets the logger; nil discards. Stage records carry the dataset
// extents and element size.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel logs text to stderr at level and above.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController charges chunk buffers and bulk scratch space to a
// memory budget shared with other stages.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
