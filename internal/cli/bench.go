package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/hyperstage"
)

func newBenchCmd() *Command {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	reads := fs.Int("reads", 100, "number of random block reads")
	maxBox := fs.UintSlice("max-box", nil, "largest block edge per axis (default: a quarter of each extent)")
	seed := fs.Int64("seed", 1, "random seed")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :2112)")

	return &Command{
		Flags: fs,
		Usage: "bench <name> [flags]",
		Short: "Run random block reads and report cache statistics",
		Exec: func(ctx context.Context, env *Env, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}
			if *reads < 1 {
				return errors.New("--reads must be at least 1")
			}

			reg := prometheus.NewRegistry()
			st, ds, closeFn, err := openStage(ctx, env, name, hyperstage.WithMetricsCollector(newPromCollector(reg)))
			if err != nil {
				return err
			}
			defer closeFn()

			if *metricsAddr != "" {
				stop, err := serveMetrics(*metricsAddr, reg)
				if err != nil {
					return err
				}
				defer stop()
				env.IO.Printf("metrics:    http://%s/metrics\n", *metricsAddr)
			}

			extents := ds.Extents()
			limit := toUint64s(*maxBox)
			if len(limit) == 0 {
				limit = make([]uint64, len(extents))
				for i, e := range extents {
					limit[i] = max(1, e/4)
				}
			}
			if len(limit) != len(extents) {
				return fmt.Errorf("--max-box has %d values, dataset rank is %d", len(limit), len(extents))
			}

			rng := rand.New(rand.NewSource(*seed))
			var moved uint64
			began := time.Now()
			for i := 0; i < *reads; i++ {
				start, count := randomBlock(rng, extents, limit)
				buf, err := st.ReadRegion(ctx, start, count)
				if err != nil {
					return fmt.Errorf("read %d (%v+%v): %w", i, start, count, err)
				}
				moved += uint64(len(buf))
			}
			elapsed := time.Since(began)

			s := st.Stats()
			env.IO.Printf("elapsed:    %s\n", elapsed.Round(time.Millisecond))
			env.IO.Printf("copied:     %s (%s/s)\n", humanize.IBytes(moved), humanize.IBytes(uint64(float64(moved)/elapsed.Seconds())))
			if s.Hits+s.Misses > 0 {
				env.IO.Printf("hit ratio:  %.3f\n", float64(s.Hits)/float64(s.Hits+s.Misses))
			}
			printStats(env.IO, s, ds, env.Controller())
			return nil
		},
	}
}

func randomBlock(rng *rand.Rand, extents, limit []uint64) (start, count []uint64) {
	start = make([]uint64, len(extents))
	count = make([]uint64, len(extents))
	for i, e := range extents {
		start[i] = uint64(rng.Int63n(int64(e)))
		n := min(limit[i], e-start[i])
		count[i] = 1 + uint64(rng.Int63n(int64(n)))
	}
	return start, count
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
