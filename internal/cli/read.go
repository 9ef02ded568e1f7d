package cli

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/hyperstage"
	"github.com/hupe1980/hyperstage/dataset"
	"github.com/hupe1980/hyperstage/internal/hash"
	"github.com/hupe1980/hyperstage/resource"
)

func newReadCmd() *Command {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	start := fs.UintSlice("start", nil, "block origin (default: all zeros)")
	count := fs.UintSlice("count", nil, "block size (default: up to the dataset extents)")
	repeat := fs.Int("repeat", 1, "read the block this many times")
	out := fs.StringP("out", "o", "", "write the block to this file")

	return &Command{
		Flags: fs,
		Usage: "read <name> [flags]",
		Short: "Read a block through the staging cache",
		Long: "Read a block through the staging cache and print its CRC-32C.\n\n" +
			"The block is written in the dataset's order. Repeated reads show\n" +
			"the cache at work in the printed statistics.",
		Exec: func(ctx context.Context, env *Env, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}
			if *repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1")
			}

			st, ds, closeFn, err := openStage(ctx, env, name)
			if err != nil {
				return err
			}
			defer closeFn()

			origin, size, err := block(ds.Extents(), toUint64s(*start), toUint64s(*count))
			if err != nil {
				return err
			}

			began := time.Now()
			var buf []byte
			for i := 0; i < *repeat; i++ {
				if buf, err = st.ReadRegion(ctx, origin, size); err != nil {
					return err
				}
			}
			elapsed := time.Since(began)

			if *out != "" {
				if err := atomic.WriteFile(*out, bytes.NewReader(buf)); err != nil {
					return fmt.Errorf("write %s: %w", *out, err)
				}
			}

			env.IO.Printf("block:      %v+%v\n", origin, size)
			env.IO.Printf("bytes:      %s\n", humanize.IBytes(uint64(len(buf))))
			env.IO.Printf("crc32c:     %08x\n", hash.CRC32C(buf))
			env.IO.Printf("elapsed:    %s\n", elapsed.Round(time.Microsecond))
			printStats(env.IO, st.Stats(), ds, env.Controller())
			return nil
		},
	}
}

// block fills in defaults for --start and --count.
func block(extents, start, count []uint64) ([]uint64, []uint64, error) {
	rank := len(extents)
	if len(start) == 0 {
		start = make([]uint64, rank)
	}
	if len(start) != rank {
		return nil, nil, fmt.Errorf("--start has %d values, dataset rank is %d", len(start), rank)
	}
	if len(count) == 0 {
		count = make([]uint64, rank)
		for i := range count {
			if start[i] < extents[i] {
				count[i] = extents[i] - start[i]
			}
		}
	}
	if len(count) != rank {
		return nil, nil, fmt.Errorf("--count has %d values, dataset rank is %d", len(count), rank)
	}
	return start, count, nil
}

func printStats(o *IO, s hyperstage.Stats, ds dataset.Dataset, rc *resource.Controller) {
	o.Printf("reads:      %d\n", s.Reads)
	o.Printf("chunks:     %d hits, %d misses, %d refetched\n", s.Hits, s.Misses, s.Refetches)
	o.Printf("resident:   %d/%d chunks, %s\n", s.Resident, s.Capacity, humanize.IBytes(s.Occupied))
	o.Printf("evictions:  %d\n", s.Evictions)
	o.Printf("storage:    %d reads, %s\n", s.StorageReads, humanize.IBytes(s.BytesRead))
	if rs, ok := storageStats(ds); ok {
		o.Printf("requests:   %d ranged requests, %s transferred\n", rs.Requests, humanize.IBytes(rs.BytesRead))
	}
	if u := rc.Usage(); u.Limit > 0 {
		o.Printf("memory:     %s peak of %s\n", humanize.IBytes(uint64(u.Peak)), humanize.IBytes(uint64(u.Limit)))
	}
}
