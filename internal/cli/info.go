package cli

import (
	"context"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/hyperstage/dataset"
)

func newInfoCmd() *Command {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	grid := fs.Bool("grid", false, "also show the chunk grid of the loaded staging config")

	return &Command{
		Flags: fs,
		Usage: "info <name> [flags]",
		Short: "Show a dataset header",
		Exec: func(ctx context.Context, env *Env, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}
			store, err := env.Store(ctx)
			if err != nil {
				return err
			}
			h, err := dataset.Stat(ctx, store, name)
			if err != nil {
				return err
			}

			env.IO.Printf("name:       %s\n", name)
			env.IO.Printf("extents:    %v\n", h.Extents)
			env.IO.Printf("elem_size:  %d\n", h.ElemSize)
			env.IO.Printf("order:      %s\n", h.Order)
			env.IO.Printf("codec:      %s\n", h.Codec)
			if h.Codec != dataset.CodecNone {
				env.IO.Printf("band_rows:  %d\n", h.BandRows)
			}
			env.IO.Printf("elements:   %d\n", h.NumElements())
			env.IO.Printf("raw_size:   %s\n", humanize.IBytes(h.DataSize()))

			if !*grid {
				return nil
			}
			st, _, closeFn, err := openStage(ctx, env, name)
			if err != nil {
				return err
			}
			defer closeFn()

			cfg := st.Config()
			s := st.Stats()
			env.IO.Printf("chunk:      %v (%s, %s)\n", st.ChunkShape(), cfg.Shape, humanize.IBytes(s.ChunkBytes))
			env.IO.Printf("grid:       %v\n", st.GridExtents())
			env.IO.Printf("capacity:   %d chunks (%s)\n", s.Capacity, cfg.CacheLimit)
			return nil
		},
	}
}
