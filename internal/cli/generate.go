package cli

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/hupe1980/hyperstage/dataset"
	"github.com/hupe1980/hyperstage/internal/conv"
)

func newGenerateCmd() *Command {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	extents := fs.UintSlice("extents", []uint{256, 256}, "dataset extents")
	elemSize := fs.Uint64("elem-size", 4, "element size in bytes")
	order := fs.String("order", "row", "linearization order: row or col")
	codec := fs.String("codec", "none", "band compression: none, lz4 or zstd")
	bandRows := fs.Uint64("band-rows", dataset.DefaultBandRows, "slices of the slowest axis per compressed band")
	fill := fs.String("fill", "index", "element values: index or random")
	seed := fs.Int64("seed", 1, "seed for --fill random")

	return &Command{
		Flags: fs,
		Usage: "generate <name> [flags]",
		Short: "Write a synthetic dataset",
		Long: "Write a synthetic dataset to the store.\n\n" +
			"With --fill index every element holds its 1-based linear index\n" +
			"(little endian, truncated to the element size).",
		Exec: func(ctx context.Context, env *Env, args []string) error {
			name, err := requireName(args)
			if err != nil {
				return err
			}
			o, err := parseOrder(*order)
			if err != nil {
				return err
			}
			c, err := dataset.ParseCodec(*codec)
			if err != nil {
				return err
			}

			spec := dataset.Spec{
				Extents:  toUint64s(*extents),
				ElemSize: *elemSize,
				Order:    o,
				Codec:    c,
				BandRows: *bandRows,
			}
			data, err := synthesize(spec, *fill, *seed)
			if err != nil {
				return err
			}

			store, err := env.Store(ctx)
			if err != nil {
				return err
			}
			if err := dataset.Create(ctx, store, name, spec, data, dataset.WithResourceController(env.Controller())); err != nil {
				return err
			}

			env.IO.Printf("created %s: extents=%v elem_size=%d order=%s codec=%s raw=%s\n",
				name, spec.Extents, spec.ElemSize, spec.Order, spec.Codec, humanize.IBytes(uint64(len(data))))
			return nil
		},
	}
}

// maxGenerate bounds the in-memory buffer of a generated dataset.
const maxGenerate = 1 << 32

func synthesize(spec dataset.Spec, fill string, seed int64) ([]byte, error) {
	if len(spec.Extents) == 0 || spec.ElemSize == 0 {
		return nil, fmt.Errorf("%w: empty extents or zero element size", dataset.ErrInvalidSpec)
	}
	n, err := conv.Product(maxGenerate, spec.Extents...)
	if err != nil || n == 0 {
		return nil, fmt.Errorf("%w: extents %v", dataset.ErrInvalidSpec, spec.Extents)
	}
	if _, err := conv.Product(maxGenerate, n, spec.ElemSize); err != nil {
		return nil, fmt.Errorf("dataset too large to generate in memory: %w", err)
	}

	data := make([]byte, n*spec.ElemSize)
	switch fill {
	case "index":
		var word [8]byte
		for i := uint64(0); i < n; i++ {
			binary.LittleEndian.PutUint64(word[:], i+1)
			copy(data[i*spec.ElemSize:(i+1)*spec.ElemSize], word[:])
		}
	case "random":
		_, _ = rand.New(rand.NewSource(seed)).Read(data)
	default:
		return nil, fmt.Errorf("unknown fill %q (index or random)", fill)
	}
	return data, nil
}
