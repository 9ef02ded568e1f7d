package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/hyperstage"
	"github.com/hupe1980/hyperstage/dataset"
)

// openStage opens the named dataset and stages it with the loaded config.
// The returned close function releases both.
func openStage(ctx context.Context, env *Env, name string, opts ...hyperstage.Option) (*hyperstage.Stage, dataset.Dataset, func(), error) {
	cfg, err := env.StageConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := env.Store(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	ds, err := dataset.Open(ctx, store, name, dataset.WithResourceController(env.Controller()))
	if err != nil {
		return nil, nil, nil, err
	}

	opts = append([]hyperstage.Option{
		hyperstage.WithLogger(env.Logger),
		hyperstage.WithResourceController(env.Controller()),
	}, opts...)
	st, err := hyperstage.New(ds, cfg, opts...)
	if err != nil {
		_ = ds.Close()
		return nil, nil, nil, err
	}

	return st, ds, func() {
		_ = st.Close()
		_ = ds.Close()
	}, nil
}

// storageStats returns the request counters of datasets that keep them.
func storageStats(ds dataset.Dataset) (dataset.ReadStats, bool) {
	s, ok := ds.(interface{ Stats() dataset.ReadStats })
	if !ok {
		return dataset.ReadStats{}, false
	}
	return s.Stats(), true
}

func parseOrder(s string) (dataset.Order, error) {
	switch strings.ToLower(s) {
	case "row", "c", "row-major":
		return dataset.RowMajor, nil
	case "col", "column", "fortran", "column-major":
		return dataset.ColumnMajor, nil
	default:
		return 0, fmt.Errorf("unknown order %q (row or col)", s)
	}
}

func toUint64s(v []uint) []uint64 {
	out := make([]uint64, len(v))
	for i, x := range v {
		out[i] = uint64(x)
	}
	return out
}
