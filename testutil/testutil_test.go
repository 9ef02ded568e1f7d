package testutil

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/selection"
)

func TestRNG_Box(t *testing.T) {
	rng := NewRNG(4711)
	extents := []uint64{7, 3, 9}

	for range 200 {
		start, count := rng.Box(extents)
		for i := range extents {
			assert.Greater(t, count[i], uint64(0))
			assert.LessOrEqual(t, start[i]+count[i], extents[i])
		}
	}

	rng.Reset()
	a, _ := rng.Box(extents)
	rng.Reset()
	b, _ := rng.Box(extents)
	assert.Equal(t, a, b)
}

func TestRNG_Chunks(t *testing.T) {
	gridExtents := []uint64{4, 1, 3}
	cs := NewRNG(1).Chunks(50, gridExtents)
	require.Len(t, cs, 50)
	for _, c := range cs {
		assert.Less(t, c[0], uint64(4))
		assert.Zero(t, c[1])
		assert.Less(t, c[2], uint64(3))
	}
	assert.Equal(t, cs, NewRNG(1).Chunks(50, gridExtents))
}

func TestPattern(t *testing.T) {
	data := Pattern([]uint64{3, 4}, 4, grid.RowMajor)
	require.Len(t, data, 48)
	// Element (2, 1) has linear index 9, stored as 10.
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(data[9*4:]))
}

func TestArrayDataset_Read(t *testing.T) {
	ds := NewPatternDataset([]uint64{8, 8}, 2, grid.RowMajor)
	ds.RecordSelections()

	file := selection.NewNone(8, 8)
	require.NoError(t, file.SelectBox(selection.Set, []uint64{2, 3}, []uint64{2, 4}))
	mem := selection.NewNone(2, 4)
	require.NoError(t, mem.SelectBox(selection.Set, []uint64{0, 0}, []uint64{2, 4}))

	dst := make([]byte, 16)
	require.NoError(t, ds.Read(context.Background(), file, mem, dst))

	want := Region(ds.Data(), []uint64{8, 8}, 2, grid.RowMajor, []uint64{2, 3}, []uint64{2, 4})
	assert.Equal(t, want, dst)
	assert.Equal(t, 1, ds.Calls())
	assert.Equal(t, uint64(8), ds.ElementsRead())
	assert.Len(t, ds.Selections(), 1)

	ds.FailOn = func(call int) error {
		if call == 2 {
			return ErrInjected
		}
		return nil
	}
	assert.ErrorIs(t, ds.Read(context.Background(), file, mem, dst), ErrInjected)
	assert.NoError(t, ds.Read(context.Background(), file, mem, dst))

	ds.ResetCounters()
	assert.Zero(t, ds.Calls())
}
