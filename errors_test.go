package hyperstage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperstage/dataset"
	"github.com/hupe1980/hyperstage/internal/cache"
	"github.com/hupe1980/hyperstage/internal/fetch"
	"github.com/hupe1980/hyperstage/selection"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	cause := errors.New("disk on fire")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"ReadError", &fetch.ReadError{Strategy: fetch.Bulk, Err: cause}, ErrStorageRead},
		{"Miss", &fetch.MissError{Chunk: []uint64{1}}, ErrChunkNotResident},
		{"Unsupported", fmt.Errorf("%w: 2 blocks", fetch.ErrUnsupportedSelection), ErrUnsupportedSelection},
		{"Allocation", cache.ErrAllocation, ErrAllocation},
		{"CacheConfig", cache.ErrInvalidConfig, ErrInvalidConfiguration},
		{"CacheClosed", cache.ErrClosed, ErrClosed},
		{"OutOfBounds", selection.ErrOutOfBounds, ErrInvalidSelection},
		{"Rank", selection.ErrRankMismatch, ErrInvalidSelection},
		{"DatasetMismatch", dataset.ErrSelectionMismatch, ErrInvalidSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	other := errors.New("unrelated")
	assert.Same(t, other, translateError(other))
}

func TestStorageReadError(t *testing.T) {
	cause := errors.New("timeout")
	err := translateError(&fetch.ReadError{Strategy: fetch.PerChunk, Chunk: []uint64{2, 3}, Err: cause})

	var sre *StorageReadError
	require.True(t, errors.As(err, &sre))
	assert.Equal(t, "PER_CHUNK", sre.Op)
	assert.Equal(t, []uint64{2, 3}, sre.Chunk)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "hyperstage: storage read failed: PER_CHUNK chunk [2 3]: timeout", err.Error())

	bulk := &StorageReadError{Op: "BULK", cause: cause}
	assert.Equal(t, "hyperstage: storage read failed: BULK: timeout", bulk.Error())
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "chunk_size", Value: 0}
	assert.Equal(t, "hyperstage: invalid configuration: chunk_size = 0", err.Error())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cause := errors.New("bad digit")
	err = &ConfigError{Field: "STAGING_CHUNK_SIZE", Value: "x", cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad digit")
}
