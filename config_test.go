package hyperstage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(1024), cfg.ChunkSize)
	assert.Equal(t, ByteSize(4<<30), cfg.CacheLimit)
	assert.Equal(t, EvictLRU, cfg.Eviction)
	assert.Equal(t, ShapeSquare, cfg.Shape)
	assert.Equal(t, PerChunk, cfg.Strategy)
	assert.Equal(t, MissRefetch, cfg.MissPolicy)
}

func TestParseConfig(t *testing.T) {
	raw := []byte(`{
		// comments and trailing commas are fine
		"chunk_size": 256,
		"cache_limit": "64MiB",
		"eviction_strategy": "fifo",
		"cache_shape": "LINE",
		"fetch_strategy": "BULK",
		"miss_policy": "FAIL",
	}`)

	cfg, err := ParseConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, Config{
		ChunkSize:  256,
		CacheLimit: 64 << 20,
		Eviction:   EvictFIFO,
		Shape:      ShapeLine,
		Strategy:   Bulk,
		MissPolicy: MissFail,
	}, cfg)

	t.Run("PartialKeepsDefaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"cache_limit": 1048576}`))
		require.NoError(t, err)
		assert.Equal(t, ByteSize(1<<20), cfg.CacheLimit)
		assert.Equal(t, uint64(DefaultChunkSize), cfg.ChunkSize)
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			raw   string
			field string
		}{
			{"UnknownField", `{"chunk": 1}`, "config file"},
			{"BadEviction", `{"eviction_strategy": "MRU"}`, "eviction"},
			{"BadShape", `{"cache_shape": "CUBE"}`, "shape"},
			{"BadLimit", `{"cache_limit": "lots"}`, "cache_limit"},
			{"ZeroLimit", `{"cache_limit": 0}`, "cache_limit"},
			{"ZeroChunk", `{"chunk_size": 0}`, "chunk_size"},
			{"Syntax", `{"chunk_size": }`, "config file"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParseConfig([]byte(tt.raw))
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfiguration)

				var ce *ConfigError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.field, ce.Field)
			})
		}
	})

	t.Run("LineIgnoresChunkSize", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"cache_shape": "LINE", "chunk_size": 0}`))
		require.NoError(t, err)
		assert.Equal(t, ShapeLine, cfg.Shape)
	})
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staging.hujson")
	require.NoError(t, os.WriteFile(path, []byte(`{"chunk_size": 128, "cache_limit": "1MiB", "fetch_strategy": "BULK"}`), 0o600))

	t.Run("File", func(t *testing.T) {
		cfg, err := LoadConfig(path, envMap(nil))
		require.NoError(t, err)
		assert.Equal(t, uint64(128), cfg.ChunkSize)
		assert.Equal(t, ByteSize(1<<20), cfg.CacheLimit)
		assert.Equal(t, Bulk, cfg.Strategy)
	})

	t.Run("EnvOverridesFile", func(t *testing.T) {
		cfg, err := LoadConfig(path, envMap(map[string]string{
			EnvChunkSize:        "32",
			EnvCacheLimit:       "2 MB",
			EnvEvictionStrategy: "FIFO",
			EnvFetchStrategy:    "per_chunk",
			EnvMissPolicy:       "fail",
		}))
		require.NoError(t, err)
		assert.Equal(t, uint64(32), cfg.ChunkSize)
		assert.Equal(t, ByteSize(2_000_000), cfg.CacheLimit)
		assert.Equal(t, EvictFIFO, cfg.Eviction)
		assert.Equal(t, PerChunk, cfg.Strategy)
		assert.Equal(t, MissFail, cfg.MissPolicy)
	})

	t.Run("PathFromEnv", func(t *testing.T) {
		cfg, err := LoadConfig("", envMap(map[string]string{EnvConfig: path, EnvCacheShape: "LINE"}))
		require.NoError(t, err)
		assert.Equal(t, uint64(128), cfg.ChunkSize)
		assert.Equal(t, ShapeLine, cfg.Shape)
	})

	t.Run("NoFile", func(t *testing.T) {
		cfg, err := LoadConfig("", envMap(nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope"), envMap(nil))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("BadEnv", func(t *testing.T) {
		for k, v := range map[string]string{
			EnvChunkSize:        "-1",
			EnvCacheLimit:       "huge",
			EnvEvictionStrategy: "RANDOM",
			EnvCacheShape:       "",
			EnvMissPolicy:       "IGNORE",
		} {
			_, err := LoadConfig("", envMap(map[string]string{k: v}))
			var ce *ConfigError
			require.True(t, errors.As(err, &ce), k)
			assert.Equal(t, k, ce.Field)
		}
	})
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Eviction = EvictFIFO
	cfg.Shape = ShapeLine

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"chunk_size": 1024,
		"cache_limit": 4294967296,
		"eviction_strategy": "FIFO",
		"cache_shape": "LINE",
		"fetch_strategy": "PER_CHUNK",
		"miss_policy": "REFETCH"
	}`, string(raw))

	got, err := ParseConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "LRU", EvictLRU.String())
	assert.Equal(t, "SQUARE", ShapeSquare.String())
	assert.Equal(t, "BULK", Bulk.String())
	assert.Equal(t, "FAIL", MissFail.String())
	assert.Equal(t, "Eviction(9)", Eviction(9).String())

	_, err := Shape(5).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	assert.Equal(t, "4.0 GiB", DefaultCacheLimit.String())
}
