package hyperstage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tailscale/hujson"
)

// Environment variables read by LoadConfig.
const (
	EnvConfig           = "STAGING_CONFIG"
	EnvChunkSize        = "STAGING_CHUNK_SIZE"
	EnvCacheLimit       = "STAGING_CACHE_LIMIT"
	EnvEvictionStrategy = "STAGING_EVICTION_STRATEGY"
	EnvCacheShape       = "STAGING_CACHE_SHAPE"
	EnvFetchStrategy    = "STAGING_FETCH_STRATEGY"
	EnvMissPolicy       = "STAGING_MISS_POLICY"
)

const (
	// DefaultChunkSize is the default chunk edge length in elements.
	DefaultChunkSize = 1024
	// DefaultCacheLimit is the default pool capacity in bytes (4 GiB).
	DefaultCacheLimit ByteSize = 4 << 30
)

// Eviction selects which chunk leaves the cache when it is full.
type Eviction uint8

const (
	// EvictLRU evicts the least recently used chunk. Reads count as use.
	EvictLRU Eviction = iota
	// EvictFIFO evicts the chunk that was admitted first.
	EvictFIFO
)

var evictionNames = []string{"LRU", "FIFO"}

func (e Eviction) String() string { return enumString(evictionNames, e, "Eviction") }

// MarshalText implements encoding.TextMarshaler.
func (e Eviction) MarshalText() ([]byte, error) { return marshalEnum(evictionNames, e, "eviction") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Eviction) UnmarshalText(b []byte) error {
	return unmarshalEnum(evictionNames, e, "eviction", string(b))
}

// Shape selects the chunk geometry.
type Shape uint8

const (
	// ShapeSquare uses hyper-cube chunks of ChunkSize elements per edge.
	ShapeSquare Shape = iota
	// ShapeLine uses one whole row along the fastest axis per chunk.
	ShapeLine
)

var shapeNames = []string{"SQUARE", "LINE"}

func (s Shape) String() string { return enumString(shapeNames, s, "Shape") }

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) { return marshalEnum(shapeNames, s, "shape") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(b []byte) error {
	return unmarshalEnum(shapeNames, s, "shape", string(b))
}

// Strategy selects how missing chunks are fetched.
type Strategy uint8

const (
	// PerChunk issues one storage read per missing chunk.
	PerChunk Strategy = iota
	// Bulk issues a single storage read covering every missing chunk.
	Bulk
)

var strategyNames = []string{"PER_CHUNK", "BULK"}

func (s Strategy) String() string { return enumString(strategyNames, s, "Strategy") }

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) { return marshalEnum(strategyNames, s, "strategy") }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	return unmarshalEnum(strategyNames, s, "strategy", string(b))
}

// MissPolicy selects what happens when a chunk is evicted between
// residency planning and copy-out.
type MissPolicy uint8

const (
	// MissRefetch reads the chunk again.
	MissRefetch MissPolicy = iota
	// MissFail fails the read with ErrChunkNotResident.
	MissFail
)

var missPolicyNames = []string{"REFETCH", "FAIL"}

func (m MissPolicy) String() string { return enumString(missPolicyNames, m, "MissPolicy") }

// MarshalText implements encoding.TextMarshaler.
func (m MissPolicy) MarshalText() ([]byte, error) {
	return marshalEnum(missPolicyNames, m, "miss policy")
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MissPolicy) UnmarshalText(b []byte) error {
	return unmarshalEnum(missPolicyNames, m, "miss policy", string(b))
}

func enumString[T ~uint8](names []string, v T, typ string) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", typ, uint8(v))
}

func marshalEnum[T ~uint8](names []string, v T, field string) ([]byte, error) {
	if int(v) < len(names) {
		return []byte(names[v]), nil
	}
	return nil, &ConfigError{Field: field, Value: uint8(v)}
}

func unmarshalEnum[T ~uint8](names []string, v *T, field, s string) error {
	for i, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			*v = T(i)
			return nil
		}
	}
	return &ConfigError{Field: field, Value: s}
}

// ByteSize is a size in bytes. In configuration files it is either a JSON
// number or a string such as "512MiB".
type ByteSize uint64

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

// UnmarshalJSON accepts numbers and size strings.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return b.UnmarshalText([]byte(s))
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return &ConfigError{Field: "cache_limit", Value: string(data), cause: err}
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalText parses a plain byte count or a humanized size.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(strings.TrimSpace(string(text)))
	if err != nil {
		return &ConfigError{Field: "cache_limit", Value: string(text), cause: err}
	}
	*b = ByteSize(n)
	return nil
}

// Config holds the staging parameters.
type Config struct {
	// ChunkSize is the chunk edge length in elements (SQUARE only).
	ChunkSize uint64 `json:"chunk_size"`
	// CacheLimit is the byte capacity of the chunk pool.
	CacheLimit ByteSize   `json:"cache_limit"`
	Eviction   Eviction   `json:"eviction_strategy"`
	Shape      Shape      `json:"cache_shape"`
	Strategy   Strategy   `json:"fetch_strategy"`
	MissPolicy MissPolicy `json:"miss_policy"`
}

// DefaultConfig returns the default configuration: 1024-element square
// chunks, a 4 GiB LRU pool, per-chunk fetches and refetch on miss.
func DefaultConfig() Config {
	return Config{
		ChunkSize:  DefaultChunkSize,
		CacheLimit: DefaultCacheLimit,
		Eviction:   EvictLRU,
		Shape:      ShapeSquare,
		Strategy:   PerChunk,
		MissPolicy: MissRefetch,
	}
}

// Validate checks the dataset independent fields of c.
func (c Config) Validate() error {
	if c.Shape == ShapeSquare && c.ChunkSize == 0 {
		return &ConfigError{Field: "chunk_size", Value: c.ChunkSize}
	}
	if c.CacheLimit == 0 {
		return &ConfigError{Field: "cache_limit", Value: c.CacheLimit}
	}
	if int(c.Eviction) >= len(evictionNames) {
		return &ConfigError{Field: "eviction_strategy", Value: c.Eviction}
	}
	if int(c.Shape) >= len(shapeNames) {
		return &ConfigError{Field: "cache_shape", Value: c.Shape}
	}
	if int(c.Strategy) >= len(strategyNames) {
		return &ConfigError{Field: "fetch_strategy", Value: c.Strategy}
	}
	if int(c.MissPolicy) >= len(missPolicyNames) {
		return &ConfigError{Field: "miss_policy", Value: c.MissPolicy}
	}
	return nil
}

// LoadConfig builds a Config from, in increasing precedence: the defaults,
// the HuJSON file at path (or at $STAGING_CONFIG when path is empty) and the
// STAGING_* environment variables. lookupEnv defaults to os.LookupEnv.
func LoadConfig(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	cfg := DefaultConfig()

	if path == "" {
		path, _ = lookupEnv(EnvConfig)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &ConfigError{Field: "config file", Value: path, cause: err}
		}
		if err := decodeConfig(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ParseConfig decodes a HuJSON document over the defaults.
func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := decodeConfig(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decodeConfig(raw []byte, cfg *Config) error {
	std, err := hujson.Standardize(raw)
	if err != nil {
		return &ConfigError{Field: "config file", Value: "hujson", cause: err}
	}
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			return ce
		}
		return &ConfigError{Field: "config file", Value: "json", cause: err}
	}
	return nil
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv(EnvChunkSize); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return &ConfigError{Field: EnvChunkSize, Value: v, cause: err}
		}
		cfg.ChunkSize = n
	}
	if v, ok := lookupEnv(EnvCacheLimit); ok {
		if err := cfg.CacheLimit.UnmarshalText([]byte(v)); err != nil {
			return &ConfigError{Field: EnvCacheLimit, Value: v, cause: err}
		}
	}
	for _, e := range []struct {
		name string
		dst  interface{ UnmarshalText([]byte) error }
	}{
		{EnvEvictionStrategy, &cfg.Eviction},
		{EnvCacheShape, &cfg.Shape},
		{EnvFetchStrategy, &cfg.Strategy},
		{EnvMissPolicy, &cfg.MissPolicy},
	} {
		v, ok := lookupEnv(e.name)
		if !ok {
			continue
		}
		if err := e.dst.UnmarshalText([]byte(v)); err != nil {
			return &ConfigError{Field: e.name, Value: v, cause: err}
		}
	}
	return nil
}
