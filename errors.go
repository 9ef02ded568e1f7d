package hyperstage

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hyperstage/dataset"
	"github.com/hupe1980/hyperstage/internal/cache"
	"github.com/hupe1980/hyperstage/internal/fetch"
	"github.com/hupe1980/hyperstage/internal/grid"
	"github.com/hupe1980/hyperstage/selection"
)

var (
	// ErrAllocation is returned when no chunk buffer could be obtained.
	ErrAllocation = errors.New("hyperstage: chunk allocation failed")
	// ErrStorageRead is returned when the dataset failed to deliver data.
	ErrStorageRead = errors.New("hyperstage: storage read failed")
	// ErrInvalidConfiguration is returned for unusable configurations.
	ErrInvalidConfiguration = errors.New("hyperstage: invalid configuration")
	// ErrInvalidSelection is returned for malformed or mismatched selections.
	ErrInvalidSelection = errors.New("hyperstage: invalid selection")
	// ErrUnsupportedSelection is returned for selections that are not a
	// single contiguous block.
	ErrUnsupportedSelection = errors.New("hyperstage: unsupported selection")
	// ErrChunkNotResident is returned under MissFail when a planned chunk was
	// evicted before it could be copied out.
	ErrChunkNotResident = errors.New("hyperstage: chunk not resident")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("hyperstage: stage closed")
)

// StorageReadError reports a failed dataset read.
//
// The dataset's error can be accessed via errors.Unwrap / errors.As.
type StorageReadError struct {
	// Op is the fetch strategy that issued the read.
	Op string
	// Chunk is the chunk being fetched, nil for bulk reads.
	Chunk []uint64
	cause error
}

func (e *StorageReadError) Error() string {
	if e.Chunk != nil {
		return fmt.Sprintf("%s: %s chunk %v: %v", ErrStorageRead, e.Op, e.Chunk, e.cause)
	}
	return fmt.Sprintf("%s: %s: %v", ErrStorageRead, e.Op, e.cause)
}

func (e *StorageReadError) Unwrap() []error { return []error{ErrStorageRead, e.cause} }

// ConfigError names the configuration field that was rejected.
type ConfigError struct {
	Field string
	Value any
	cause error
}

func (e *ConfigError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s = %v: %v", ErrInvalidConfiguration, e.Field, e.Value, e.cause)
	}
	return fmt.Sprintf("%s: %s = %v", ErrInvalidConfiguration, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidConfiguration}
	}
	return []error{ErrInvalidConfiguration, e.cause}
}

// translateError maps errors of the internal packages onto the public error
// kinds. The original error stays reachable.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var re *fetch.ReadError
	if errors.As(err, &re) {
		return &StorageReadError{Op: re.Strategy.String(), Chunk: re.Chunk, cause: re.Err}
	}
	if errors.Is(err, fetch.ErrChunkNotResident) {
		return fmt.Errorf("%w: %w", ErrChunkNotResident, err)
	}
	if errors.Is(err, fetch.ErrUnsupportedSelection) {
		return fmt.Errorf("%w: %w", ErrUnsupportedSelection, err)
	}

	switch {
	case errors.Is(err, cache.ErrAllocation):
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	case errors.Is(err, cache.ErrInvalidConfig):
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	case errors.Is(err, cache.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	switch {
	case errors.Is(err, selection.ErrRankMismatch),
		errors.Is(err, selection.ErrOutOfBounds),
		errors.Is(err, selection.ErrInvalidHyperslab),
		errors.Is(err, grid.ErrRankMismatch),
		errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, dataset.ErrSelectionMismatch),
		errors.Is(err, dataset.ErrBufferTooSmall):
		return fmt.Errorf("%w: %w", ErrInvalidSelection, err)
	}

	return err
}
