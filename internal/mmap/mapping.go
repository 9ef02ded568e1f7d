package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// Access is a paging hint for a mapped dataset file.
type Access int

const (
	AccessNormal Access = iota
	// AccessRandom suits chunk fetches that jump between bands.
	AccessRandom
	// AccessSequential suits full scans such as checksumming a file.
	AccessSequential
	// AccessWillNeed asks the kernel to page a range in ahead of a read.
	AccessWillNeed
)

var (
	ErrClosed      = errors.New("mmap: mapping is closed")
	ErrTooLarge    = errors.New("mmap: file too large to map")
	ErrOutOfBounds = errors.New("mmap: range out of bounds")
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func() error
}

// Open maps the file at path read-only. Empty files yield an empty mapping
// without touching the OS.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || int64(int(size)) != size {
		return nil, ErrTooLarge
	}

	data, unmap, err := mapFile(f, int(size))
	if err != nil {
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Size is the mapped length in bytes. It stays valid after Close.
func (m *Mapping) Size() int { return len(m.data) }

// Bytes returns the mapped file, or nil once closed. The slice must not be
// retained past Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Slice returns the n bytes at off without copying.
func (m *Mapping) Slice(off, n int) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > len(m.data)-n {
		return nil, ErrOutOfBounds
	}
	return m.data[off : off+n : off+n], nil
}

// Advise applies a paging hint to the whole mapping.
func (m *Mapping) Advise(a Access) error {
	return m.AdviseRange(0, len(m.data), a)
}

// AdviseRange applies a paging hint to n bytes at off.
func (m *Mapping) AdviseRange(off, n int, a Access) error {
	b, err := m.Slice(off, n)
	if err != nil || len(b) == 0 {
		return err
	}
	return advise(b, a)
}

// ReadAt copies out of the mapping. It implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrOutOfBounds
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the mapping. Further calls are no-ops.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap()
}
