package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/hupe1980/hyperstage/internal/mmap"
)

var (
	_ BlobStore = (*LocalStore)(nil)
	_ Mappable  = (*mappedBlob)(nil)
	_ Aborter   = (*fileWriter)(nil)
)

// LocalStore keeps each dataset as a file under a root directory. Files are
// read through read-only memory maps and replaced atomically, so an open
// dataset never sees a half-written file.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the file. Chunk fetches jump around it, so read-ahead is turned
// off.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)
	return &mappedBlob{m: m}, nil
}

// Create buffers the dataset and renames it into place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileWriter{path: path}, nil
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root. A missing root lists as empty.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case errors.Is(err, fs.ErrNotExist) && path == s.root:
			return fs.SkipAll
		case err != nil:
			return err
		case d.IsDir():
			return ctx.Err()
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if rel = filepath.ToSlash(rel); strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type mappedBlob struct {
	m *mmap.Mapping
}

func (b *mappedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return b.m.ReadAt(p, off)
}

// ReadRange serves the range straight out of the mapping and asks the
// kernel to page it in.
func (b *mappedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(b.m.Size())
	if off < 0 || off >= size {
		return nil, io.EOF
	}
	n := int(min(length, size-off))
	band, err := b.m.Slice(int(off), n)
	if err != nil {
		return nil, err
	}
	_ = b.m.AdviseRange(int(off), n, mmap.AccessWillNeed)
	return io.NopCloser(bytes.NewReader(band)), nil
}

func (b *mappedBlob) Size() int64  { return int64(b.m.Size()) }
func (b *mappedBlob) Close() error { return b.m.Close() }

// Bytes exposes the whole mapping. It fails once the blob is closed.
func (b *mappedBlob) Bytes() ([]byte, error) {
	if data := b.m.Bytes(); data != nil || b.m.Size() == 0 {
		return data, nil
	}
	return nil, mmap.ErrClosed
}

type fileWriter struct {
	path string
	buf  bytes.Buffer
	done bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *fileWriter) Sync() error { return nil }

func (w *fileWriter) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	return atomic.WriteFile(w.path, &w.buf)
}

// Abort drops the buffer without touching the file system.
func (w *fileWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
