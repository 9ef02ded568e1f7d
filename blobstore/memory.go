package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStats counts the traffic a MemoryStore has served.
type MemoryStats struct {
	Opens       uint64
	Requests    uint64 // ReadAt and ReadRange calls
	BytesServed uint64
}

// MemoryStore keeps blobs in a map. It is safe for concurrent use and counts
// every request, which lets tests assert how much storage traffic a read
// pattern caused.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	opens    atomic.Uint64
	requests atomic.Uint64
	served   atomic.Uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Stats returns the request counters.
func (m *MemoryStore) Stats() MemoryStats {
	return MemoryStats{
		Opens:       m.opens.Load(),
		Requests:    m.requests.Load(),
		BytesServed: m.served.Load(),
	}
}

// Open returns a handle on the current contents of name. A later Put does
// not affect handles already open.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	m.opens.Add(1)
	return &memoryBlob{store: m, data: data}, nil
}

func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// Put stores a copy of data under name.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.publish(name, data)
	return nil
}

func (m *MemoryStore) publish(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = bytes.Clone(data)
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

type memoryBlob struct {
	store *MemoryStore
	data  []byte
}

func (b *memoryBlob) span(ctx context.Context, off, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.store.requests.Add(1)
	if off < 0 || off >= int64(len(b.data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b.data)))
	b.store.served.Add(uint64(end - off))
	return b.data[off:end], nil
}

func (b *memoryBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	src, err := b.span(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	n := copy(p, src)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	src, err := b.span(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(src)), nil
}

func (b *memoryBlob) Size() int64            { return int64(len(b.data)) }
func (b *memoryBlob) Bytes() ([]byte, error) { return b.data, nil }
func (b *memoryBlob) Close() error           { return nil }

// memoryWriter publishes its buffer on Close.
type memoryWriter struct {
	store   *MemoryStore
	name    string
	buf     bytes.Buffer
	aborted bool
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memoryWriter) Sync() error                 { return nil }

func (w *memoryWriter) Close() error {
	if !w.aborted {
		w.store.publish(w.name, w.buf.Bytes())
	}
	return nil
}

// Abort drops the buffered data; Close then publishes nothing.
func (w *memoryWriter) Abort() error {
	w.aborted = true
	w.buf.Reset()
	return nil
}
