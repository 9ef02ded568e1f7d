package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_CreateOpen(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()
	data := []byte("HSDS header|band 0|band 1")

	w, err := store.Create(ctx, "pressure.hsds")
	require.NoError(t, err)
	_, err = w.Write(data[:12])
	require.NoError(t, err)
	_, err = w.Write(data[12:])
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	_, err = os.Stat(filepath.Join(dir, "pressure.hsds"))
	require.ErrorIs(t, err, os.ErrNotExist, "visible before Close")

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), os.ErrClosed)
	_, err = w.Write(data)
	assert.ErrorIs(t, err, os.ErrClosed)

	blob, err := store.Open(ctx, "pressure.hsds")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 6)
	_, err = blob.ReadAt(ctx, buf, 12)
	require.NoError(t, err)
	assert.Equal(t, "band 0", string(buf))

	raw, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, data, raw)

	require.NoError(t, blob.Close())
	_, err = blob.(Mappable).Bytes()
	assert.Error(t, err)
}

func TestLocalStore_Abort(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)

	w, err := store.Create(context.Background(), "nested/half.hsds")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.(Aborter).Abort())

	_, err = os.Stat(filepath.Join(dir, "nested", "half.hsds"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalStore_PutListDelete(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a.hsds", []byte("first")))
	require.NoError(t, store.Put(ctx, "a.hsds", []byte("second")))
	require.NoError(t, store.Put(ctx, "2024/b.hsds", []byte("x")))

	blob, err := store.Open(ctx, "a.hsds")
	require.NoError(t, err)
	buf := make([]byte, blob.Size())
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "second", string(buf))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/b.hsds", "a.hsds"}, names)

	names, err = store.List(ctx, "2024/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/b.hsds"}, names)

	require.NoError(t, store.Delete(ctx, "a.hsds"))
	require.NoError(t, store.Delete(ctx, "a.hsds"))
	_, err = store.Open(ctx, "a.hsds")
	assert.ErrorIs(t, err, ErrNotFound)

	names, err = NewLocalStore(filepath.Join(t.TempDir(), "missing")).List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Ranges(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "r.hsds", []byte("0123456789")))

	blob, err := store.Open(ctx, "r.hsds")
	require.NoError(t, err)
	defer blob.Close()

	tests := []struct {
		off, length int64
		want        string
		err         error
	}{
		{0, 10, "0123456789", nil},
		{3, 4, "3456", nil},
		{8, 5, "89", nil},
		{10, 1, "", io.EOF},
		{-1, 1, "", io.EOF},
	}
	for _, tt := range tests {
		rc, err := blob.ReadRange(ctx, tt.off, tt.length)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err)
			continue
		}
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, tt.want, string(got))
	}

	n, err := blob.ReadAt(ctx, make([]byte, 4), 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = blob.ReadAt(canceled, make([]byte, 1), 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = blob.ReadRange(canceled, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
