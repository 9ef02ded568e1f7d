package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestMapping_OpenReadClose(t *testing.T) {
	content := []byte("HSDS chunk payload")
	m, err := Open(writeFile(t, content))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "chunk", string(buf))

	// Out of bounds.
	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	// Partial.
	tail := make([]byte, 10)
	n, err = m.ReadAt(tail, 11)
	assert.Equal(t, 7, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "payload", string(tail[:n]))

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMapping_EmptyFile(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Zero(t, m.Size())
	assert.NoError(t, m.Advise(AccessRandom))
}

func TestMapping_SliceAndAdvise(t *testing.T) {
	m, err := Open(writeFile(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Advise(AccessRandom))
	require.NoError(t, m.AdviseRange(2, 4, AccessWillNeed))

	b, err := m.Slice(2, 4)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(b))
	assert.Equal(t, 4, cap(b))

	b, err = m.Slice(10, 0)
	require.NoError(t, err)
	assert.Empty(t, b)

	for _, r := range [][2]int{{8, 4}, {-1, 2}, {0, -1}, {11, 0}} {
		_, err = m.Slice(r[0], r[1])
		assert.ErrorIs(t, err, ErrOutOfBounds, r)
	}
}

func TestMapping_AfterClose(t *testing.T) {
	m, err := Open(writeFile(t, []byte("data")))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	assert.Equal(t, 4, m.Size())
	_, err = m.Slice(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
