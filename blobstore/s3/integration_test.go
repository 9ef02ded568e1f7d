package s3

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperstage/blobstore"
)

// TestStore_Live runs against a real bucket named by $S3_BUCKET.
func TestStore_Live(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}
	ctx := context.Background()

	store, err := New(ctx, bucket, WithPrefix(fmt.Sprintf("hyperstage-it-%d", time.Now().UnixNano())))
	require.NoError(t, err)

	// Two parts with the default 8 MiB part size.
	data := bytes.Repeat([]byte("0123456789abcdef"), 10<<16)
	w, err := store.Create(ctx, "big.hsds")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = store.Delete(ctx, "big.hsds") })

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"big.hsds"}, names)

	blob, err := store.Open(ctx, "big.hsds")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 100)
	_, err = blob.ReadAt(ctx, buf, 9<<20)
	require.NoError(t, err)
	assert.Equal(t, data[9<<20:9<<20+100], buf)

	require.NoError(t, store.Put(ctx, "big.hsds", []byte("replaced")))
	_, err = blob.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, blobstore.ErrModified)

	_, err = store.Open(ctx, "missing.hsds")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
