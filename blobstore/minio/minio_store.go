package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/hyperstage/blobstore"
)

const contentType = "application/octet-stream"

var errUploadAborted = errors.New("minio: upload aborted")

var (
	_ blobstore.BlobStore = (*Store)(nil)
	_ blobstore.Aborter   = (*upload)(nil)
)

// Store keeps datasets as objects under a key prefix of one bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore returns a store for bucket. A non-empty prefix is treated as a
// directory ("datasets" and "datasets/" are the same).
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *Store) key(name string) string { return s.prefix + strings.TrimPrefix(name, "/") }
func (s *Store) name(key string) string { return strings.TrimPrefix(key, s.prefix) }
func (s *Store) wrap(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("minio: %s: %w", key, blobstore.ErrNotFound)
	case "PreconditionFailed":
		return fmt.Errorf("minio: %s: %w", key, blobstore.ErrModified)
	}
	return fmt.Errorf("minio: %s: %w", key, err)
}

// Open stats the object and pins its ETag; later range reads fail with
// blobstore.ErrModified if the object is overwritten.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.wrap(key, err)
	}
	return &object{store: s, key: key, etag: info.ETag, size: info.Size}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:    contentType,
		SendContentMd5: true,
	})
	if err != nil {
		return s.wrap(key, err)
	}
	return nil
}

// Create streams writes into a PutObject of unknown size, which the client
// sends as a multipart upload. The object appears on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()
	u := &upload{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			err = s.wrap(key, err)
		}
		_ = pr.CloseWithError(err)
		u.done <- err
	}()
	return u, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if err = s.wrap(key, err); errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, s.wrap(s.key(prefix), obj.Err)
		}
		if n := s.name(obj.Key); n != "" {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names, nil
}

// object is an open dataset object. It holds no connection; every read is a
// ranged GET.
type object struct {
	store *Store
	key   string
	etag  string
	size  int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// get issues a GET for [off, off+length) clipped to the object size.
func (o *object) get(ctx context.Context, off, length int64) (*minio.Object, int64, error) {
	if off < 0 || off >= o.size {
		return nil, 0, io.EOF
	}
	end := min(off+length, o.size)

	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, end-1); err != nil {
		return nil, 0, err
	}
	if o.etag != "" {
		if err := opts.SetMatchETag(o.etag); err != nil {
			return nil, 0, err
		}
	}
	obj, err := o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
	if err != nil {
		return nil, 0, o.store.wrap(o.key, err)
	}
	return obj, end - off, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	obj, n, err := o.get(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	got, err := io.ReadFull(obj, p[:n])
	if err != nil {
		return got, o.store.wrap(o.key, err)
	}
	if got < len(p) {
		return got, io.EOF
	}
	return got, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	obj, _, err := o.get(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type upload struct {
	pw     *io.PipeWriter
	done   chan error
	closed atomic.Bool
}

func (u *upload) Write(p []byte) (int, error) { return u.pw.Write(p) }
func (u *upload) Sync() error                 { return nil }

func (u *upload) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.done
}

// Abort cancels the multipart upload; nothing is published.
func (u *upload) Abort() error {
	if u.closed.Swap(true) {
		return nil
	}
	_ = u.pw.CloseWithError(errUploadAborted)
	<-u.done
	return nil
}
