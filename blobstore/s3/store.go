package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/hyperstage/blobstore"
)

var (
	_ blobstore.BlobStore = (*Store)(nil)
	_ blobstore.Aborter   = (*upload)(nil)
)

// Option configures a Store.
type Option func(*options)

type options struct {
	prefix string
	region string
	upload UploadConfig
}

// WithPrefix places every dataset under a key prefix ("datasets" and
// "datasets/" are the same).
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion sets the AWS region used by New.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) { o.upload = cfg }
}

// Store keeps datasets as S3 objects. Reads are ranged GETs pinned to the
// ETag seen at Open.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	upload   UploadConfig
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	var loadOpts []func(*config.LoadOptions) error
	if opts.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return NewStore(s3.NewFromConfig(cfg), bucket, optFns...), nil
}

// NewStore creates a Store on an existing client.
func NewStore(client Client, bucket string, optFns ...Option) *Store {
	opts := applyOptions(optFns)

	prefix := strings.Trim(opts.prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{
		client:   client,
		uploader: newUploader(client, opts.upload),
		bucket:   bucket,
		prefix:   prefix,
		upload:   opts.upload,
	}
}

func applyOptions(optFns []Option) options {
	opts := options{upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func (s *Store) key(name string) string { return s.prefix + strings.TrimPrefix(name, "/") }

func wrap(key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("s3: %s: %w", key, blobstore.ErrNotFound)
		case "PreconditionFailed":
			return fmt.Errorf("s3: %s: %w", key, blobstore.ErrModified)
		}
	}
	return fmt.Errorf("s3: %s: %w", key, err)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrap(key, err)
	}
	return &object{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		etag:   aws.ToString(head.ETag),
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

// Create starts a streaming multipart upload. The object appears once Close
// returns.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return startUpload(ctx, s.uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Put sends blobs below the part size as one PutObject and larger ones
// through the multipart uploader.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	if int64(len(data)) < s.upload.PartSize {
		if err := putObject(ctx, s.client, s.bucket, key, data, s.upload.EnableChecksum); err != nil {
			return wrap(key, err)
		}
		return nil
	}

	u := startUpload(ctx, s.uploader, s.bucket, key, s.upload.EnableChecksum)
	if _, err := u.Write(data); err != nil {
		_ = u.Abort()
		return wrap(key, err)
	}
	return u.Close()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.key(name)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	if err = wrap(key, err); errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(full),
	})

	var names []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, wrap(full, err)
		}
		for _, obj := range page.Contents {
			if n := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix); n != "" {
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

type object struct {
	client Client
	bucket string
	key    string
	etag   string
	size   int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// get issues a GET for [off, off+length) clipped to the object size.
func (o *object) get(ctx context.Context, off, length int64) (io.ReadCloser, int64, error) {
	if off < 0 || off >= o.size {
		return nil, 0, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	end := min(off+length, o.size)

	in := &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end-1)),
	}
	if o.etag != "" {
		in.IfMatch = aws.String(o.etag)
	}
	resp, err := o.client.GetObject(ctx, in)
	if err != nil {
		return nil, 0, wrap(o.key, err)
	}
	return resp.Body, end - off, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 && off >= 0 && off < o.size {
		return 0, nil
	}
	body, n, err := o.get(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	got, err := io.ReadFull(body, p[:n])
	if err != nil {
		return got, wrap(o.key, err)
	}
	if got < len(p) {
		return got, io.EOF
	}
	return got, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	body, _, err := o.get(ctx, off, length)
	return body, err
}
