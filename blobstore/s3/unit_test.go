package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperstage/blobstore"
)

func TestStore_Open(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "grids", WithPrefix("/datasets/"))
	ctx := context.Background()

	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Key) == "datasets/missing.hsds"
	})).Return(nil, &types.NotFound{}).Once()
	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == "grids" && aws.ToString(in.Key) == "datasets/t.hsds"
	})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100), ETag: aws.String(`"v1"`)}, nil).Once()

	_, err := store.Open(ctx, "missing.hsds")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.ErrorContains(t, err, "datasets/missing.hsds")

	blob, err := store.Open(ctx, "t.hsds")
	require.NoError(t, err)
	assert.Equal(t, int64(100), blob.Size())
	assert.Equal(t, `"v1"`, blob.(*object).etag)

	client.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "grids", WithPrefix("datasets"))

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "datasets/a"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "datasets/gone"
	})).Return(nil, &types.NoSuchKey{}).Once()
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "datasets/locked"
	})).Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()

	ctx := context.Background()
	assert.NoError(t, store.Delete(ctx, "a"))
	assert.NoError(t, store.Delete(ctx, "gone"))
	assert.ErrorContains(t, store.Delete(ctx, "locked"), "AccessDenied")
	client.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "grids", WithPrefix("datasets/"))

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "datasets/" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page2"),
		Contents: []types.Object{
			{Key: aws.String("datasets/wind.hsds")},
			{Key: aws.String("datasets/2024/temp.hsds")},
		},
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "page2"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("datasets/pressure.hsds")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/temp.hsds", "pressure.hsds", "wind.hsds"}, names)
	client.AssertExpectations(t)
}

func TestObject_Reads(t *testing.T) {
	client := new(MockS3Client)
	o := &object{client: client, bucket: "grids", key: "k", etag: `"v1"`, size: 10}
	ctx := context.Background()

	ranged := func(r string) any {
		return mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return aws.ToString(in.Range) == r && aws.ToString(in.IfMatch) == `"v1"`
		})
	}
	body := func(s string) *s3.GetObjectOutput {
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
	}

	client.On("GetObject", mock.Anything, ranged("bytes=0-4")).Return(body("hello"), nil).Once()
	client.On("GetObject", mock.Anything, ranged("bytes=8-9")).Return(body("ld"), nil).Once()
	client.On("GetObject", mock.Anything, ranged("bytes=2-6")).Return(body("llo w"), nil).Once()
	client.On("GetObject", mock.Anything, ranged("bytes=3-3")).
		Return(nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}).Once()

	buf := make([]byte, 5)
	n, err := o.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = o.ReadAt(ctx, buf, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = o.ReadAt(ctx, buf, 10)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := o.ReadRange(ctx, 2, 5)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "llo w", string(got))

	_, err = o.ReadAt(ctx, buf[:1], 3)
	assert.ErrorIs(t, err, blobstore.ErrModified)

	client.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	client := new(MockS3Client)
	data := []byte("chunk bytes")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "a" && aws.ToString(in.ChecksumCRC32C) == checksumCRC32C(data)
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "b" && in.ChecksumCRC32C == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	ctx := context.Background()
	require.NoError(t, NewStore(client, "grids").Put(ctx, "a", data))

	cfg := DefaultUploadConfig()
	cfg.EnableChecksum = false
	require.NoError(t, NewStore(client, "grids", WithUploadConfig(cfg)).Put(ctx, "b", data))

	client.AssertExpectations(t)
}

func TestStore_Create(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "grids", WithPrefix("datasets"))

	var got []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "datasets/new.hsds" && in.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Run(func(args mock.Arguments) {
		got, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	wb, err := store.Create(context.Background(), "new.hsds")
	require.NoError(t, err)
	_, err = wb.Write([]byte("header"))
	require.NoError(t, err)
	_, err = wb.Write([]byte("+bands"))
	require.NoError(t, err)
	require.NoError(t, wb.Sync())
	require.NoError(t, wb.Close())
	require.NoError(t, wb.Close())
	assert.Equal(t, "header+bands", string(got))

	_, err = wb.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.NoError(t, wb.(blobstore.Aborter).Abort())
}

func TestChecksumCRC32C(t *testing.T) {
	assert.Equal(t, "4waSgw==", checksumCRC32C([]byte("123456789")))
}
