package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/hyperstage/internal/hash"
)

// UploadConfig tunes how datasets are written.
type UploadConfig struct {
	PartSize    int64 // multipart threshold and part size (default 8 MiB)
	Concurrency int   // parts in flight (default 5)

	// EnableChecksum attaches CRC32C checksums so S3 rejects corrupted
	// uploads (default true).
	EnableChecksum bool

	// LeavePartsOnError keeps uploaded parts of a failed multipart upload.
	LeavePartsOnError bool
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// checksumCRC32C renders a CRC32C the way S3 expects it: base64 of the
// big-endian sum.
func checksumCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}

func putObject(ctx context.Context, client Client, bucket, key string, data []byte, checksum bool) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if checksum {
		in.ChecksumCRC32C = aws.String(checksumCRC32C(data))
	}
	_, err := client.PutObject(ctx, in)
	return err
}

// upload pipes writes into a background manager.Uploader run.
type upload struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	key    string
	done   chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func startUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *upload {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	u := &upload{pw: pw, cancel: cancel, key: key, done: make(chan error, 1)}

	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		u.done <- err
	}()
	return u
}

func (u *upload) Write(p []byte) (int, error) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return u.pw.Write(p)
}

// Sync is a no-op; data is committed on Close.
func (u *upload) Sync() error { return nil }

// Close completes the upload and waits for it. Repeated calls return the
// first result.
func (u *upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return u.err
	}
	u.closed = true
	defer u.cancel()

	if err := u.pw.Close(); err != nil {
		u.err = err
		return err
	}
	if err := <-u.done; err != nil {
		u.err = wrap(u.key, err)
	}
	return u.err
}

// Abort cancels the upload. The uploader removes parts it already sent
// unless LeavePartsOnError is set.
func (u *upload) Abort() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil
	}
	u.closed = true
	u.cancel()
	_ = u.pw.CloseWithError(context.Canceled)
	<-u.done
	return nil
}
