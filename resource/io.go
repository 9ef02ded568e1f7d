package resource

import (
	"context"
	"io"
)

// RateLimitedWriter charges every write against the controller's IO budget
// before passing it on. dataset.Create uses it for uploads.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	rc  *Controller
}

func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, w: w, rc: rc}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// RateLimitedReader charges bytes after they arrive, so a short read of a
// band body never pays for the whole buffer.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, r: r, rc: rc}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if ioErr := r.rc.AcquireIO(r.ctx, n); ioErr != nil {
			return n, ioErr
		}
	}
	return n, err
}
