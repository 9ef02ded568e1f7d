// Package s3 stores datasets in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("datasets"),
//	    s3.WithRegion("us-east-1"),
//	)
//	ds, err := dataset.Open(ctx, store, "pressure.hsds")
//
// Open records the object's ETag and every later range read sends it as
// If-Match, so a dataset overwritten while a stage holds chunks of it fails
// with blobstore.ErrModified rather than mixing versions. Writes go through
// the multipart uploader with CRC32C checksums.
package s3
