// Package minio stores datasets on MinIO or any S3-compatible server
// (Ceph, SeaweedFS, Garage) through minio-go, without the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	store := miniostore.NewStore(client, "grids", "datasets")
//	ds, err := dataset.Open(ctx, store, "pressure.hsds")
//
// Range reads carry the ETag from Open as a precondition. Create streams
// through a pipe into PutObject with unknown size, which the client turns
// into a multipart upload.
package minio
