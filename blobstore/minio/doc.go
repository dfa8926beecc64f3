// Package minio provides a MinIO implementation of blobstore.BlobStore.
//
// Any S3-compatible service reachable through minio-go works, including
// self-hosted MinIO clusters used as an index mirror:
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "vecdir",
//	    Prefix:    "indexes",
//	})
package minio
