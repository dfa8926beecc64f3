// Package blobstore provides storage for immutable blobs.
//
// A registry can mirror every index blob it builds to a BlobStore so other
// hosts can fetch a prebuilt index instead of rebuilding it.
//
// # Built-in Implementations
//
//   - LocalStore: local file system with mmap reads
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with checksummed uploads
//   - s3.DDBCommitStore: S3 with a DynamoDB commit ledger
//   - minio.Store: MinIO and other S3-compatible services
//
// Implement BlobStore to support other backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
