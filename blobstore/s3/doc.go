// Package s3 provides Amazon S3 implementations of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	reg := vecdir.NewRegistry(vecdir.WithIndexMirror(store))
//
// Small blobs go up with one checksummed PutObject; blobs at or above the
// part size use multipart uploads. DDBCommitStore adds a DynamoDB ledger so
// concurrent writers of the same blob are detected.
package s3
