// Package s3 provides Amazon S3 and DynamoDB implementations of the
// blobstore.Store interface.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	docs := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "redline/")
//	locks := s3.NewDDBStore(dynamodb.NewFromConfig(cfg), "redline-locks")
//	store := blobstore.NewSplitStore(docs, "locks/", locks)
//
// # Features
//
//   - Conditional PUT (If-None-Match / If-Match) for create and compare-and-swap
//   - CRC32C integrity checksums on upload
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DynamoDB condition expressions for strongly consistent lock tokens
package s3
