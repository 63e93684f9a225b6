// Package storage defines the S3-protocol client the offloader talks to.
// Two drivers are provided, the AWS SDK v2 and the MinIO SDK, both usable
// with AWS S3 or any S3-compatible provider (LocalStack, MinIO, R2, ...).
package storage

import (
	"context"
	"io"
)

// Client is the interface for putting and removing objects.
type Client interface {
	// Put uploads Body under Key in Bucket.
	Put(ctx context.Context, in *PutInput) (*PutResult, error)
	// Delete removes the object identified by key.
	Delete(ctx context.Context, bucket, key string) error
}

// PutInput holds the parameters of a single object upload.
type PutInput struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64 // -1 when unknown
	PublicRead  bool
}

// PutResult holds the result of a successful upload.
type PutResult struct {
	Key  string
	ETag string
}
