package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/offloader/service/internal/settings"
)

// awsHost is used by the MinIO driver when no custom endpoint is configured.
const awsHost = "s3.amazonaws.com"

// MinioClient implements Client using the MinIO SDK.
type MinioClient struct {
	client *minio.Client
}

// NewMinioClient creates a MinIO SDK client from a settings snapshot.
// The SDK wants host[:port], so any scheme on the endpoint is stripped and
// turned into the Secure flag instead.
func NewMinioClient(cfg settings.StorageConfig) (*MinioClient, error) {
	host, secure := splitEndpoint(cfg.Endpoint)
	if host == "" {
		host, secure = awsHost, true
	}

	lookup := minio.BucketLookupDNS
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioClient{client: client}, nil
}

// Put streams the body to the bucket. MinIO switches to multipart on its own
// for large bodies.
func (c *MinioClient) Put(ctx context.Context, in *PutInput) (*PutResult, error) {
	opts := minio.PutObjectOptions{ContentType: in.ContentType}
	if in.PublicRead {
		opts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}

	info, err := c.client.PutObject(ctx, in.Bucket, in.Key, in.Body, in.Size, opts)
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", in.Key, err)
	}
	return &PutResult{Key: info.Key, ETag: info.ETag}, nil
}

// Delete removes the object at key from the bucket.
func (c *MinioClient) Delete(ctx context.Context, bucket, key string) error {
	if err := c.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// splitEndpoint strips the scheme and trailing slash from an endpoint and
// reports whether it asked for TLS. Bare hosts default to plain HTTP.
func splitEndpoint(endpoint string) (host string, secure bool) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, secure = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = strings.TrimPrefix(endpoint, "http://")
	}
	return strings.TrimRight(endpoint, "/"), secure
}
