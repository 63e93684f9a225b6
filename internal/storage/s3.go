package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/offloader/service/internal/settings"
)

// S3Client implements Client using the AWS SDK v2.
type S3Client struct {
	client *s3.Client
}

// NewS3Client initializes an S3 client from a settings snapshot. A custom
// endpoint (LocalStack, MinIO, ...) replaces the AWS resolver; path-style
// addressing follows the snapshot.
func NewS3Client(ctx context.Context, cfg settings.StorageConfig) (*S3Client, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{client: client}, nil
}

// Put uploads the body with a single PutObject call.
func (c *S3Client) Put(ctx context.Context, in *PutInput) (*PutResult, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(in.Key),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
	}
	if in.Size >= 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if in.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	out, err := c.client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", in.Key, err)
	}
	return &PutResult{Key: in.Key, ETag: aws.ToString(out.ETag)}, nil
}

// Delete removes the object at key from the bucket.
func (c *S3Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// endpointURL makes sure a custom endpoint carries a scheme, which the SDK
// requires. Bare hosts are assumed to be plain HTTP, as LocalStack and
// local MinIO usually are.
func endpointURL(endpoint string) string {
	host, secure := splitEndpoint(endpoint)
	if host == "" {
		return ""
	}
	if secure {
		return "https://" + host
	}
	return "http://" + host
}
