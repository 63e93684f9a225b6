package offload

import (
	"context"
	"strings"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/settings"
)

// BaseURL returns the public URL objects in bucket are served from, with the
// normalized key prefix appended. It returns "" when bucket is empty, which
// callers treat as "offloading not configured".
//
// A custom endpoint is addressed over plain HTTP, either path-style
// (http://endpoint/bucket) or virtual-hosted (http://bucket.endpoint). Without
// one the AWS virtual-hosted form is used and usePathStyle is ignored.
func BaseURL(bucket, endpoint, region string, usePathStyle bool, keyPrefix string) string {
	if bucket == "" {
		return ""
	}

	var base string
	if endpoint != "" {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimRight(endpoint, "/")
		if usePathStyle {
			base = "http://" + endpoint + "/" + bucket
		} else {
			base = "http://" + bucket + "." + endpoint
		}
	} else {
		base = "https://" + bucket + ".s3." + region + ".amazonaws.com"
	}

	if prefix := settings.NormalizePrefix(keyPrefix); prefix != "" {
		base += "/" + prefix
	}
	return base
}

// BaseURLFor is BaseURL over a settings snapshot.
func BaseURLFor(cfg settings.StorageConfig) string {
	return BaseURL(cfg.Bucket, cfg.Endpoint, cfg.Region, cfg.UsePathStyle, cfg.KeyPrefix)
}

// ConfigSource hands out storage configuration snapshots.
type ConfigSource interface {
	Snapshot(ctx context.Context) (settings.StorageConfig, error)
}

// Resolver rewrites URLs under the local upload base URL into object
// storage URLs for attachments that have been offloaded.
type Resolver struct {
	config        ConfigSource
	uploadBaseURL string
}

// NewResolver creates a Resolver. uploadBaseURL is the public URL of the
// local upload root, e.g. "https://example.com/uploads".
func NewResolver(config ConfigSource, uploadBaseURL string) *Resolver {
	return &Resolver{config: config, uploadBaseURL: strings.TrimRight(uploadBaseURL, "/")}
}

// UploadBaseURL returns the local upload base URL.
func (r *Resolver) UploadBaseURL() string {
	return r.uploadBaseURL
}

// AssetURL returns localURL pointed at object storage when a is offloaded.
// It is idempotent: URLs already under the storage base come back unchanged.
func (r *Resolver) AssetURL(ctx context.Context, localURL string, a *attachment.Attachment) string {
	if !a.IsOffloaded() {
		return localURL
	}

	cfg, err := r.config.Snapshot(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("attachment_id", a.ID).Msg("storage settings unavailable, serving local url")
		return localURL
	}
	return ResolveURL(localURL, r.uploadBaseURL, BaseURLFor(cfg))
}

// ResolveURL substitutes the first occurrence of localBase in localURL with
// storageBase. An empty storageBase, or a URL already under it, is returned
// unchanged.
func ResolveURL(localURL, localBase, storageBase string) string {
	if storageBase == "" {
		return localURL
	}
	if strings.HasPrefix(localURL, storageBase) {
		return localURL
	}
	if localBase == "" {
		return localURL
	}
	return strings.Replace(localURL, localBase, storageBase, 1)
}
