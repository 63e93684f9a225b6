package offload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/settings"
	"github.com/offloader/service/internal/storage"
)

// AttachmentStore is the persistence the uploader needs;
// *attachment.Repository satisfies it.
type AttachmentStore interface {
	GetByID(ctx context.Context, id string) (*attachment.Attachment, error)
	SetRemoteURL(ctx context.Context, id, remoteURL string) error
}

// Uploader copies an attachment and its variants to object storage and
// records where the primary file ended up.
type Uploader struct {
	repo       AttachmentStore
	config     ConfigSource
	clients    *storage.Factory
	uploadRoot string
}

// NewUploader creates an Uploader. uploadRoot is the local directory
// attachment files are relative to.
func NewUploader(repo AttachmentStore, config ConfigSource, clients *storage.Factory, uploadRoot string) *Uploader {
	return &Uploader{
		repo:       repo,
		config:     config,
		clients:    clients,
		uploadRoot: filepath.Clean(uploadRoot),
	}
}

// VariantOutcome is the result of uploading one variant.
type VariantOutcome struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
	LocalDeleted bool   `json:"localDeleted,omitempty"`
}

// Result describes one upload run. Only the primary file decides Status;
// variant failures show up in Variants and nowhere else.
type Result struct {
	AttachmentID string           `json:"attachmentId"`
	Status       Status           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Key          string           `json:"key,omitempty"`
	RemoteURL    string           `json:"remoteUrl,omitempty"`
	LocalDeleted bool             `json:"localDeleted,omitempty"`
	Variants     []VariantOutcome `json:"variants,omitempty"`
}

// OK reports whether the primary file was uploaded and recorded.
func (r *Result) OK() bool {
	return r != nil && r.Status == StatusUploaded
}

// Upload runs the full offload workflow for the attachment with the given
// id. The returned Result is never nil. Running it again on an offloaded
// attachment uploads the files again and overwrites the recorded URL.
func (u *Uploader) Upload(ctx context.Context, id string) (*Result, error) {
	start := time.Now()
	res := &Result{AttachmentID: id}

	err := u.upload(ctx, id, res)
	UploadDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if res.Status == "" {
			res.Status = StatusFailed
		}
		res.Reason = reason(err)
		UploadsTotal.WithLabelValues(string(res.Status), res.Reason).Inc()
		logger.Log.Warn().Err(err).
			Str("attachment_id", id).
			Str("status", string(res.Status)).
			Msg("offload failed")
		return res, err
	}

	res.Status = StatusUploaded
	UploadsTotal.WithLabelValues(string(res.Status), "").Inc()
	logger.Log.Info().
		Str("attachment_id", id).
		Str("key", res.Key).
		Int("variants", len(res.Variants)).
		Dur("took", time.Since(start)).
		Msg("attachment offloaded")
	return res, nil
}

func (u *Uploader) upload(ctx context.Context, id string, res *Result) error {
	cfg, err := u.snapshot(ctx)
	if err != nil {
		return err
	}

	a, err := u.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, attachment.ErrNotFound) {
			res.Status = StatusSkipped
		}
		return fmt.Errorf("load attachment: %w", err)
	}

	client, err := u.client(ctx, cfg)
	if err != nil {
		return err
	}

	localPath := a.LocalPath(u.uploadRoot)
	key := DeriveKey(localPath, u.uploadRoot, cfg.KeyPrefix)
	if err := putFile(ctx, client, cfg.Bucket, key, localPath, a.MimeType); err != nil {
		return err
	}
	res.Key = key

	// The bucket URL without prefix plus the prefixed key equals what
	// Resolver derives from the same snapshot.
	remoteURL := BaseURL(cfg.Bucket, cfg.Endpoint, cfg.Region, cfg.UsePathStyle, "") + "/" + key
	if err := u.repo.SetRemoteURL(ctx, a.ID, remoteURL); err != nil {
		return fmt.Errorf("record remote url: %w", err)
	}
	res.RemoteURL = remoteURL

	if cfg.DeleteLocal {
		res.LocalDeleted = removeLocal(localPath)
	}

	dir := filepath.Dir(localPath)
	for _, v := range a.Variants {
		res.Variants = append(res.Variants, u.uploadVariant(ctx, client, cfg, a, v, key, dir))
	}
	return nil
}

func (u *Uploader) uploadVariant(ctx context.Context, client storage.Client, cfg settings.StorageConfig,
	a *attachment.Attachment, v attachment.Variant, primaryKey, dir string) VariantOutcome {
	out := VariantOutcome{Name: v.Name, Key: variantKey(primaryKey, v.File)}

	mimeType := v.MimeType
	if mimeType == "" {
		mimeType = a.MimeType
	}

	localPath := filepath.Join(dir, v.File)
	if err := putFile(ctx, client, cfg.Bucket, out.Key, localPath, mimeType); err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		VariantUploadsTotal.WithLabelValues(string(StatusFailed)).Inc()
		logger.Log.Warn().Err(err).
			Str("attachment_id", a.ID).
			Str("variant", v.Name).
			Str("key", out.Key).
			Msg("variant upload failed")
		return out
	}

	out.Status = StatusUploaded
	VariantUploadsTotal.WithLabelValues(string(StatusUploaded)).Inc()
	if cfg.DeleteLocal {
		out.LocalDeleted = removeLocal(localPath)
	}
	return out
}

// DeleteRemote removes the primary object of a and the objects of its
// variants. Missing objects are not an error.
func (u *Uploader) DeleteRemote(ctx context.Context, a *attachment.Attachment) error {
	cfg, err := u.snapshot(ctx)
	if err != nil {
		return err
	}
	client, err := u.client(ctx, cfg)
	if err != nil {
		return err
	}

	key := DeriveKey(a.LocalPath(u.uploadRoot), u.uploadRoot, cfg.KeyPrefix)
	var errs []error
	if err := client.Delete(ctx, cfg.Bucket, key); err != nil {
		errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
	}
	for _, v := range a.Variants {
		vk := variantKey(key, v.File)
		if err := client.Delete(ctx, cfg.Bucket, vk); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", vk, err))
		}
	}
	return errors.Join(errs...)
}

// snapshot loads the settings and checks the preconditions that need no
// network call.
func (u *Uploader) snapshot(ctx context.Context) (settings.StorageConfig, error) {
	cfg, err := u.config.Snapshot(ctx)
	if err != nil {
		return settings.StorageConfig{}, configInvalid(err)
	}
	if !cfg.HasCredentials() {
		return cfg, ErrMissingCredentials
	}
	if cfg.Bucket == "" {
		return cfg, ErrMissingBucket
	}
	return cfg, nil
}

func (u *Uploader) client(ctx context.Context, cfg settings.StorageConfig) (storage.Client, error) {
	client, err := u.clients.Client(ctx, cfg)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidValue) {
			return nil, configInvalid(err)
		}
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

// putFile uploads the file at localPath as a public-read object.
func putFile(ctx context.Context, client storage.Client, bucket, key, localPath, contentType string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLocalFileMissing, localPath)
		}
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrLocalFileMissing, localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = client.Put(ctx, &storage.PutInput{
		Bucket:      bucket,
		Key:         key,
		ContentType: contentType,
		Body:        f,
		Size:        info.Size(),
		PublicRead:  true,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUpload, key, err)
	}
	return nil
}

// removeLocal deletes a local file, logging instead of failing.
func removeLocal(path string) bool {
	if err := os.Remove(path); err != nil {
		logger.Log.Warn().Err(err).Str("path", path).Msg("could not delete local file")
		return false
	}
	return true
}
