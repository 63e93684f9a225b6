package offload

import (
	"errors"
	"fmt"

	"github.com/offloader/service/internal/settings"
)

var (
	// ErrMissingCredentials is returned when the access or secret key is unset.
	ErrMissingCredentials = errors.New("storage credentials are not configured")

	// ErrMissingBucket is returned when no bucket is configured.
	ErrMissingBucket = errors.New("storage bucket is not configured")

	// ErrLocalFileMissing is returned when the attachment's file is not on disk.
	ErrLocalFileMissing = errors.New("local file does not exist")

	// ErrUpload wraps transport and protocol failures from the storage backend.
	ErrUpload = errors.New("upload failed")

	// ErrConfigInvalid is returned when stored settings cannot be used.
	ErrConfigInvalid = errors.New("storage configuration is invalid")
)

// Status is the terminal state of one upload run.
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// IsConfigError reports whether err stems from missing or invalid settings.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrMissingBucket) ||
		errors.Is(err, ErrConfigInvalid)
}

// reason maps an error to the label used in metrics and results.
func reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrMissingBucket):
		return "missing_bucket"
	case errors.Is(err, ErrLocalFileMissing):
		return "local_file_missing"
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrUpload):
		return "upload_error"
	default:
		return "internal"
	}
}

func configInvalid(err error) error {
	if errors.Is(err, settings.ErrInvalidValue) {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return fmt.Errorf("load storage settings: %w", err)
}
