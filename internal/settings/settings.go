// Package settings stores the object storage configuration and hands out
// immutable snapshots of it.
package settings

import (
	"errors"
	"strings"

	"github.com/spf13/cast"
)

// Setting names as persisted in the settings store.
const (
	AccessKey    = "access_key"
	SecretKey    = "secret_key"
	Bucket       = "bucket"
	Region       = "region"
	Endpoint     = "endpoint"
	UsePathStyle = "use_path_style"
	DeleteLocal  = "delete_local"
	BasePrefix   = "base_prefix"
	Driver       = "driver"
)

// Names lists every known setting in display order.
var Names = []string{AccessKey, SecretKey, Bucket, Region, Endpoint, UsePathStyle, BasePrefix, DeleteLocal, Driver}

// Supported storage drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

var (
	// ErrUnknownSetting is returned for names outside Names.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidValue is returned when a value cannot be stored or read back
	// in its canonical form.
	ErrInvalidValue = errors.New("invalid setting value")
)

// StorageConfig is an immutable snapshot of the storage settings taken once
// per operation. Empty strings mean "not configured".
type StorageConfig struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	KeyPrefix    string
	DeleteLocal  bool
	Driver       string
}

// HasCredentials reports whether both halves of the key pair are set.
func (c StorageConfig) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// NormalizePrefix trims whitespace from a key prefix and joins its
// non-empty segments with single slashes. A whitespace-only prefix collapses
// to "".
func NormalizePrefix(prefix string) string {
	segs := strings.Split(strings.TrimSpace(prefix), "/")
	kept := segs[:0]
	for _, s := range segs {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}

// ParseBool reads a stored boolean. Older installations stored booleans as
// true, "true", 1 or "1"; all of them are accepted.
func ParseBool(v any) bool {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on":
			return true
		case "":
			return false
		}
		v = strings.ToLower(strings.TrimSpace(s))
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false
	}
	return b
}

// FormatBool returns the canonical stored form of a boolean.
func FormatBool(b bool) string {
	return cast.ToString(b)
}

func isKnown(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

func isBool(name string) bool {
	return name == UsePathStyle || name == DeleteLocal
}
