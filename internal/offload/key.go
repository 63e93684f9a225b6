// Package offload uploads attachments to object storage and computes the
// keys and public URLs they end up under.
package offload

import (
	"strings"

	"github.com/offloader/service/internal/settings"
)

// DeriveKey computes the object key for localPath. uploadRoot is stripped
// from the front of localPath (a path outside uploadRoot is kept as is, so
// callers must only pass files under it) and the normalized prefix is
// prepended. The result never starts with a slash and never contains "//".
func DeriveKey(localPath, uploadRoot, keyPrefix string) string {
	rel := localPath
	if root := strings.TrimRight(uploadRoot, "/"); root != "" {
		rel = strings.TrimPrefix(rel, root+"/")
	}
	return joinKey(settings.NormalizePrefix(keyPrefix), rel)
}

// joinKey joins key segments with single slashes, dropping empty ones.
func joinKey(parts ...string) string {
	segs := make([]string, 0, 8)
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s != "" {
				segs = append(segs, s)
			}
		}
	}
	return strings.Join(segs, "/")
}

// variantKey places a variant file in the directory of the primary key.
func variantKey(primaryKey, file string) string {
	dir := ""
	if i := strings.LastIndex(primaryKey, "/"); i >= 0 {
		dir = primaryKey[:i]
	}
	return joinKey(dir, file)
}
