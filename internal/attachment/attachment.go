// Package attachment manages the host application's media records.
package attachment

import (
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when an attachment does not exist.
var ErrNotFound = errors.New("attachment not found")

// ErrAlreadyExists is returned when a file is already registered.
var ErrAlreadyExists = errors.New("attachment already exists")

// Attachment is one media object owned by the host application.
type Attachment struct {
	ID        string    `json:"id"`
	File      string    `json:"file"` // relative to the upload root, e.g. "2026/02/photo.jpg"
	MimeType  string    `json:"mimeType"`
	Title     string    `json:"title,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Variants  []Variant `json:"variants"`
	RemoteURL *string   `json:"remoteUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Variant is a derived rendition stored next to the primary file.
type Variant struct {
	Name     string `json:"name"`
	File     string `json:"file"` // bare filename in the primary file's directory
	MimeType string `json:"mimeType,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// IsOffloaded reports whether the primary file has a recorded remote URL.
func (a *Attachment) IsOffloaded() bool {
	return a != nil && a.RemoteURL != nil && *a.RemoteURL != ""
}

// LocalPath returns the absolute path of the primary file under root.
func (a *Attachment) LocalPath(root string) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(a.File, "/")
}

// Dir returns the directory of the primary file relative to the upload
// root, or "" for files at the root.
func (a *Attachment) Dir() string {
	return Dir(a.File)
}

// Variant returns the variant registered under name.
func (a *Attachment) Variant(name string) (Variant, bool) {
	for _, v := range a.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Dir returns the directory part of a relative file, "" when there is none.
func Dir(file string) string {
	d := path.Dir(strings.TrimLeft(file, "/"))
	if d == "." {
		return ""
	}
	return d
}
