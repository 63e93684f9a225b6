package attachment

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

// ErrInvalid is returned when a registration request is malformed.
var ErrInvalid = errors.New("invalid attachment")

// store is the persistence the service needs; *Repository satisfies it.
type store interface {
	Create(ctx context.Context, a *Attachment) error
	GetByID(ctx context.Context, id string) (*Attachment, error)
	Delete(ctx context.Context, id string) error
}

// Service contains business logic for attachment records.
type Service struct {
	repo store
}

// NewService creates a new attachment Service.
func NewService(repo store) *Service {
	return &Service{repo: repo}
}

// RegisterInput describes an attachment whose metadata (variants included)
// has been finalized by the host.
type RegisterInput struct {
	File     string    `json:"file" example:"2026/02/photo.jpg"`
	MimeType string    `json:"mimeType" example:"image/jpeg"`
	Title    string    `json:"title,omitempty" example:"Team photo"`
	Width    int       `json:"width,omitempty" example:"1920"`
	Height   int       `json:"height,omitempty" example:"1080"`
	Variants []Variant `json:"variants,omitempty"`
}

// Register validates and stores a new attachment record.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Attachment, error) {
	file, err := cleanRelative(in.File)
	if err != nil {
		return nil, err
	}

	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(path.Ext(file))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	variants := make([]Variant, 0, len(in.Variants))
	for _, v := range in.Variants {
		if v.Name == "" || v.File == "" || strings.Contains(v.File, "/") {
			return nil, fmt.Errorf("%w: variant %q must name a file next to the primary", ErrInvalid, v.Name)
		}
		variants = append(variants, v)
	}

	a := &Attachment{
		File:     file,
		MimeType: mimeType,
		Title:    in.Title,
		Width:    in.Width,
		Height:   in.Height,
		Variants: variants,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("register attachment: %w", err)
	}
	return a, nil
}

// GetByID returns an attachment by its UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*Attachment, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes the host-side record only.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// IsNotFound returns true when the error indicates an attachment was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// cleanRelative normalizes a path relative to the upload root and rejects
// anything escaping it.
func cleanRelative(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", fmt.Errorf("%w: file is required", ErrInvalid)
	}
	for _, seg := range strings.Split(file, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: file must stay inside the upload root", ErrInvalid)
		}
	}
	cleaned := path.Clean("/" + file)[1:]
	if cleaned == "" {
		return "", fmt.Errorf("%w: file is required", ErrInvalid)
	}
	return cleaned, nil
}
