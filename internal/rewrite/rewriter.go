// Package rewrite points the URLs the host renders at object storage once
// the attachment behind them has been offloaded.
package rewrite

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/offload"
)

// Finder loads attachments; *attachment.Repository satisfies it.
type Finder interface {
	GetByID(ctx context.Context, id string) (*attachment.Attachment, error)
	FindByFile(ctx context.Context, file string) (*attachment.Attachment, error)
}

// ImageSource is an image URL with its dimensions.
type ImageSource struct {
	URL          string `json:"url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Intermediate bool   `json:"intermediate"`
}

// SrcSetSource is one candidate of a responsive srcset.
type SrcSetSource struct {
	URL        string `json:"url"`
	Descriptor string `json:"descriptor" example:"w"`
	Value      int    `json:"value" example:"300"`
}

// AssetSize is one named size of an AssetPayload.
type AssetSize struct {
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

// AssetPayload is the JSON descriptor media pickers use for an attachment.
type AssetPayload struct {
	ID    string               `json:"id"`
	URL   string               `json:"url"`
	Sizes map[string]AssetSize `json:"sizes,omitempty"`
}

// Rewriter rewrites attachment URLs at every read point of the host.
type Rewriter struct {
	finder   Finder
	resolver *offload.Resolver
	lookup   Lookup
	pattern  *regexp.Regexp
}

// NewRewriter creates a Rewriter. lookup may be nil.
func NewRewriter(finder Finder, resolver *offload.Resolver, lookup Lookup) *Rewriter {
	r := &Rewriter{finder: finder, resolver: resolver, lookup: lookup}
	if base := resolver.UploadBaseURL(); base != "" {
		r.pattern = regexp.MustCompile(regexp.QuoteMeta(base) + `/[^\s"'<>()\[\]{}?#\\]+`)
	}
	return r
}

// AttachmentURL returns the recorded remote URL of an offloaded attachment,
// url otherwise.
func (r *Rewriter) AttachmentURL(ctx context.Context, url, id string) string {
	a := r.load(ctx, id)
	if !a.IsOffloaded() {
		return url
	}
	return *a.RemoteURL
}

// ImageSrc rewrites the URL of src. A nil src is returned as is.
func (r *Rewriter) ImageSrc(ctx context.Context, src *ImageSource, id string) *ImageSource {
	if src == nil {
		return nil
	}
	a := r.load(ctx, id)
	out := *src
	out.URL = r.resolver.AssetURL(ctx, src.URL, a)
	return &out
}

// SrcSet rewrites every candidate of a srcset.
func (r *Rewriter) SrcSet(ctx context.Context, sources []SrcSetSource, id string) []SrcSetSource {
	if len(sources) == 0 {
		return sources
	}
	a := r.load(ctx, id)
	out := make([]SrcSetSource, len(sources))
	for i, s := range sources {
		s.URL = r.resolver.AssetURL(ctx, s.URL, a)
		out[i] = s
	}
	return out
}

// Downsize returns the image for a named size of an offloaded attachment.
// A size with no stored variant yields the full-size image, since a
// remote-only original cannot be resized. It returns nil when the
// attachment is not offloaded.
func (r *Rewriter) Downsize(ctx context.Context, id, size string) (*ImageSource, error) {
	a, err := r.finder.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsOffloaded() {
		return nil, nil
	}

	if v, ok := a.Variant(size); ok {
		return &ImageSource{
			URL:          r.resolver.AssetURL(ctx, r.localURL(joinDir(a.Dir(), v.File)), a),
			Width:        v.Width,
			Height:       v.Height,
			Intermediate: true,
		}, nil
	}
	return &ImageSource{
		URL:    r.resolver.AssetURL(ctx, r.localURL(a.File), a),
		Width:  a.Width,
		Height: a.Height,
	}, nil
}

// AssetJSON rewrites the top-level URL and every named size URL of p.
func (r *Rewriter) AssetJSON(ctx context.Context, p *AssetPayload) *AssetPayload {
	if p == nil {
		return nil
	}
	a := r.load(ctx, p.ID)
	out := *p
	out.URL = r.resolver.AssetURL(ctx, p.URL, a)
	if len(p.Sizes) > 0 {
		out.Sizes = make(map[string]AssetSize, len(p.Sizes))
		for name, s := range p.Sizes {
			s.URL = r.resolver.AssetURL(ctx, s.URL, a)
			out.Sizes[name] = s
		}
	}
	return &out
}

// Content rewrites every URL under the local upload base URL in html that
// belongs to an offloaded attachment. Everything else is left untouched.
func (r *Rewriter) Content(ctx context.Context, html string) string {
	if r.pattern == nil {
		return html
	}
	matches := r.pattern.FindAllString(html, -1)
	if len(matches) == 0 {
		return html
	}

	prefix := r.resolver.UploadBaseURL() + "/"
	repl := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, seen := repl[m]; seen {
			continue
		}
		repl[m] = m

		// Sentence punctuation right after a URL is not part of it.
		url := strings.TrimRight(m, ".,;:!")
		a := r.findByFile(ctx, strings.TrimPrefix(url, prefix))
		if a.IsOffloaded() {
			repl[m] = r.resolver.AssetURL(ctx, url, a) + m[len(url):]
		}
	}

	return r.pattern.ReplaceAllStringFunc(html, func(m string) string {
		return repl[m]
	})
}

// load returns the attachment or nil when it cannot be read.
func (r *Rewriter) load(ctx context.Context, id string) *attachment.Attachment {
	if id == "" {
		return nil
	}
	a, err := r.finder.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, attachment.ErrNotFound) {
			logger.Log.Warn().Err(err).Str("attachment_id", id).Msg("load attachment for rewrite")
		}
		return nil
	}
	return a
}

// findByFile reverse-resolves a relative file path, through the lookup
// cache when one is configured.
func (r *Rewriter) findByFile(ctx context.Context, file string) *attachment.Attachment {
	if r.lookup != nil {
		id, ok, err := r.lookup.Get(ctx, file)
		if err != nil {
			logger.Log.Warn().Err(err).Str("file", file).Msg("lookup cache read")
		}
		if ok {
			if id == "" {
				return nil
			}
			a, err := r.finder.GetByID(ctx, id)
			switch {
			case err == nil:
				return a
			case errors.Is(err, attachment.ErrNotFound):
				r.forget(ctx, file)
			default:
				logger.Log.Warn().Err(err).Str("attachment_id", id).Msg("load cached attachment")
				return nil
			}
		}
	}

	a, err := r.finder.FindByFile(ctx, file)
	switch {
	case errors.Is(err, attachment.ErrNotFound):
		r.remember(ctx, file, "")
		return nil
	case err != nil:
		logger.Log.Warn().Err(err).Str("file", file).Msg("reverse lookup")
		return nil
	}
	r.remember(ctx, file, a.ID)
	return a
}

func (r *Rewriter) remember(ctx context.Context, file, id string) {
	if r.lookup == nil {
		return
	}
	if err := r.lookup.Set(ctx, file, id); err != nil {
		logger.Log.Warn().Err(err).Str("file", file).Msg("lookup cache write")
	}
}

func (r *Rewriter) forget(ctx context.Context, file string) {
	if err := r.lookup.Forget(ctx, file); err != nil {
		logger.Log.Warn().Err(err).Str("file", file).Msg("lookup cache delete")
	}
}

func (r *Rewriter) localURL(file string) string {
	return r.resolver.UploadBaseURL() + "/" + strings.TrimLeft(file, "/")
}

func joinDir(dir, file string) string {
	if dir == "" {
		return file
	}
	return dir + "/" + file
}
