package rewrite

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/response"
)

// Handler exposes the rewrite points to the host application.
type Handler struct {
	rw *Rewriter
}

// NewHandler creates a new rewrite Handler.
func NewHandler(rw *Rewriter) *Handler {
	return &Handler{rw: rw}
}

type urlData struct {
	URL string `json:"url" example:"https://media.s3.us-east-1.amazonaws.com/2026/02/photo.jpg"`
}

type contentBody struct {
	Content string `json:"content" example:"<img src=\"https://example.com/uploads/2026/02/photo.jpg\">"`
}

// AttachmentURL godoc
//
//	@Summary		Attachment URL
//	@Description	Returns the recorded remote URL of an offloaded attachment, or the given URL unchanged.
//	@Tags			rewrite
//	@Produce		json
//	@Param			id	path		string	true	"Attachment ID"
//	@Param			url	query		string	true	"Local URL"
//	@Success		200	{object}	response.Envelope{data=urlData}
//	@Failure		400	{object}	response.Envelope
//	@Router			/attachments/{id}/url [get]
func (h *Handler) AttachmentURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		response.BadRequest(w, "url is required")
		return
	}
	response.OK(w, urlData{URL: h.rw.AttachmentURL(r.Context(), url, chi.URLParam(r, "id"))})
}

// ImageSrc godoc
//
//	@Summary		Rewrite image source
//	@Description	Rewrites the URL of an image source with dimensions. A null body is returned as null.
//	@Tags			rewrite
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Attachment ID"
//	@Param			request	body		ImageSource	false	"Image source"
//	@Success		200		{object}	response.Envelope{data=ImageSource}
//	@Failure		400		{object}	response.Envelope
//	@Router			/attachments/{id}/image-src [post]
func (h *Handler) ImageSrc(w http.ResponseWriter, r *http.Request) {
	var src *ImageSource
	if !response.Decode(w, r, &src) {
		return
	}
	response.OK(w, h.rw.ImageSrc(r.Context(), src, chi.URLParam(r, "id")))
}

// SrcSet godoc
//
//	@Summary		Rewrite srcset
//	@Description	Rewrites every candidate URL of a responsive srcset.
//	@Tags			rewrite
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Attachment ID"
//	@Param			request	body		[]SrcSetSource	true	"Srcset candidates"
//	@Success		200		{object}	response.Envelope{data=[]SrcSetSource}
//	@Failure		400		{object}	response.Envelope
//	@Router			/attachments/{id}/srcset [post]
func (h *Handler) SrcSet(w http.ResponseWriter, r *http.Request) {
	var sources []SrcSetSource
	if !response.Decode(w, r, &sources) {
		return
	}
	response.OK(w, h.rw.SrcSet(r.Context(), sources, chi.URLParam(r, "id")))
}

// Downsize godoc
//
//	@Summary		Image for a named size
//	@Description	Returns the image of a named size of an offloaded attachment, the full-size image when the size does not exist, or null when the attachment is not offloaded.
//	@Tags			rewrite
//	@Produce		json
//	@Param			id		path		string	true	"Attachment ID"
//	@Param			size	query		string	false	"Size name"	default(full)
//	@Success		200		{object}	response.Envelope{data=ImageSource}
//	@Failure		404		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/attachments/{id}/downsize [get]
func (h *Handler) Downsize(w http.ResponseWriter, r *http.Request) {
	size := r.URL.Query().Get("size")
	if size == "" {
		size = "full"
	}

	src, err := h.rw.Downsize(r.Context(), chi.URLParam(r, "id"), size)
	if errors.Is(err, attachment.ErrNotFound) {
		response.NotFound(w, "attachment not found")
		return
	}
	if err != nil {
		logger.Log.Error().Err(err).Msg("downsize")
		response.InternalError(w)
		return
	}
	response.OK(w, src)
}

// AssetJSON godoc
//
//	@Summary		Rewrite asset descriptor
//	@Description	Rewrites the top-level URL and every named size URL of a media JSON descriptor.
//	@Tags			rewrite
//	@Accept			json
//	@Produce		json
//	@Param			request	body		AssetPayload	true	"Asset descriptor"
//	@Success		200		{object}	response.Envelope{data=AssetPayload}
//	@Failure		400		{object}	response.Envelope
//	@Router			/rewrite/asset-json [post]
func (h *Handler) AssetJSON(w http.ResponseWriter, r *http.Request) {
	var p AssetPayload
	if !response.Decode(w, r, &p) {
		return
	}
	response.OK(w, h.rw.AssetJSON(r.Context(), &p))
}

// Content godoc
//
//	@Summary		Rewrite content
//	@Description	Rewrites every upload URL in free text that belongs to an offloaded attachment.
//	@Tags			rewrite
//	@Accept			json
//	@Produce		json
//	@Param			request	body		contentBody	true	"Content"
//	@Success		200		{object}	response.Envelope{data=contentBody}
//	@Failure		400		{object}	response.Envelope
//	@Router			/rewrite/content [post]
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	var body contentBody
	if !response.Decode(w, r, &body) {
		return
	}
	response.OK(w, contentBody{Content: h.rw.Content(r.Context(), body.Content)})
}
