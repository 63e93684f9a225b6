package settings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/response"
)

// Handler exposes the settings over HTTP for administrators.
type Handler struct {
	provider *Provider
}

// NewHandler creates a new settings Handler.
func NewHandler(provider *Provider) *Handler {
	return &Handler{provider: provider}
}

// Get godoc
//
//	@Summary		Read storage settings
//	@Description	Returns the effective storage settings. The secret key is masked.
//	@Tags			settings
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=map[string]string}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/settings [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]string, len(Names))
	for _, name := range Names {
		v, err := h.provider.Get(r.Context(), name)
		if err != nil {
			logger.Log.Error().Err(err).Str("setting", name).Msg("read setting")
			response.InternalError(w)
			return
		}
		out[name] = v
	}
	out[SecretKey] = mask(out[SecretKey])
	response.OK(w, out)
}

// Update godoc
//
//	@Summary		Update storage settings
//	@Description	Stores the given settings. Unknown names are rejected. Booleans accept true, "true", 1 and "1".
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		map[string]any	true	"Settings to change"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/settings [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if !response.Decode(w, r, &req) {
		return
	}

	for name := range req {
		if !isKnown(name) {
			response.BadRequest(w, "unknown setting: "+name)
			return
		}
	}

	// A masked secret echoed back from Get leaves the stored one alone.
	if s, ok := req[SecretKey].(string); ok && s != "" && strings.Trim(s, "*") == "" {
		delete(req, SecretKey)
	}

	if err := h.provider.SetMany(r.Context(), req); err != nil {
		if errors.Is(err, ErrInvalidValue) {
			response.BadRequest(w, err.Error())
			return
		}
		logger.Log.Error().Err(err).Msg("store settings")
		response.InternalError(w)
		return
	}

	logger.Log.Info().Int("count", len(req)).Msg("storage settings updated")
	response.OK(w, map[string]bool{"saved": true})
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}
