package auth

import (
	"errors"
	"net/http"

	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type tokenRequest struct {
	APIKey string `json:"apiKey" example:"s3cr3t-admin-key"`
}

// Token godoc
//
//	@Summary		Issue admin token
//	@Description	Exchanges the configured admin API key for a bearer token valid for 12 hours.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokenRequest	true	"Admin API key"
//	@Success		200		{object}	response.Envelope{data=Token}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !response.Decode(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		response.BadRequest(w, "apiKey is required")
		return
	}

	tok, err := h.svc.IssueAdminToken(req.APIKey)
	switch {
	case errors.Is(err, ErrDisabled):
		response.Forbidden(w, "admin access is disabled")
		return
	case errors.Is(err, ErrInvalidAPIKey):
		logger.Log.Warn().Str("remote", r.RemoteAddr).Msg("rejected admin token request")
		response.Unauthorized(w, "invalid API key")
		return
	case err != nil:
		logger.Log.Error().Err(err).Msg("issue admin token")
		response.InternalError(w)
		return
	}

	response.OK(w, tok)
}
