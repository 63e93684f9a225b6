package attachment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/response"
)

// Handler holds HTTP handlers for attachment records.
type Handler struct {
	svc *Service
}

// NewHandler creates a new attachment Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get godoc
//
//	@Summary		Get attachment
//	@Description	Returns an attachment record including its remote URL when offloaded.
//	@Tags			attachments
//	@Produce		json
//	@Param			id	path		string	true	"Attachment ID"
//	@Success		200	{object}	response.Envelope{data=Attachment}
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/attachments/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "attachment not found")
			return
		}
		logger.Log.Error().Err(err).Msg("get attachment")
		response.InternalError(w)
		return
	}
	response.OK(w, a)
}

// Delete godoc
//
//	@Summary		Delete attachment
//	@Description	Removes the host-side record. Objects already offloaded stay in the bucket.
//	@Tags			attachments
//	@Produce		json
//	@Param			id	path		string	true	"Attachment ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/attachments/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "attachment not found")
			return
		}
		logger.Log.Error().Err(err).Str("attachment_id", id).Msg("delete attachment")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]bool{"deleted": true})
}
