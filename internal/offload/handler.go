package offload

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/response"
)

// Connectivity check messages shown to administrators.
const (
	MsgConnectionOK     = "S3 connection successful!"
	MsgConnectionFailed = "S3 connection failed. Check your credentials and bucket settings."
)

// Handler holds HTTP handlers for registering and offloading attachments.
type Handler struct {
	attachments *attachment.Service
	uploader    *Uploader
	syncer      *Syncer
	batch       int
}

// NewHandler creates a new offload Handler. batch is the sync page size
// used when a request does not give one.
func NewHandler(attachments *attachment.Service, uploader *Uploader, syncer *Syncer, batch int) *Handler {
	return &Handler{attachments: attachments, uploader: uploader, syncer: syncer, batch: batch}
}

type registerData struct {
	Attachment *attachment.Attachment `json:"attachment"`
	Offload    *Result                `json:"offload"`
}

type connectionData struct {
	Success bool    `json:"success" example:"true"`
	Message string  `json:"message" example:"S3 connection successful!"`
	Result  *Result `json:"result,omitempty"`
}

// Register godoc
//
//	@Summary		Register attachment
//	@Description	Stores an attachment whose metadata and variants are final, then offloads it. A failed upload does not undo the registration; the outcome is reported in offload.
//	@Tags			attachments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		attachment.RegisterInput	true	"Attachment metadata"
//	@Success		201		{object}	response.Envelope{data=registerData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/attachments [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req attachment.RegisterInput
	if !response.Decode(w, r, &req) {
		return
	}

	a, err := h.attachments.Register(r.Context(), req)
	switch {
	case errors.Is(err, attachment.ErrInvalid):
		response.BadRequest(w, err.Error())
		return
	case errors.Is(err, attachment.ErrAlreadyExists):
		response.Conflict(w, "file is already registered")
		return
	case err != nil:
		logger.Log.Error().Err(err).Str("file", req.File).Msg("register attachment")
		response.InternalError(w)
		return
	}

	// A failed upload keeps the registration; the outcome goes back in res.
	res, err := h.uploader.Upload(r.Context(), a.ID)
	if err != nil {
		logger.Log.Debug().Err(err).Str("attachment_id", a.ID).Msg("register: offload deferred")
	}
	if res.OK() {
		a.RemoteURL = &res.RemoteURL
	}
	response.Created(w, registerData{Attachment: a, Offload: res})
}

// Offload godoc
//
//	@Summary		Offload attachment
//	@Description	Uploads the attachment and its variants again and overwrites the recorded remote URL.
//	@Tags			attachments
//	@Produce		json
//	@Param			id	path		string	true	"Attachment ID"
//	@Success		200	{object}	response.Envelope{data=Result}
//	@Failure		400	{object}	response.Envelope{data=Result}
//	@Failure		404	{object}	response.Envelope{data=Result}
//	@Failure		422	{object}	response.Envelope{data=Result}
//	@Failure		502	{object}	response.Envelope{data=Result}
//	@Router			/attachments/{id}/offload [post]
func (h *Handler) Offload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.uploader.Upload(r.Context(), id)
	if err != nil {
		status := StatusCode(err)
		if status == http.StatusInternalServerError {
			response.InternalError(w)
			return
		}
		response.ErrorWithData(w, status, err.Error(), res)
		return
	}
	response.OK(w, res)
}

// Sync godoc
//
//	@Summary		Sync pending attachments
//	@Description	Offloads every attachment without a remote URL. batch sets the database page size only.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			batch	query		int	false	"Page size"	default(100)
//	@Success		200		{object}	response.Envelope{data=SyncReport}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	batch := h.batch
	if raw := r.URL.Query().Get("batch"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(w, "batch must be a positive integer")
			return
		}
		batch = n
	}

	report, err := h.syncer.Sync(r.Context(), batch, nil)
	if err != nil {
		logger.Log.Error().Err(err).Msg("sync")
		response.InternalError(w)
		return
	}
	response.OK(w, report)
}

// ConnectionTest godoc
//
//	@Summary		Test storage connection
//	@Description	Uploads a throwaway file through the full offload workflow and removes it again.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=connectionData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope{data=connectionData}
//	@Router			/connection-test [post]
func (h *Handler) ConnectionTest(w http.ResponseWriter, r *http.Request) {
	res, err := h.syncer.CheckConnection(r.Context())
	if err != nil {
		logger.Log.Warn().Err(err).Msg("connection test failed")
		response.ErrorWithData(w, http.StatusBadGateway, MsgConnectionFailed,
			connectionData{Success: false, Message: err.Error(), Result: res})
		return
	}
	response.OK(w, connectionData{Success: true, Message: MsgConnectionOK, Result: res})
}

// StatusCode maps an upload error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, attachment.ErrNotFound):
		return http.StatusNotFound
	case IsConfigError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrLocalFileMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
