package offload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloader/service/internal/attachment"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandler_Offload(t *testing.T) {
	f := newFixture(t, defaultSettings(), pending("a", "2026/01/a.png"))
	f.writeFile(t, "2026/01/a.png", "a")
	h := NewHandler(nil, f.uploader, f.syncer, 100)

	rec := httptest.NewRecorder()
	h.Offload(rec, withID(httptest.NewRequest(http.MethodPost, "/api/v1/attachments/a/offload", nil), "a"))

	require.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	assert.Equal(t, StatusUploaded, res.Status)
	assert.Equal(t, "http://localstack:4566/test-bucket/2026/01/a.png", res.RemoteURL)
}

func TestHandler_OffloadErrors(t *testing.T) {
	f := newFixture(t, defaultSettings(), pending("a", "2026/01/a.png"))
	h := NewHandler(nil, f.uploader, f.syncer, 100)

	rec := httptest.NewRecorder()
	h.Offload(rec, withID(httptest.NewRequest(http.MethodPost, "/", nil), "a"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), `"status":"failed"`)

	rec = httptest.NewRecorder()
	h.Offload(rec, withID(httptest.NewRequest(http.MethodPost, "/", nil), "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Register(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.writeFile(t, "2026/02/photo.jpg", "photo")
	h := NewHandler(attachment.NewService(f.repo), f.uploader, f.syncer, 100)

	body := `{"file":"2026/02/photo.jpg","title":"Photo"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attachments", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var data registerData
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Equal(t, "image/jpeg", data.Attachment.MimeType)
	require.NotNil(t, data.Attachment.RemoteURL)
	assert.True(t, data.Offload.OK())
}

func TestHandler_RegisterUploadFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, defaultSettings())
	h := NewHandler(attachment.NewService(f.repo), f.uploader, f.syncer, 100)

	// No local file, so the upload fails but the registration stands.
	body := `{"file":"2026/02/missing.jpg"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attachments", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var data registerData
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	assert.Nil(t, data.Attachment.RemoteURL)
	assert.Equal(t, StatusFailed, data.Offload.Status)
	assert.Equal(t, "local_file_missing", data.Offload.Reason)
	assert.Equal(t, 1, f.repo.Len())
}

func TestHandler_RegisterInvalid(t *testing.T) {
	f := newFixture(t, defaultSettings())
	h := NewHandler(attachment.NewService(f.repo), f.uploader, f.syncer, 100)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attachments", strings.NewReader(`{"file":"../x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/attachments", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Sync(t *testing.T) {
	f := newFixture(t, defaultSettings(), pending("a", "2026/01/a.png"), pending("b", "2026/01/b.png"))
	f.writeFile(t, "2026/01/a.png", "a")
	h := NewHandler(nil, f.uploader, f.syncer, 100)

	rec := httptest.NewRecorder()
	h.Sync(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync?batch=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report SyncReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, SyncReport{Found: 2, Succeeded: 1, Failed: 1}, report)

	rec = httptest.NewRecorder()
	h.Sync(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync?batch=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ConnectionTest(t *testing.T) {
	f := newFixture(t, defaultSettings())
	h := NewHandler(nil, f.uploader, f.syncer, 100)

	rec := httptest.NewRecorder()
	h.ConnectionTest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/connection-test", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgConnectionOK)

	require.NoError(t, f.store.Set(context.Background(), "bucket", ""))
	rec = httptest.NewRecorder()
	h.ConnectionTest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/connection-test", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgConnectionFailed)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load attachment: %w", attachment.ErrNotFound), http.StatusNotFound},
		{ErrMissingCredentials, http.StatusBadRequest},
		{ErrMissingBucket, http.StatusBadRequest},
		{fmt.Errorf("%w: driver", ErrConfigInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: /x", ErrLocalFileMissing), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: k: %w", ErrUpload, errors.New("timeout")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}
