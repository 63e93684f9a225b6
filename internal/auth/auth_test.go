package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloader/service/internal/config"
	"github.com/offloader/service/internal/logger"
	"github.com/offloader/service/internal/middleware"
)

func newTestService(key string) *Service {
	logger.Discard()
	return NewService(&config.Config{AdminAPIKey: key, JWTSecret: "test-secret"})
}

func TestService_IssueAdminToken(t *testing.T) {
	svc := newTestService("k3y")

	tok, err := svc.IssueAdminToken("k3y")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)

	_, err = svc.IssueAdminToken("wrong")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = newTestService("").IssueAdminToken("")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestIssuedTokenPassesRequireAdmin(t *testing.T) {
	svc := newTestService("k3y")
	tok, err := svc.IssueAdminToken("k3y")
	require.NoError(t, err)

	var subject any
	protected := middleware.RequireAdmin("test-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = r.Context().Value(middleware.SubjectKey)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "admin", subject)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	middleware.RequireAdmin("other-secret")(protected).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Token(t *testing.T) {
	h := NewHandler(newTestService("k3y"))

	rec := httptest.NewRecorder()
	h.Token(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"apiKey":"k3y"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)

	rec = httptest.NewRecorder()
	h.Token(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"apiKey":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Token(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
