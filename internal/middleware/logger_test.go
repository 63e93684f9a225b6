package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offloader/service/internal/logger"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.Log
	logger.Log = zerolog.New(&buf)
	t.Cleanup(func() { logger.Log = prev })

	h := chimw.RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	cases := []struct {
		path   string
		status int
		level  string
	}{
		{"/health", http.StatusOK, "info"},
		{"/boom", http.StatusBadGateway, "error"},
	}
	for _, tc := range cases {
		buf.Reset()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
		assert.Equal(t, tc.level, entry["level"])
		assert.Equal(t, tc.path, entry["path"])
		assert.Equal(t, float64(tc.status), entry["status"])
		assert.NotEmpty(t, entry["request_id"])
	}
}
