package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWithData(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorWithData(rec, http.StatusBadGateway, "upload failed", map[string]string{"status": "failed"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Error   string            `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "upload failed", env.Error)
	assert.Equal(t, "failed", env.Data["status"])
}

func TestDecode(t *testing.T) {
	type body struct {
		Content string `json:"content"`
	}

	cases := []struct {
		name   string
		body   string
		ok     bool
		status int
	}{
		{"valid", `{"content":"hello"}`, true, http.StatusOK},
		{"malformed", `{"content":`, false, http.StatusBadRequest},
		{"too large", `{"content":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, false, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var got body
			ok := Decode(rec, req, &got)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.status, rec.Code)
			if ok {
				assert.Equal(t, "hello", got.Content)
			}
		})
	}
}
