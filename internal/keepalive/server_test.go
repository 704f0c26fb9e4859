package keepalive

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	s := New(0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, tc := range []struct {
		path string
		body string
	}{
		{"/", `{"status":"ok"}`},
		{"/healthz", "ok"},
	} {
		rec := httptest.NewRecorder()
		s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Equal(t, tc.body, rec.Body.String(), tc.path)
	}
}
