package manager

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newNotFoundServer starts a stub Civitai API that 404s everything and
// returns its base URL.
func newNotFoundServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Model not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}
