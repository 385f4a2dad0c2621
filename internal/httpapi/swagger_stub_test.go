//go:build !swagger

package httpapi

import (
	"net/http"
	"testing"
)

func TestSwaggerNotMountedByDefault(t *testing.T) {
	r := NewMux(&mockService{})
	w := doRequest(t, r, http.MethodGet, "/swagger/index.html")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
