package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"

	"civitaid/internal/catalog"
	"civitaid/internal/civitai"
	"civitaid/internal/downloader"
	"civitaid/internal/httpapi"
	"civitaid/internal/manager"
)

// fakeDownloader writes a POSIX script standing in for the civitdl binary.
// A successful run lays files out exactly like the real tool: a model dir
// named with the id convention, the weights file, and the metadata sidecar.
func fakeDownloader(t *testing.T, mid, vid int, modelType string, exitCode int, stderr string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake downloader scripts are POSIX shell")
	}
	var script string
	if exitCode == 0 {
		name := fmt.Sprintf("model-mid_%d-vid_%d", mid, vid)
		script = fmt.Sprintf(`#!/bin/sh
out="$2"
mkdir -p "$out/%[1]s/extra_data-vid_%[2]d"
echo weights > "$out/%[1]s/%[1]s.safetensors"
printf '{"type":"%[3]s"}' > "$out/%[1]s/extra_data-vid_%[2]d/model_dict-mid_%[4]d-vid_%[2]d.json"
exit 0
`, name, vid, modelType, mid)
	} else {
		script = fmt.Sprintf("#!/bin/sh\necho %q >&2\nexit %d\n", stderr, exitCode)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "civitdl")
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake downloader: %v", err)
	}
	return p
}

// fakeCivitaiAPI serves /models/{id} metadata for one model.
func fakeCivitaiAPI(t *testing.T, model civitai.Model) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != fmt.Sprintf("/models/%d", model.ID) {
			http.Error(w, `{"error":"Model not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newServer wires the full stack onto a temp model root.
func newServer(t *testing.T, bin string, api *httptest.Server) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	cat, err := catalog.New(root)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	client := civitai.NewClientWithBaseURL(api.URL, "")
	dl := downloader.New(bin, "", 0, zerolog.Nop())
	mgr := manager.New(cat, client, dl, zerolog.Nop())
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return srv, root
}

func httpDo(t *testing.T, method, url string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b
}
