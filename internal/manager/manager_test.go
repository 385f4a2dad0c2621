package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"civitaid/internal/catalog"
	"civitaid/internal/civitai"
	"civitaid/pkg/types"
)

type stubMeta struct {
	model civitai.Model
	err   error
	calls int
}

func (s *stubMeta) GetModel(ctx context.Context, modelID int) (civitai.Model, error) {
	s.calls++
	return s.model, s.err
}

// stubRunner plays the external tool: when wantMID/wantVID are set it drops a
// conventionally named file (plus sidecar) into outDir before returning.
type stubRunner struct {
	wantMID   int
	wantVID   int
	modelType string
	err       error
	calls     int
	lastSrc   string
	lastDir   string
}

func (s *stubRunner) Run(ctx context.Context, source, outDir string) (string, error) {
	s.calls++
	s.lastSrc = source
	s.lastDir = outDir
	if s.err != nil {
		return "job-1", s.err
	}
	if s.wantMID > 0 {
		name := fmt.Sprintf("model-mid_%d-vid_%d", s.wantMID, s.wantVID)
		dir := filepath.Join(outDir, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(dir, name+".safetensors"), []byte("w"), 0o644); err != nil {
			return "", err
		}
		if s.modelType != "" {
			extra := filepath.Join(dir, fmt.Sprintf("extra_data-vid_%d", s.wantVID))
			if err := os.MkdirAll(extra, 0o755); err != nil {
				return "", err
			}
			b, _ := json.Marshal(map[string]string{"type": s.modelType})
			sidecar := filepath.Join(extra, fmt.Sprintf("model_dict-mid_%d-vid_%d.json", s.wantMID, s.wantVID))
			if err := os.WriteFile(sidecar, b, 0o644); err != nil {
				return "", err
			}
		}
	}
	return "job-1", nil
}

func newManager(t *testing.T, meta MetadataClient, dl Runner) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	cat, err := catalog.New(root)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(cat, meta, dl, zerolog.Nop()), root
}

func TestDownloadLatest(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{
		ID: 546949, Type: "LORA",
		ModelVersions: []civitai.ModelVersion{{ID: 611080}, {ID: 600000}},
	}}
	run := &stubRunner{wantMID: 546949, wantVID: 611080, modelType: "LORA"}
	m, root := newManager(t, meta, run)

	rec, err := m.Download(context.Background(), 546949, 0)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if rec.ModelID != 546949 || rec.VersionID != 611080 || rec.ModelType != types.TypeLora {
		t.Fatalf("unexpected record: %+v", rec)
	}
	// Latest downloads pass the bare id and target the type subdirectory.
	if run.lastSrc != "546949" {
		t.Fatalf("source=%q", run.lastSrc)
	}
	if run.lastDir != filepath.Join(root, "Lora") {
		t.Fatalf("dir=%q", run.lastDir)
	}
	if _, err := os.Stat(filepath.Join(rec.ModelDir, rec.Filename)); err != nil {
		t.Fatalf("downloaded file should exist: %v", err)
	}
}

func TestDownloadExactVersion(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{
		ID: 1, Type: "Checkpoint",
		ModelVersions: []civitai.ModelVersion{{ID: 30}, {ID: 20}},
	}}
	run := &stubRunner{wantMID: 1, wantVID: 20, modelType: "Checkpoint"}
	m, root := newManager(t, meta, run)

	rec, err := m.Download(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if rec.VersionID != 20 || rec.ModelType != types.TypeCheckpoint {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if run.lastSrc != "civitai.com/models/1?modelVersionId=20" {
		t.Fatalf("source=%q", run.lastSrc)
	}
	if run.lastDir != filepath.Join(root, "Stable-diffusion") {
		t.Fatalf("dir=%q", run.lastDir)
	}
}

func TestDownloadAlreadyDownloaded(t *testing.T) {
	meta := &stubMeta{}
	run := &stubRunner{wantMID: 2, wantVID: 25, modelType: "LORA"}
	m, _ := newManager(t, meta, run)

	if _, err := m.Download(context.Background(), 2, 25); err != nil {
		t.Fatalf("first download: %v", err)
	}
	_, err := m.Download(context.Background(), 2, 25)
	if !IsAlreadyDownloaded(err) {
		t.Fatalf("expected already-downloaded, got %v", err)
	}
	// Neither the API nor the tool may be touched on the repeat.
	if meta.calls != 1 || run.calls != 1 {
		t.Fatalf("meta=%d run=%d calls after repeat", meta.calls, run.calls)
	}
}

func TestDownloadMetaNotFound(t *testing.T) {
	srvErr := notFoundFromAPI(t)
	meta := &stubMeta{err: srvErr}
	run := &stubRunner{}
	m, _ := newManager(t, meta, run)

	_, err := m.Download(context.Background(), 999999, 0)
	if !IsModelNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if run.calls != 0 {
		t.Fatalf("tool invoked despite missing model")
	}
}

// notFoundFromAPI obtains a genuine civitai 404 error via a stub server so the
// manager's classification is tested against the real error type.
func notFoundFromAPI(t *testing.T) error {
	t.Helper()
	srv := newNotFoundServer(t)
	c := civitai.NewClientWithBaseURL(srv, "")
	_, err := c.GetModel(context.Background(), 1)
	if err == nil {
		t.Fatalf("stub server should 404")
	}
	return err
}

func TestDownloadUnknownVersion(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{
		ID: 5, Type: "LORA", ModelVersions: []civitai.ModelVersion{{ID: 50}},
	}}
	run := &stubRunner{}
	m, _ := newManager(t, meta, run)

	_, err := m.Download(context.Background(), 5, 51)
	if !IsModelNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if run.calls != 0 {
		t.Fatalf("tool invoked for unknown version")
	}
}

func TestDownloadNoVersions(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{ID: 6, Type: "LORA"}}
	m, _ := newManager(t, meta, &stubRunner{})
	_, err := m.Download(context.Background(), 6, 0)
	if !IsModelNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDownloadToolFailure(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{
		ID: 7, Type: "LORA", ModelVersions: []civitai.ModelVersion{{ID: 70}},
	}}
	run := &stubRunner{err: errors.New("exit status 3")}
	m, _ := newManager(t, meta, run)

	_, err := m.Download(context.Background(), 7, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if IsModelNotFound(err) || IsAlreadyDownloaded(err) {
		t.Fatalf("misclassified: %v", err)
	}
}

func TestDownloadScanMismatch(t *testing.T) {
	meta := &stubMeta{model: civitai.Model{
		ID: 8, Type: "LORA", ModelVersions: []civitai.ModelVersion{{ID: 80}},
	}}
	// Tool "succeeds" but writes nothing.
	run := &stubRunner{}
	m, _ := newManager(t, meta, run)

	_, err := m.Download(context.Background(), 8, 0)
	if !IsDownloadFailed(err) {
		t.Fatalf("expected download-failed, got %v", err)
	}
}

func TestListGetDelete(t *testing.T) {
	meta := &stubMeta{}
	run := &stubRunner{wantMID: 9, wantVID: 90, modelType: "VAE"}
	m, _ := newManager(t, meta, run)
	if _, err := m.Download(context.Background(), 9, 90); err != nil {
		t.Fatalf("seed download: %v", err)
	}

	all, err := m.ListModels()
	if err != nil || len(all) != 1 {
		t.Fatalf("list: %v %+v", err, all)
	}
	got, err := m.GetModel(9)
	if err != nil || len(got) != 1 || got[0].ModelType != types.TypeVAE {
		t.Fatalf("get: %v %+v", err, got)
	}
	one, err := m.GetVersion(9, 90)
	if err != nil || one.VersionID != 90 {
		t.Fatalf("get version: %v %+v", err, one)
	}
	if _, err := m.GetModel(10); !IsModelNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if _, err := m.GetVersion(9, 91); !IsModelNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	rec, err := m.DeleteVersion(9, 90)
	if err != nil || rec.VersionID != 90 {
		t.Fatalf("delete version: %v %+v", err, rec)
	}
	if _, err := m.DeleteVersion(9, 90); !IsModelNotFound(err) {
		t.Fatalf("second delete should 404: %v", err)
	}
	if _, err := m.DeleteModel(9); !IsModelNotFound(err) {
		t.Fatalf("delete model of nothing should 404: %v", err)
	}
	if _, err := m.DeleteAll(); !IsModelNotFound(err) {
		t.Fatalf("delete all of nothing should 404: %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	meta := &stubMeta{}
	m, _ := newManager(t, meta, &stubRunner{wantMID: 11, wantVID: 110, modelType: "LORA"})
	if _, err := m.Download(context.Background(), 11, 110); err != nil {
		t.Fatalf("seed: %v", err)
	}
	removed, err := m.DeleteAll()
	if err != nil || len(removed) != 1 {
		t.Fatalf("delete all: %v %+v", err, removed)
	}
	all, err := m.ListModels()
	if err != nil || len(all) != 0 {
		t.Fatalf("list after delete: %v %+v", err, all)
	}
}

func TestReady(t *testing.T) {
	m, _ := newManager(t, &stubMeta{}, &stubRunner{})
	if !m.Ready() {
		t.Fatalf("manager with temp root should be ready")
	}
	cat, err := catalog.New(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	m2 := New(cat, &stubMeta{}, &stubRunner{}, zerolog.Nop())
	if m2.Ready() {
		t.Fatalf("missing root should not be ready")
	}
}
