package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodel_root_path: /data\ncivitai_token: tok\ndownloader_bin: /usr/local/bin/civitdl\ndownload_timeout: 10m\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelRootPath != "/data" || cfg.CivitaiToken != "tok" || cfg.DownloaderBin != "/usr/local/bin/civitdl" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Timeout() != 10*time.Minute {
		t.Fatalf("timeout=%v", cfg.Timeout())
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","model_root_path":"/m","downloader_bin":"civitdl","log_level":"debug"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelRootPath != "/m" || cfg.DownloaderBin != "civitdl" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodel_root_path=\"/x\"\ncors_enabled=true\ncors_allowed_origins=[\"https://a\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelRootPath != "/x" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("cors not parsed: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	if _, err := Load(filepath.Join(d, "missing.yaml")); err == nil {
		t.Fatalf("expected error on missing file")
	}
	p := writeTempFile(t, d, "cfg.ini", "addr=:1")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error on unsupported extension")
	}
	bad := writeTempFile(t, d, "bad.json", "{")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected error on malformed json")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CIVITAI_TOKEN", "secret")
	t.Setenv("MODEL_ROOT_PATH", "/env-root")
	t.Setenv("CIVITAID_ADDR", ":7777")
	cfg := FromEnv()
	if cfg.CivitaiToken != "secret" || cfg.ModelRootPath != "/env-root" || cfg.Addr != ":7777" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestMergePrecedence(t *testing.T) {
	base := Config{Addr: ":8080", ModelRootPath: "/data", DownloaderBin: "civitdl"}
	over := Config{Addr: ":9090", CivitaiToken: "tok"}
	got := base.Merge(over)
	if got.Addr != ":9090" {
		t.Fatalf("overlay addr should win: %+v", got)
	}
	if got.ModelRootPath != "/data" || got.DownloaderBin != "civitdl" {
		t.Fatalf("base fields should survive: %+v", got)
	}
	if got.CivitaiToken != "tok" {
		t.Fatalf("overlay token should apply: %+v", got)
	}
}

func TestTimeoutInvalid(t *testing.T) {
	if (Config{DownloadTimeout: "nope"}).Timeout() != 0 {
		t.Fatalf("invalid duration should yield zero")
	}
	if (Config{DownloadTimeout: "-5s"}).Timeout() != 0 {
		t.Fatalf("negative duration should yield zero")
	}
	if (Config{}).Timeout() != 0 {
		t.Fatalf("unset duration should yield zero")
	}
}
