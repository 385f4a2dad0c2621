package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	ModelRootPath   string `json:"model_root_path" yaml:"model_root_path" toml:"model_root_path"`
	CivitaiToken    string `json:"civitai_token" yaml:"civitai_token" toml:"civitai_token"`
	DownloaderBin   string `json:"downloader_bin" yaml:"downloader_bin" toml:"downloader_bin"`
	DownloadTimeout string `json:"download_timeout" yaml:"download_timeout" toml:"download_timeout"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`

	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// FromEnv builds a Config from the process environment. CIVITAI_TOKEN and
// MODEL_ROOT_PATH are the documented variables; the rest are service knobs.
func FromEnv() Config {
	return Config{
		Addr:            os.Getenv("CIVITAID_ADDR"),
		ModelRootPath:   os.Getenv("MODEL_ROOT_PATH"),
		CivitaiToken:    os.Getenv("CIVITAI_TOKEN"),
		DownloaderBin:   os.Getenv("CIVITAID_DOWNLOADER_BIN"),
		DownloadTimeout: os.Getenv("CIVITAID_DOWNLOAD_TIMEOUT"),
		LogLevel:        os.Getenv("CIVITAID_LOG_LEVEL"),
	}
}

// Merge overlays o onto c: any non-zero field of o wins.
func (c Config) Merge(o Config) Config {
	if o.Addr != "" {
		c.Addr = o.Addr
	}
	if o.ModelRootPath != "" {
		c.ModelRootPath = o.ModelRootPath
	}
	if o.CivitaiToken != "" {
		c.CivitaiToken = o.CivitaiToken
	}
	if o.DownloaderBin != "" {
		c.DownloaderBin = o.DownloaderBin
	}
	if o.DownloadTimeout != "" {
		c.DownloadTimeout = o.DownloadTimeout
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.CORSEnabled {
		c.CORSEnabled = true
	}
	if len(o.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = o.CORSAllowedOrigins
	}
	if len(o.CORSAllowedMethods) > 0 {
		c.CORSAllowedMethods = o.CORSAllowedMethods
	}
	if len(o.CORSAllowedHeaders) > 0 {
		c.CORSAllowedHeaders = o.CORSAllowedHeaders
	}
	return c
}

// Timeout parses DownloadTimeout ("10m", "300s"); zero when unset or invalid.
func (c Config) Timeout() time.Duration {
	if c.DownloadTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.DownloadTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}
