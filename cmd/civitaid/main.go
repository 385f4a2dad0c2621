package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"civitaid/internal/catalog"
	"civitaid/internal/civitai"
	"civitaid/internal/config"
	"civitaid/internal/downloader"
	"civitaid/internal/httpapi"
	"civitaid/internal/manager"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address, e.g. :8080 (defaults CIVITAID_ADDR)")
	modelRoot := flag.String("model-root", "", "Base directory for model type subdirectories (defaults MODEL_ROOT_PATH)")
	downloaderBin := flag.String("downloader-bin", "", "External downloader binary (defaults civitdl)")
	downloadTimeout := flag.String("download-timeout", "", "Max duration for one download, e.g. 30m (0 disables)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error")
	configPath := flag.String("config", "", "Optional config file (.yaml/.json/.toml)")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	flag.Parse()

	// Precedence: explicit flags > config file > environment > built-in defaults.
	cfg := config.Config{
		Addr:          ":8080",
		ModelRootPath: "/data",
		DownloaderBin: "civitdl",
		LogLevel:      "info",
	}
	cfg = cfg.Merge(config.FromEnv())
	if *configPath != "" {
		fileCfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		cfg = cfg.Merge(fileCfg)
	}
	cfg = cfg.Merge(config.Config{
		Addr:            *addr,
		ModelRootPath:   *modelRoot,
		DownloaderBin:   *downloaderBin,
		DownloadTimeout: *downloadTimeout,
		LogLevel:        *logLevel,
	})
	if origins := splitCSV(*corsOrigins); len(origins) > 0 {
		cfg.CORSEnabled = true
		cfg.CORSAllowedOrigins = origins
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "civitaid").Logger()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}
	httpapi.SetLogger(logger)
	if cfg.CORSEnabled {
		methods := cfg.CORSAllowedMethods
		if len(methods) == 0 {
			methods = []string{"GET", "POST", "DELETE"}
		}
		httpapi.SetCORSOptions(true, cfg.CORSAllowedOrigins, methods, cfg.CORSAllowedHeaders)
	}

	cat, err := catalog.New(cfg.ModelRootPath)
	if err != nil {
		log.Fatalf("failed to resolve model root: %v", err)
	}
	client := civitai.NewClient(cfg.CivitaiToken)
	dl := downloader.New(cfg.DownloaderBin, cfg.CivitaiToken, cfg.Timeout(), logger)
	mgr := manager.New(cat, client, dl, logger)

	// Base context lets shutdown cancel in-flight downloads.
	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(mgr)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("model_root", cat.Root()).
			Str("downloader", cfg.DownloaderBin).Msg("civitaid listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// splitCSV splits a comma-separated flag value, trimming blanks.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
