package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civitaid/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() ([]types.ModelRecord, error)
	GetModel(modelID int) ([]types.ModelRecord, error)
	GetVersion(modelID, versionID int) (types.ModelRecord, error)
	Download(ctx context.Context, modelID, versionID int) (types.ModelRecord, error)
	DeleteModel(modelID int) ([]types.ModelRecord, error)
	DeleteVersion(modelID, versionID int) (types.ModelRecord, error)
	DeleteAll() ([]types.ModelRecord, error)
	Ready() bool
}

type server struct {
	svc Service
}

// NewMux builds the router with all model routes plus health, readiness,
// metrics and (tag-gated) swagger endpoints.
func NewMux(svc Service) http.Handler {
	s := &server{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Delete("/", s.handleDeleteAll)
		r.Route("/{model_id}", func(r chi.Router) {
			r.Get("/", s.handleGetModel)
			r.Post("/", s.handleDownloadModel)
			r.Delete("/", s.handleDeleteModel)
			r.Route("/versions/{version_id}", func(r chi.Router) {
				r.Get("/", s.handleGetVersion)
				r.Post("/", s.handleDownloadVersion)
				r.Delete("/", s.handleDeleteVersion)
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model root unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// pathID parses a positive integer path parameter. ok=false means the 400 has
// already been written; nothing downstream (manager, external tool) runs.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid "+name+": must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

// respondError maps service errors to status codes. 304 responses carry no
// body per RFC 9110.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if zlog != nil && requestLogLevel(r) >= LevelError {
		z := zlog.Error().Int("status", status).Str("path", r.URL.Path)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Err(err).Msg("request failed")
	}
	if status == http.StatusNotModified {
		w.WriteHeader(status)
		return
	}
	writeJSONError(w, status, err.Error())
}

// handleListModels godoc
// @Summary      List all saved models
// @Description  Scans the model root and returns every model version on disk.
// @Tags         models
// @Produce      json
// @Success      200 {array} types.ModelRecord
// @Failure      500 {object} types.ErrorResponse
// @Router       /models/ [get]
func (s *server) handleListModels(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.ListModels()
	if err != nil {
		respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []types.ModelRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleGetModel godoc
// @Summary      Get saved versions of a model
// @Tags         models
// @Produce      json
// @Param        model_id path int true "Civitai model id"
// @Success      200 {array} types.ModelRecord
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /models/{model_id} [get]
func (s *server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	recs, err := s.svc.GetModel(modelID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleGetVersion godoc
// @Summary      Get one saved model version
// @Tags         versions
// @Produce      json
// @Param        model_id   path int true "Civitai model id"
// @Param        version_id path int true "Civitai version id"
// @Success      200 {object} types.ModelRecord
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /models/{model_id}/versions/{version_id} [get]
func (s *server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	versionID, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	rec, err := s.svc.GetVersion(modelID, versionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDownloadModel godoc
// @Summary      Download the latest version of a model
// @Description  Invokes the external downloader and returns the resulting record.
// @Tags         models
// @Produce      json
// @Param        model_id path int true "Civitai model id"
// @Success      200 {object} types.ModelRecord
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      502 {object} types.ErrorResponse
// @Router       /models/{model_id} [post]
func (s *server) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	s.download(w, r, modelID, 0)
}

// handleDownloadVersion godoc
// @Summary      Download an exact model version
// @Tags         versions
// @Produce      json
// @Param        model_id   path int true "Civitai model id"
// @Param        version_id path int true "Civitai version id"
// @Success      200 {object} types.ModelRecord
// @Failure      304 "already downloaded"
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Failure      502 {object} types.ErrorResponse
// @Router       /models/{model_id}/versions/{version_id} [post]
func (s *server) handleDownloadVersion(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	versionID, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	s.download(w, r, modelID, versionID)
}

func (s *server) download(w http.ResponseWriter, r *http.Request, modelID, versionID int) {
	lvl := requestLogLevel(r)
	if zlog != nil && lvl >= LevelInfo {
		z := zlog.Info().Int("model_id", modelID).Int("version_id", versionID)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("download start")
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	start := time.Now()
	rec, err := s.svc.Download(ctx, modelID, versionID)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		observeDownload("error", time.Since(start))
		respondError(w, r, err)
		return
	}
	observeDownload("success", time.Since(start))
	if zlog != nil && lvl >= LevelInfo {
		z := zlog.Info().Int("model_id", rec.ModelID).Int("version_id", rec.VersionID).
			Str("file", rec.Filename).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("download end")
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteModel godoc
// @Summary      Delete all saved versions of a model
// @Tags         models
// @Produce      json
// @Param        model_id path int true "Civitai model id"
// @Success      200 {array} types.ModelRecord
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /models/{model_id} [delete]
func (s *server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	recs, err := s.svc.DeleteModel(modelID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleDeleteVersion godoc
// @Summary      Delete one saved model version
// @Tags         versions
// @Produce      json
// @Param        model_id   path int true "Civitai model id"
// @Param        version_id path int true "Civitai version id"
// @Success      200 {object} types.ModelRecord
// @Failure      400 {object} types.ErrorResponse
// @Failure      404 {object} types.ErrorResponse
// @Router       /models/{model_id}/versions/{version_id} [delete]
func (s *server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	modelID, ok := pathID(w, r, "model_id")
	if !ok {
		return
	}
	versionID, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	rec, err := s.svc.DeleteVersion(modelID, versionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteAll godoc
// @Summary      Delete every saved model
// @Tags         models
// @Produce      json
// @Success      200 {array} types.ModelRecord
// @Failure      404 {object} types.ErrorResponse
// @Router       /models/ [delete]
func (s *server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.DeleteAll()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
