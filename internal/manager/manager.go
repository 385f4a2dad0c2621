// Package manager glues the catalog, the Civitai metadata client and the
// external downloader together behind the interface the HTTP layer consumes.
package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"civitaid/internal/catalog"
	"civitaid/internal/civitai"
	"civitaid/internal/common/fsutil"
	"civitaid/internal/downloader"
	"civitaid/pkg/types"
)

// MetadataClient resolves a model id to its type and version list.
type MetadataClient interface {
	GetModel(ctx context.Context, modelID int) (civitai.Model, error)
}

// Runner invokes the external downloader for one source into one directory.
type Runner interface {
	Run(ctx context.Context, source, outDir string) (string, error)
}

// Manager holds no mutable state of its own; every operation re-derives what
// it needs from disk or the Civitai API. Concurrent downloads of the same
// model are therefore not deduplicated, matching the wrapped tool's behavior.
type Manager struct {
	cat  *catalog.Catalog
	meta MetadataClient
	dl   Runner
	log  zerolog.Logger
}

// New constructs a Manager.
func New(cat *catalog.Catalog, meta MetadataClient, dl Runner, log zerolog.Logger) *Manager {
	return &Manager{cat: cat, meta: meta, dl: dl, log: log}
}

// Ready reports whether the model root is usable for downloads and scans.
func (m *Manager) Ready() bool {
	return fsutil.DirWritable(m.cat.Root())
}

// ListModels returns every model version under the root, ordered.
func (m *Manager) ListModels() ([]types.ModelRecord, error) {
	return m.cat.Find(0, 0)
}

// GetModel returns all on-disk versions of one model.
func (m *Manager) GetModel(modelID int) ([]types.ModelRecord, error) {
	recs, err := m.cat.Find(modelID, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrModelNotFound(modelID, 0)
	}
	return recs, nil
}

// GetVersion returns the single record for an exact model version.
func (m *Manager) GetVersion(modelID, versionID int) (types.ModelRecord, error) {
	recs, err := m.cat.Find(modelID, versionID)
	if err != nil {
		return types.ModelRecord{}, err
	}
	switch len(recs) {
	case 0:
		return types.ModelRecord{}, ErrModelNotFound(modelID, versionID)
	case 1:
		return recs[0], nil
	default:
		return types.ModelRecord{}, fmt.Errorf("multiple files for model %d version %d", modelID, versionID)
	}
}

// Download fetches a model via the external tool. versionID of 0 means the
// latest version as reported by the Civitai API.
func (m *Manager) Download(ctx context.Context, modelID, versionID int) (types.ModelRecord, error) {
	if versionID > 0 {
		existing, err := m.cat.Find(modelID, versionID)
		if err != nil {
			return types.ModelRecord{}, err
		}
		if len(existing) > 0 {
			return types.ModelRecord{}, alreadyDownloadedError{modelID: modelID, versionID: versionID}
		}
	}

	meta, err := m.meta.GetModel(ctx, modelID)
	if err != nil {
		if civitai.IsNotFound(err) {
			return types.ModelRecord{}, ErrModelNotFound(modelID, versionID)
		}
		if ctx.Err() != nil {
			return types.ModelRecord{}, ctx.Err()
		}
		return types.ModelRecord{}, downloadFailedError{err: err}
	}

	resolved := versionID
	if resolved == 0 {
		resolved = meta.LatestVersionID()
		if resolved == 0 {
			return types.ModelRecord{}, ErrModelNotFound(modelID, 0)
		}
	} else if len(meta.ModelVersions) > 0 && !meta.HasVersion(resolved) {
		return types.ModelRecord{}, ErrModelNotFound(modelID, resolved)
	}

	modelType := types.ModelType(strings.ToLower(meta.Type))
	outDir := m.cat.TypeDir(modelType)

	jobID, err := m.dl.Run(ctx, downloader.Source(modelID, versionID), outDir)
	if err != nil {
		return types.ModelRecord{}, err
	}

	recs, err := m.cat.Find(modelID, resolved)
	if err != nil {
		return types.ModelRecord{}, err
	}
	if len(recs) != 1 {
		m.log.Error().Str("job_id", jobID).Int("model_id", modelID).Int("version_id", resolved).
			Int("matches", len(recs)).Msg("post-download scan mismatch")
		return types.ModelRecord{}, downloadFailedError{
			err: fmt.Errorf("tool finished but %d files match model %d version %d", len(recs), modelID, resolved),
		}
	}
	m.log.Info().Str("job_id", jobID).Int("model_id", modelID).Int("version_id", resolved).
		Str("file", recs[0].Filename).Msg("download complete")
	return recs[0], nil
}

// DeleteModel removes every on-disk version of a model.
func (m *Manager) DeleteModel(modelID int) ([]types.ModelRecord, error) {
	recs, err := m.cat.Delete(modelID, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrModelNotFound(modelID, 0)
	}
	return recs, nil
}

// DeleteVersion removes one exact model version.
func (m *Manager) DeleteVersion(modelID, versionID int) (types.ModelRecord, error) {
	recs, err := m.cat.Delete(modelID, versionID)
	if err != nil {
		return types.ModelRecord{}, err
	}
	switch len(recs) {
	case 0:
		return types.ModelRecord{}, ErrModelNotFound(modelID, versionID)
	case 1:
		return recs[0], nil
	default:
		return types.ModelRecord{}, fmt.Errorf("multiple files deleted for model %d version %d", modelID, versionID)
	}
}

// DeleteAll removes everything under the root.
func (m *Manager) DeleteAll() ([]types.ModelRecord, error) {
	recs, err := m.cat.Delete(0, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrModelNotFound(0, 0)
	}
	return recs, nil
}
