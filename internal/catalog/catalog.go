// Package catalog derives model records from the files under the model root.
// Nothing here is persisted: every call re-walks the directory tree, so the
// catalog is always exactly what is on disk.
package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"civitaid/internal/common/fsutil"
	"civitaid/pkg/types"
)

// Downloaded model files encode their ids in the filename; this is the only
// durable mapping between disk state and Civitai identifiers.
var filePattern = regexp.MustCompile(`.*-mid_(\d+)(?:-vid_(\d+))?.*\.(safetensors|ckpt|pt)$`)

// Catalog scans and mutates the model root directory.
type Catalog struct {
	root string
}

// New resolves root (including a leading '~') and returns a Catalog for it.
func New(root string) (*Catalog, error) {
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Catalog{root: abs}, nil
}

// Root returns the absolute model root path.
func (c *Catalog) Root() string { return c.root }

// TypeDir maps a model type to its subdirectory under the model root.
// Unknown types land directly in the root.
func (c *Catalog) TypeDir(t types.ModelType) string {
	switch t {
	case types.TypeLora, types.TypeLocon, types.TypeDora:
		return filepath.Join(c.root, "Lora")
	case types.TypeVAE:
		return filepath.Join(c.root, "VAE")
	case types.TypeCheckpoint:
		return filepath.Join(c.root, "Stable-diffusion")
	case types.TypeTextualInversion:
		return filepath.Join(c.root, "text_encoder")
	default:
		return c.root
	}
}

// Find walks the model root and returns records matching the given ids.
// modelID/versionID of 0 mean "any". Results are ordered by (model_id,
// version_id) so listings are deterministic.
func (c *Catalog) Find(modelID, versionID int) ([]types.ModelRecord, error) {
	var out []types.ModelRecord
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root itself must be readable; unreadable subtrees are skipped.
			if path == c.root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			// In-progress downloads live under .tmp directories.
			if strings.Contains(path, ".tmp") {
				return fs.SkipDir
			}
			return nil
		}
		m := filePattern.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		mid, _ := strconv.Atoi(m[1])
		vid := 0
		if m[2] != "" {
			vid, _ = strconv.Atoi(m[2])
		}
		if modelID != 0 && modelID != mid {
			return nil
		}
		if versionID != 0 && versionID != vid {
			return nil
		}
		dir := filepath.Dir(path)
		out = append(out, types.ModelRecord{
			ModelID:   mid,
			VersionID: vid,
			ModelDir:  dir,
			Filename:  d.Name(),
			ModelType: readModelType(dir, mid, vid),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.root, err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelID != out[j].ModelID {
			return out[i].ModelID < out[j].ModelID
		}
		return out[i].VersionID < out[j].VersionID
	})
	return out, nil
}

// Delete removes the directory trees of all records matching the ids and
// returns what was removed. An empty result means nothing matched.
func (c *Catalog) Delete(modelID, versionID int) ([]types.ModelRecord, error) {
	records, err := c.Find(modelID, versionID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		// Refuse to remove the root even if a file sits directly in it.
		if rec.ModelDir == c.root {
			if err := os.Remove(filepath.Join(rec.ModelDir, rec.Filename)); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("delete %s: %w", rec.Filename, err)
			}
			continue
		}
		if err := os.RemoveAll(rec.ModelDir); err != nil {
			return nil, fmt.Errorf("delete %s: %w", rec.ModelDir, err)
		}
	}
	return records, nil
}

// readModelType recovers the asset type from the metadata sidecar written by
// the downloader, e.g. extra_data-vid_611080/model_dict-mid_546949-vid_611080.json.
func readModelType(dir string, mid, vid int) types.ModelType {
	sidecar := filepath.Join(dir,
		fmt.Sprintf("extra_data-vid_%d", vid),
		fmt.Sprintf("model_dict-mid_%d-vid_%d.json", mid, vid))
	b, err := os.ReadFile(sidecar)
	if err != nil {
		return types.TypeUnknown
	}
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &meta); err != nil || meta.Type == "" {
		return types.TypeUnknown
	}
	return types.ModelType(strings.ToLower(meta.Type))
}
