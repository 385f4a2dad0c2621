package types

// ModelType classifies a downloaded asset by how the WebUI consumes it.
type ModelType string

const (
	TypeLora              ModelType = "lora"
	TypeLocon             ModelType = "locon"
	TypeDora              ModelType = "dora"
	TypeVAE               ModelType = "vae"
	TypeCheckpoint        ModelType = "checkpoint"
	TypeTextualInversion  ModelType = "textualinversion"
	// TypeUnknown is used when the metadata sidecar for a file is missing or unreadable.
	TypeUnknown ModelType = "unknown"
)

// ModelRecord describes one model version present under the model root.
// Records are derived from the filesystem on every request, never persisted.
type ModelRecord struct {
	// Civitai model identifier recovered from the filename.
	// example: 546949
	ModelID int `json:"model_id" example:"546949"`
	// Civitai version identifier recovered from the filename.
	// example: 611080
	VersionID int `json:"version_id" example:"611080"`
	// Directory holding the model file and its extra_data sidecar.
	// example: /data/Lora/detailer-mid_546949-vid_611080
	ModelDir string `json:"model_dir" example:"/data/Lora/detailer-mid_546949-vid_611080"`
	// Model file name, ids encoded per the -mid_/-vid_ convention.
	// example: detailer-mid_546949-vid_611080.safetensors
	Filename string `json:"filename" example:"detailer-mid_546949-vid_611080.safetensors"`
	// Asset classification read from the metadata sidecar.
	// example: lora
	ModelType ModelType `json:"model_type" example:"lora"`
}
