package manager

import (
	"fmt"

	"civitaid/internal/downloader"
)

// modelNotFoundError maps to 404: nothing on disk (or at Civitai) for the ids.
type modelNotFoundError struct {
	modelID   int
	versionID int
}

func (e modelNotFoundError) Error() string {
	switch {
	case e.modelID == 0:
		return "no model files found"
	case e.versionID > 0:
		return fmt.Sprintf("model %d version %d not found", e.modelID, e.versionID)
	default:
		return fmt.Sprintf("model %d not found", e.modelID)
	}
}

// ErrModelNotFound constructs a not-found error for the given ids.
func ErrModelNotFound(modelID, versionID int) error {
	return modelNotFoundError{modelID: modelID, versionID: versionID}
}

// IsModelNotFound reports whether err indicates missing model or version.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// alreadyDownloadedError maps to 304: the exact version already sits on disk.
type alreadyDownloadedError struct {
	modelID   int
	versionID int
}

func (e alreadyDownloadedError) Error() string {
	return fmt.Sprintf("model %d version %d already downloaded", e.modelID, e.versionID)
}

// ErrAlreadyDownloaded constructs an already-downloaded error for the ids.
func ErrAlreadyDownloaded(modelID, versionID int) error {
	return alreadyDownloadedError{modelID: modelID, versionID: versionID}
}

// IsAlreadyDownloaded reports whether err indicates the asset is present.
func IsAlreadyDownloaded(err error) bool {
	_, ok := err.(alreadyDownloadedError)
	return ok
}

// downloadFailedError maps to 502: the external tool (or the Civitai API it
// fronts) failed; our own process is healthy.
type downloadFailedError struct{ err error }

func (e downloadFailedError) Error() string { return "download failed: " + e.err.Error() }

func (e downloadFailedError) Unwrap() error { return e.err }

// IsDownloadFailed reports whether err indicates an external download failure.
func IsDownloadFailed(err error) bool {
	if _, ok := err.(downloadFailedError); ok {
		return true
	}
	return downloader.IsRunFailure(err)
}

// IsToolUnavailable reports whether the external downloader binary is missing,
// mapped to 503 so deployment problems are distinguishable from bad downloads.
func IsToolUnavailable(err error) bool {
	return downloader.IsToolUnavailable(err)
}
