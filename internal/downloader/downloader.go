// Package downloader shells out to the external civitdl CLI. All of the hard
// work (resolution, auth, retries, writing files) happens inside the tool;
// this package only builds the invocation and reports how it went.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const stderrTailBytes = 4096

// Downloader invokes the external CLI tool.
type Downloader struct {
	bin     string
	token   string
	timeout time.Duration
	log     zerolog.Logger
}

// New constructs a Downloader. bin defaults to "civitdl" when empty; timeout
// of zero means no deadline beyond the caller's context.
func New(bin, token string, timeout time.Duration, log zerolog.Logger) *Downloader {
	if strings.TrimSpace(bin) == "" {
		bin = "civitdl"
	}
	return &Downloader{bin: bin, token: token, timeout: timeout, log: log}
}

// Source builds the argument the tool resolves to an artifact. An exact
// version pins via the modelVersionId query; otherwise the bare model id
// downloads the latest version.
func Source(modelID, versionID int) string {
	if versionID > 0 {
		return fmt.Sprintf("civitai.com/models/%d?modelVersionId=%d", modelID, versionID)
	}
	return fmt.Sprintf("%d", modelID)
}

type runError struct {
	source string
	err    error
	tail   string
}

func (e runError) Error() string {
	if e.tail == "" {
		return fmt.Sprintf("downloader failed for %s: %v", e.source, e.err)
	}
	return fmt.Sprintf("downloader failed for %s: %v; stderr tail: %s", e.source, e.err, e.tail)
}

func (e runError) Unwrap() error { return e.err }

// IsRunFailure reports whether err came from a failed tool invocation.
func IsRunFailure(err error) bool {
	_, ok := err.(runError)
	return ok
}

type toolUnavailableError struct{ bin string }

func (e toolUnavailableError) Error() string {
	return "downloader tool not found: " + e.bin
}

// IsToolUnavailable reports whether the external binary could not be located.
func IsToolUnavailable(err error) bool {
	_, ok := err.(toolUnavailableError)
	return ok
}

// Run downloads source into outDir and blocks until the tool exits. The
// returned job id ties log lines of one invocation together.
func (d *Downloader) Run(ctx context.Context, source, outDir string) (string, error) {
	jobID := uuid.NewString()
	if _, err := exec.LookPath(d.bin); err != nil {
		return jobID, toolUnavailableError{bin: d.bin}
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := []string{source, outDir}
	if d.token != "" {
		args = append(args, "--api-key", d.token)
	}
	cmd := exec.CommandContext(ctx, d.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.log.Info().Str("job_id", jobID).Str("source", source).Str("dir", outDir).Msg("download start")
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		tail := stderr.String()
		if len(tail) > stderrTailBytes {
			tail = tail[len(tail)-stderrTailBytes:]
		}
		tail = strings.TrimSpace(tail)
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		d.log.Error().Str("job_id", jobID).Dur("dur", time.Since(start)).Err(err).Msg("download failed")
		return jobID, runError{source: source, err: err, tail: tail}
	}
	d.log.Info().Str("job_id", jobID).Dur("dur", time.Since(start)).Msg("download done")
	return jobID, nil
}
