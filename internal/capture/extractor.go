package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExtractorMode reports how an Extractor resolved a source URL.
type ExtractorMode string

const (
	// ExtractorModeLive means the resolved input is a direct-play URL fed
	// straight to the media processor; nothing on disk needs cleanup.
	ExtractorModeLive ExtractorMode = "live"
	// ExtractorModeSnapshot means the resolved input is a downloaded
	// temp file; Cleanup must be called once the caller is done with it.
	ExtractorModeSnapshot ExtractorMode = "snapshot"
)

// ResolvedSource is the outcome of resolving an extractor URL: either a
// direct-play input for live capture, or a path to a fully downloaded
// file for snapshot extraction.
type ResolvedSource struct {
	Mode    ExtractorMode
	Input   string
	Cleanup func()
}

// ExtractorConfig configures the extractor subprocess.
type ExtractorConfig struct {
	Binary          string        // defaults to "yt-dlp"
	InfoTimeout     time.Duration // timeout for the --get-url/info probe
	DownloadTimeout time.Duration // timeout for a full VOD download
}

// DefaultExtractorConfig returns sane defaults matching the original
// extractor's own timeouts (30s for URL resolution, 300s for a download).
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Binary:          "yt-dlp",
		InfoTimeout:     30 * time.Second,
		DownloadTimeout: 300 * time.Second,
	}
}

// Extractor fetches a direct-play URL or a downloaded video file for
// sources the media processor cannot read directly (e.g. platform share
// links), per the "Extractor subprocess" external interface: a second
// external utility fetches a direct-play URL or downloads a complete
// video file to a temp path, and the core either uses the direct URL as
// input to the media processor (live mode) or takes a snapshot from the
// downloaded file.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor builds an Extractor from cfg, filling in defaults for any
// zero-valued field.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	d := DefaultExtractorConfig()
	if cfg.Binary == "" {
		cfg.Binary = d.Binary
	}
	if cfg.InfoTimeout == 0 {
		cfg.InfoTimeout = d.InfoTimeout
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = d.DownloadTimeout
	}
	return &Extractor{cfg: cfg}
}

// Resolve determines whether sourceURL is a live stream or a VOD asset
// and resolves it accordingly. Live streams resolve to a direct-play URL
// (no cleanup needed); VOD assets are downloaded in full to a temp file,
// whose path is returned along with a Cleanup that removes it.
func (e *Extractor) Resolve(ctx context.Context, sourceURL string) (ResolvedSource, error) {
	if sourceURL == "" {
		return ResolvedSource{}, fmt.Errorf("extractor: source url cannot be empty")
	}

	live, err := e.isLive(ctx, sourceURL)
	if err != nil {
		return ResolvedSource{}, fmt.Errorf("extractor: probe failed: %w", err)
	}

	if live {
		directURL, err := e.directURL(ctx, sourceURL)
		if err != nil {
			return ResolvedSource{}, fmt.Errorf("extractor: resolve live url: %w", err)
		}
		return ResolvedSource{Mode: ExtractorModeLive, Input: directURL, Cleanup: func() {}}, nil
	}

	path, err := e.download(ctx, sourceURL)
	if err != nil {
		return ResolvedSource{}, fmt.Errorf("extractor: download failed: %w", err)
	}
	return ResolvedSource{
		Mode:    ExtractorModeSnapshot,
		Input:   path,
		Cleanup: func() { _ = os.Remove(path) },
	}, nil
}

// isLive probes sourceURL's is_live flag via the extractor's info print
// mode, same fields the original VOD/live branch inspected.
func (e *Extractor) isLive(ctx context.Context, sourceURL string) (bool, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.InfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.Binary, "--no-playlist", "--print", "%(is_live)s", sourceURL)
	out, err := cmd.Output()
	if err != nil {
		return false, err
	}
	live, _ := strconv.ParseBool(strings.TrimSpace(string(out)))
	return live, nil
}

// directURL resolves sourceURL to a direct-play URL the media processor
// can read as input, via --get-url.
func (e *Extractor) directURL(ctx context.Context, sourceURL string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.InfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.cfg.Binary, "--get-url", "--format", "best", sourceURL)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	direct := strings.TrimSpace(string(out))
	if direct == "" {
		return "", fmt.Errorf("extractor returned an empty direct-play url")
	}
	return direct, nil
}

// download fetches sourceURL in full to a temp file and returns its path.
// The extractor resolves the actual extension itself, so the output
// template's extension placeholder is expanded afterward by scanning for
// common video container extensions.
func (e *Extractor) download(ctx context.Context, sourceURL string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.DownloadTimeout)
	defer cancel()

	base := filepath.Join(os.TempDir(), fmt.Sprintf("glimpser-extract-%d", time.Now().UnixNano()))
	template := base + ".%(ext)s"

	cmd := exec.CommandContext(runCtx, e.cfg.Binary, "--no-playlist", "--output", template, sourceURL)
	if err := cmd.Run(); err != nil {
		return "", err
	}

	return findDownloadedFile(base)
}

// videoExtensions lists the containers checked for in findDownloadedFile,
// in the same order the original extractor's own scan used.
var videoExtensions = []string{"mp4", "mkv", "webm", "m4v", "mov", "avi", "flv"}

// findDownloadedFile resolves the extractor's "%(ext)s" output template by
// scanning for the extension it actually chose, since the extractor picks
// the container and the caller has no way to know it in advance.
func findDownloadedFile(base string) (string, error) {
	for _, ext := range videoExtensions {
		candidate := base + "." + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find downloaded file for base path %s", base)
}
