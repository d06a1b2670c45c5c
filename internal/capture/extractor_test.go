package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewExtractorFillsDefaults(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})
	if e.cfg.Binary != "yt-dlp" {
		t.Errorf("expected default binary yt-dlp, got %q", e.cfg.Binary)
	}
	if e.cfg.InfoTimeout != 30*time.Second {
		t.Errorf("expected default info timeout 30s, got %s", e.cfg.InfoTimeout)
	}
	if e.cfg.DownloadTimeout != 300*time.Second {
		t.Errorf("expected default download timeout 300s, got %s", e.cfg.DownloadTimeout)
	}
}

func TestNewExtractorKeepsExplicitValues(t *testing.T) {
	e := NewExtractor(ExtractorConfig{Binary: "custom-dlp", InfoTimeout: 5 * time.Second, DownloadTimeout: 10 * time.Second})
	if e.cfg.Binary != "custom-dlp" {
		t.Errorf("expected custom-dlp preserved, got %q", e.cfg.Binary)
	}
	if e.cfg.InfoTimeout != 5*time.Second || e.cfg.DownloadTimeout != 10*time.Second {
		t.Errorf("expected explicit timeouts preserved, got info=%s download=%s", e.cfg.InfoTimeout, e.cfg.DownloadTimeout)
	}
}

func TestFindDownloadedFileLocatesKnownExtension(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "glimpser-extract-123")
	if err := os.WriteFile(base+".webm", []byte("data"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	got, err := findDownloadedFile(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != base+".webm" {
		t.Errorf("expected %s, got %s", base+".webm", got)
	}
}

func TestFindDownloadedFileMissingReturnsError(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "glimpser-extract-missing")

	if _, err := findDownloadedFile(base); err == nil {
		t.Fatal("expected error when no matching extension exists")
	}
}

func TestResolveRejectsEmptyURL(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	if _, err := e.Resolve(nil, ""); err == nil { //nolint:staticcheck // nil ctx fine, call fails before any ctx use
		t.Fatal("expected error for empty source url")
	}
}
