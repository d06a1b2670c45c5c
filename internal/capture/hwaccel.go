package capture

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// AccelDetector probes the local ffmpeg binary for supported hardware
// acceleration backends once per process and picks a platform-preferred
// default, falling back to software decoding when detection fails or
// finds nothing usable.
type AccelDetector struct {
	binary string

	once      sync.Once
	available map[model.AccelMode]bool
	preferred model.AccelMode
}

// NewAccelDetector builds a detector for the given ffmpeg-compatible
// binary (empty defaults to "ffmpeg").
func NewAccelDetector(binary string) *AccelDetector {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &AccelDetector{binary: binary}
}

func platformPreferenceOrder() []model.AccelMode {
	switch runtime.GOOS {
	case "darwin":
		return []model.AccelMode{model.AccelVideoToolbox}
	case "windows":
		return []model.AccelMode{model.AccelQSV, model.AccelCUDA}
	default:
		return []model.AccelMode{model.AccelCUDA, model.AccelQSV}
	}
}

func (d *AccelDetector) detect() {
	d.available = map[model.AccelMode]bool{model.AccelNone: true}
	d.preferred = model.AccelNone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, d.binary, "-hide_banner", "-hwaccels").CombinedOutput()
	if err != nil {
		return
	}
	listed := strings.ToLower(string(out))
	for _, mode := range []model.AccelMode{model.AccelCUDA, model.AccelQSV, model.AccelVideoToolbox} {
		if strings.Contains(listed, string(mode)) {
			d.available[mode] = true
		}
	}

	for _, candidate := range platformPreferenceOrder() {
		if d.available[candidate] {
			d.preferred = candidate
			return
		}
	}
}

// Resolve turns requested into a concrete, available acceleration mode.
// AccelAuto resolves to the platform-preferred detected mode; a specific
// request that isn't available falls back to AccelNone.
func (d *AccelDetector) Resolve(requested model.AccelMode) model.AccelMode {
	d.once.Do(d.detect)
	switch requested {
	case "", model.AccelAuto:
		return d.preferred
	case model.AccelNone:
		return model.AccelNone
	default:
		if d.available[requested] {
			return requested
		}
		return model.AccelNone
	}
}
