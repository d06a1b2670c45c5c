package capture

import (
	"strings"
	"testing"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestQualityScale(t *testing.T) {
	cases := []struct {
		quality int
		want    int
	}{
		{100, 2},
		{1, 32},
		{50, 17},
		{0, 32},
		{200, 2},
	}
	for _, c := range cases {
		if got := qualityScale(c.quality); got != c.want {
			t.Errorf("qualityScale(%d) = %d, want %d", c.quality, got, c.want)
		}
	}
}

func TestBuildArgsRTSPTransportTCP(t *testing.T) {
	cfg := model.SourceConfig{
		URL:           "rtsp://camera.local/stream",
		FrameRate:     15,
		Quality:       80,
		RTSPTransport: model.RTSPTransportTCP,
		TimeoutMs:     5000,
	}
	args := buildArgs(cfg)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-rtsp_transport tcp") {
		t.Errorf("expected explicit tcp transport, got: %s", joined)
	}
	if !strings.Contains(joined, "-timeout 5000000") {
		t.Errorf("expected microsecond timeout, got: %s", joined)
	}
	if !strings.Contains(joined, "pipe:1") {
		t.Errorf("expected stdout pipe output, got: %s", joined)
	}
}

func TestBuildArgsNonRTSPSkipsTransportFlags(t *testing.T) {
	cfg := model.SourceConfig{URL: "http://camera.local/snapshot.mjpeg", FrameRate: 10, Quality: 60}
	args := buildArgs(cfg)
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-rtsp_transport") {
		t.Errorf("non-rtsp source should not set rtsp_transport: %s", joined)
	}
}

func TestBuildArgsScaling(t *testing.T) {
	cfg := model.SourceConfig{URL: "rtsp://x/y", FrameRate: 10, Quality: 90, Width: 640, Height: 480}
	args := buildArgs(cfg)
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "scale=640:480:force_original_aspect_ratio=decrease") {
		t.Errorf("expected scale filter, got: %s", joined)
	}
}
