package capture

import (
	"strconv"
	"strings"

	"github.com/glimpser/glimpser-go/internal/model"
)

// qualityScale maps a 1-100 perceptual quality value onto ffmpeg's -q:v
// MJPEG scale, where lower is better. 100 -> 2 (best), 1 -> ~32 (worst).
func qualityScale(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return (31*(100-quality))/100 + 2
}

// buildArgs constructs the ffmpeg argv for a continuous MJPEG capture of
// cfg, writing frames to stdout.
func buildArgs(cfg model.SourceConfig) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch cfg.Accel {
	case model.AccelCUDA:
		args = append(args, "-hwaccel", "cuda")
	case model.AccelQSV:
		args = append(args, "-hwaccel", "qsv")
	case model.AccelVideoToolbox:
		args = append(args, "-hwaccel", "videotoolbox")
	case model.AccelNone, model.AccelAuto, "":
		// resolved by the hardware accel detector before reaching here
	}

	isRTSP := strings.HasPrefix(cfg.URL, "rtsp://") || strings.HasPrefix(cfg.URL, "rtsps://")

	for _, opt := range cfg.InputOptions {
		if opt == "" {
			continue
		}
		args = append(args, "-"+opt)
	}

	if cfg.TimeoutMs > 0 {
		micros := int64(cfg.TimeoutMs) * 1000
		args = append(args, "-timeout", strconv.FormatInt(micros, 10))
	}

	if isRTSP {
		switch cfg.RTSPTransport {
		case model.RTSPTransportTCP:
			args = append(args, "-rtsp_transport", "tcp", "-rtsp_flags", "prefer_tcp")
		case model.RTSPTransportUDP:
			args = append(args, "-rtsp_transport", "udp")
		default:
			args = append(args, "-rtsp_flags", "prefer_tcp")
		}
		args = append(args, "-fflags", "nobuffer", "-flags", "low_delay")
	}

	if cfg.BufferSizeBytes > 0 {
		args = append(args, "-buffer_size", strconv.Itoa(cfg.BufferSizeBytes))
	}

	args = append(args, "-i", cfg.URL)

	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = 10
	}
	args = append(args, "-f", "mjpeg", "-r", strconv.Itoa(frameRate))
	args = append(args, "-q:v", strconv.Itoa(qualityScale(cfg.Quality)))

	if cfg.Width > 0 && cfg.Height > 0 {
		scale := "scale=" + strconv.Itoa(cfg.Width) + ":" + strconv.Itoa(cfg.Height) + ":force_original_aspect_ratio=decrease"
		args = append(args, "-vf", scale)
	}

	args = append(args, "pipe:1")
	return args
}
