package analyzer

import (
	"context"
	"strconv"
	"sync"

	"github.com/glimpser/glimpser-go/internal/model"
)

// MotionConfig tunes the pixel-diff motion detector.
type MotionConfig struct {
	Threshold     float64 // fraction of sampled bytes that must differ to count as motion
	SampleStride  int     // only compare every Nth byte, to bound CPU cost
}

// DefaultMotionConfig returns the detector's default tuning.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{Threshold: 0.1, SampleStride: 8}
}

// MotionProcessor emits a "motion_detected" event when consecutive frames
// from the same source differ by more than Threshold, using a coarse
// byte-sampled diff rather than decoding JPEG pixels.
type MotionProcessor struct {
	cfg MotionConfig

	mu   sync.Mutex
	last map[string][]byte
}

// NewMotionProcessor builds a MotionProcessor with the given tuning.
func NewMotionProcessor(cfg MotionConfig) *MotionProcessor {
	if cfg.SampleStride <= 0 {
		cfg.SampleStride = 8
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.1
	}
	return &MotionProcessor{cfg: cfg, last: make(map[string][]byte)}
}

func (p *MotionProcessor) Name() string { return "motion" }

func (p *MotionProcessor) Process(_ context.Context, frame *model.Frame, _ []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
	sample := sampleBytes(frame.Data, p.cfg.SampleStride)

	p.mu.Lock()
	prev := p.last[frame.SourceID]
	p.last[frame.SourceID] = sample
	p.mu.Unlock()

	if prev == nil {
		return nil, nil
	}

	changed, total := diffCount(prev, sample)
	if total == 0 {
		return nil, nil
	}
	ratio := float64(changed) / float64(total)
	if ratio < p.cfg.Threshold {
		return nil, nil
	}

	return &model.AnalysisEvent{
		SourceID:   frame.SourceID,
		Type:       "motion_detected",
		Severity:   model.SeverityMedium,
		Confidence: ratio,
		Metadata: map[string]string{
			"changed_samples": strconv.Itoa(changed),
			"total_samples":   strconv.Itoa(total),
		},
		OccurredAt: frame.CapturedAt,
	}, nil
}

func sampleBytes(data []byte, stride int) []byte {
	n := (len(data) + stride - 1) / stride
	out := make([]byte, 0, n)
	for i := 0; i < len(data); i += stride {
		out = append(out, data[i])
	}
	return out
}

func diffCount(a, b []byte) (changed, total int) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			changed++
		}
	}
	return changed, n
}
