package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SummaryProcessor accumulates event counts per source over a rolling
// window and periodically emits an "activity_summary" event describing
// the window, rather than reacting to any single frame.
type SummaryProcessor struct {
	window time.Duration

	mu      sync.Mutex
	windows map[string]*sourceWindow
}

type sourceWindow struct {
	startedAt time.Time
	counts    map[string]int
}

// NewSummaryProcessor builds a processor summarizing activity over the
// given rolling window (e.g. one minute).
func NewSummaryProcessor(window time.Duration) *SummaryProcessor {
	if window <= 0 {
		window = time.Minute
	}
	return &SummaryProcessor{window: window, windows: make(map[string]*sourceWindow)}
}

func (p *SummaryProcessor) Name() string { return "activity_summary" }

func (p *SummaryProcessor) Process(_ context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.windows[frame.SourceID]
	if !ok {
		p.windows[frame.SourceID] = &sourceWindow{startedAt: frame.CapturedAt, counts: make(map[string]int)}
		for _, e := range previous {
			p.windows[frame.SourceID].counts[e.Type]++
		}
		return nil, nil
	}

	if frame.CapturedAt.Sub(w.startedAt) < p.window {
		for _, e := range previous {
			w.counts[e.Type]++
		}
		return nil, nil
	}

	total := 0
	for _, c := range w.counts {
		total += c
	}
	delete(p.windows, frame.SourceID)
	p.windows[frame.SourceID] = &sourceWindow{startedAt: frame.CapturedAt, counts: make(map[string]int)}
	for _, e := range previous {
		p.windows[frame.SourceID].counts[e.Type]++
	}

	if total == 0 {
		return nil, nil
	}

	metadata := make(map[string]string, len(w.counts))
	for t, c := range w.counts {
		metadata[t] = fmt.Sprintf("%d", c)
	}

	return &model.AnalysisEvent{
		SourceID:   frame.SourceID,
		Type:       "activity_summary",
		Severity:   model.SeverityInfo,
		Confidence: 1,
		Metadata:   metadata,
		OccurredAt: frame.CapturedAt,
	}, nil
}
