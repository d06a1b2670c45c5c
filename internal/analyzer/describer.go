package analyzer

import (
	"context"

	"github.com/glimpser/glimpser-go/internal/model"
)

// FrameDescriber produces a natural-language description of a frame,
// backed by an external AI service. Implementations own their own HTTP
// client, credentials, and rate limiting.
type FrameDescriber interface {
	Describe(ctx context.Context, sourceID string, jpegData []byte) (description string, confidence float64, err error)
}

// AIDescriptionProcessor wraps a FrameDescriber as an analyzer Processor,
// only running when an earlier processor in the chain (typically motion)
// has already flagged the frame as interesting.
type AIDescriptionProcessor struct {
	describer  FrameDescriber
	gateOnType string // only run when `previous` contains an event of this type; empty runs unconditionally
}

// NewAIDescriptionProcessor builds a processor that calls describer,
// gated on a previous event of type gateOnType (pass "" to run on every
// frame).
func NewAIDescriptionProcessor(describer FrameDescriber, gateOnType string) *AIDescriptionProcessor {
	return &AIDescriptionProcessor{describer: describer, gateOnType: gateOnType}
}

func (p *AIDescriptionProcessor) Name() string { return "ai_description" }

func (p *AIDescriptionProcessor) Process(ctx context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
	if p.gateOnType != "" && !containsType(previous, p.gateOnType) {
		return nil, nil
	}
	if p.describer == nil {
		return nil, nil
	}

	description, confidence, err := p.describer.Describe(ctx, frame.SourceID, frame.Data)
	if err != nil {
		return nil, &ProcessorError{Processor: p.Name(), Message: "describe frame", Err: err}
	}
	if description == "" {
		return nil, nil
	}

	return &model.AnalysisEvent{
		SourceID:   frame.SourceID,
		Type:       "ai_description",
		Severity:   model.SeverityInfo,
		Confidence: confidence,
		Metadata:   map[string]string{"description": description},
		OccurredAt: frame.CapturedAt,
	}, nil
}

func containsType(events []*model.AnalysisEvent, t string) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}
