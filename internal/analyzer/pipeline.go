package analyzer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/glimpser/glimpser-go/internal/model"
)

// Pipeline runs a registry's processors, in registration-sorted order,
// over each frame it is given, chaining each processor's output into the
// next's "previous events" input.
type Pipeline struct {
	registry *Registry
	order    []string
}

// NewPipeline builds a Pipeline that runs the named processors, in the
// given order, from registry. A nil/empty order runs every registered
// processor in sorted-name order.
func NewPipeline(registry *Registry, order []string) *Pipeline {
	if len(order) == 0 {
		order = registry.List()
	}
	return &Pipeline{registry: registry, order: order}
}

// Run processes frame through every configured processor, returning the
// events produced (in processor order). A processor error is logged and
// skipped; it does not stop the remaining pipeline.
func (p *Pipeline) Run(ctx context.Context, frame *model.Frame) []*model.AnalysisEvent {
	var events []*model.AnalysisEvent
	for _, name := range p.order {
		proc, ok := p.registry.Get(name)
		if !ok {
			continue
		}
		event, err := proc.Process(ctx, frame, events)
		if err != nil {
			slog.Warn("analyzer processor failed", "processor", name, "source_id", frame.SourceID, "error", err)
			continue
		}
		if event == nil {
			continue
		}
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if len(events) > 0 {
			event.PreviousEventID = events[len(events)-1].ID
		}
		events = append(events, event)
	}
	return events
}
