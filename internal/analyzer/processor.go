// Package analyzer runs a pluggable pipeline of frame processors (motion
// detection, AI description, activity summary) over captured frames,
// producing chained analysis events.
package analyzer

import (
	"context"
	"fmt"

	"github.com/glimpser/glimpser-go/internal/model"
)

// Processor inspects a frame (with the chain of events produced by
// earlier processors in the same pipeline run) and optionally emits an
// AnalysisEvent.
type Processor interface {
	// Name returns the processor's stable registration name (e.g.
	// "motion", "ai_description", "activity_summary").
	Name() string

	// Process inspects frame and the events already produced this run,
	// returning a new event or nil if nothing is worth reporting.
	Process(ctx context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error)
}

// ProcessorFunc adapts a plain function into a Processor.
type ProcessorFunc struct {
	name    string
	execute func(ctx context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error)
}

// NewProcessorFunc builds a function-backed Processor named name.
func NewProcessorFunc(name string, execute func(ctx context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error)) *ProcessorFunc {
	return &ProcessorFunc{name: name, execute: execute}
}

func (f *ProcessorFunc) Name() string { return f.name }

func (f *ProcessorFunc) Process(ctx context.Context, frame *model.Frame, previous []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
	if f.execute == nil {
		return nil, fmt.Errorf("processor %s: execute function not defined", f.name)
	}
	return f.execute(ctx, frame, previous)
}

// ProcessorError wraps a processor failure with its name for context.
type ProcessorError struct {
	Processor string
	Message   string
	Err       error
}

func (e *ProcessorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processor %s: %s: %v", e.Processor, e.Message, e.Err)
	}
	return fmt.Sprintf("processor %s: %s", e.Processor, e.Message)
}

func (e *ProcessorError) Unwrap() error { return e.Err }
