package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	m := NewMotionProcessor(DefaultMotionConfig())
	if err := r.Register(m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Get("motion"); !ok {
		t.Fatal("expected motion processor to be registered")
	}
	if err := r.Register(m); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestMotionProcessorDetectsChange(t *testing.T) {
	m := NewMotionProcessor(MotionConfig{Threshold: 0.1, SampleStride: 1})
	f1 := model.NewFrame("cam1", 1, []byte{0, 0, 0, 0}, func() {})
	f2 := model.NewFrame("cam1", 2, []byte{255, 255, 255, 255}, func() {})

	if ev, _ := m.Process(context.Background(), f1, nil); ev != nil {
		t.Fatal("first frame should not produce an event (no baseline)")
	}
	ev, err := m.Process(context.Background(), f2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil || ev.Type != "motion_detected" {
		t.Fatalf("expected motion_detected event, got %+v", ev)
	}
}

func TestPipelineChainsPreviousEventID(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewProcessorFunc("a", func(ctx context.Context, f *model.Frame, prev []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
		return &model.AnalysisEvent{ID: "evt-a", Type: "a"}, nil
	}))
	r.MustRegister(NewProcessorFunc("b", func(ctx context.Context, f *model.Frame, prev []*model.AnalysisEvent) (*model.AnalysisEvent, error) {
		return &model.AnalysisEvent{ID: "evt-b", Type: "b"}, nil
	}))

	p := NewPipeline(r, []string{"a", "b"})
	frame := model.NewFrame("cam1", 1, []byte{1}, func() {})
	events := p.Run(context.Background(), frame)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].PreviousEventID != "evt-a" {
		t.Errorf("expected second event to chain to first, got %q", events[1].PreviousEventID)
	}
}

func TestSummaryProcessorEmitsAfterWindow(t *testing.T) {
	s := NewSummaryProcessor(time.Minute)
	base := time.Now()
	f1 := model.NewFrame("cam1", 1, nil, func() {})
	f1.CapturedAt = base
	prevEvents := []*model.AnalysisEvent{{Type: "motion_detected"}}

	if ev, _ := s.Process(context.Background(), f1, prevEvents); ev != nil {
		t.Fatal("should not emit before window elapses")
	}

	f2 := model.NewFrame("cam1", 2, nil, func() {})
	f2.CapturedAt = base.Add(2 * time.Minute)
	ev, err := s.Process(context.Background(), f2, prevEvents)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil || ev.Type != "activity_summary" {
		t.Fatalf("expected activity_summary event, got %+v", ev)
	}
}
