package metrics

import (
	"testing"
	"time"
)

func TestWorkerTrackerRecordsLifecycle(t *testing.T) {
	wt := NewWorkerTracker()
	now := time.Unix(1700000000, 0)
	wt.nowFunc = func() time.Time { return now }

	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventActive})
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventActive})

	snap := wt.WorkerSnapshot("cam1")
	if snap == nil {
		t.Fatal("expected worker snapshot")
	}
	if snap.FramesCaptured != 2 {
		t.Errorf("expected 2 frames captured, got %d", snap.FramesCaptured)
	}
	if snap.State != "active" {
		t.Errorf("expected state active, got %q", snap.State)
	}
}

func TestWorkerTrackerDropAndRestart(t *testing.T) {
	wt := NewWorkerTracker()
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventDropped, Reason: DropReasonNetwork})
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventRestarted})

	snap := wt.WorkerSnapshot("cam1")
	if snap.State != "dropped" {
		t.Errorf("expected state dropped, got %q", snap.State)
	}
	if snap.RestartCount != 1 {
		t.Errorf("expected 1 restart, got %d", snap.RestartCount)
	}
}

func TestWorkerTrackerRecordFrameOKComputesAverageLatency(t *testing.T) {
	wt := NewWorkerTracker()
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordFrameOK("cam1", 100)
	wt.RecordFrameOK("cam1", 200)

	snap := wt.WorkerSnapshot("cam1")
	if snap.AvgLatencyMs != 150 {
		t.Errorf("expected avg latency 150, got %f", snap.AvgLatencyMs)
	}
	if snap.FramesOK != 2 {
		t.Errorf("expected 2 OK frames, got %d", snap.FramesOK)
	}
}

func TestWorkerTrackerRecordFrameErrorTracksDecodeErrors(t *testing.T) {
	wt := NewWorkerTracker()
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordFrameError("cam1", true)
	wt.RecordFrameError("cam1", false)

	snap := wt.WorkerSnapshot("cam1")
	if snap.FramesFailed != 2 {
		t.Errorf("expected 2 failed frames, got %d", snap.FramesFailed)
	}
	if snap.DecodeErrors != 1 {
		t.Errorf("expected 1 decode error, got %d", snap.DecodeErrors)
	}
}

func TestWorkerTrackerReportAggregates(t *testing.T) {
	wt := NewWorkerTracker()
	base := time.Unix(1700000000, 0)
	wt.nowFunc = func() time.Time { return base }

	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordEvent(WorkerEvent{SourceID: "cam2", EventType: WorkerEventStarted})
	wt.RecordEvent(WorkerEvent{SourceID: "cam2", EventType: WorkerEventDropped})

	report := wt.Report(true)
	if report.TotalWorkers != 2 {
		t.Errorf("expected 2 total workers, got %d", report.TotalWorkers)
	}
	if report.ActiveWorkers != 1 {
		t.Errorf("expected 1 active worker, got %d", report.ActiveWorkers)
	}
	if report.DroppedWorkers != 1 {
		t.Errorf("expected 1 dropped worker, got %d", report.DroppedWorkers)
	}
	if len(report.Events) != 3 {
		t.Errorf("expected 3 events in report, got %d", len(report.Events))
	}
}

func TestWorkerTrackerReportWithoutEvents(t *testing.T) {
	wt := NewWorkerTracker()
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})

	report := wt.Report(false)
	if report.Events != nil {
		t.Error("expected nil events when includeEvents is false")
	}
}

func TestWorkerTrackerReset(t *testing.T) {
	wt := NewWorkerTracker()
	wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventStarted})
	wt.RecordFrameOK("cam1", 10)

	wt.Reset()

	if wt.WorkerSnapshot("cam1") != nil {
		t.Error("expected no worker data after reset")
	}
	if len(wt.RecentEvents(10)) != 0 {
		t.Error("expected no events after reset")
	}
}

func TestWorkerTrackerRecentEvents(t *testing.T) {
	wt := NewWorkerTracker()
	for i := 0; i < 5; i++ {
		wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventActive})
	}

	recent := wt.RecentEvents(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent events, got %d", len(recent))
	}
}

func TestWorkerTrackerEventRingBufferCapsAtMax(t *testing.T) {
	wt := NewWorkerTracker()
	wt.maxEvents = 3
	for i := 0; i < 10; i++ {
		wt.RecordEvent(WorkerEvent{SourceID: "cam1", EventType: WorkerEventActive})
	}

	if len(wt.events) != 3 {
		t.Errorf("expected event buffer capped at 3, got %d", len(wt.events))
	}
}
