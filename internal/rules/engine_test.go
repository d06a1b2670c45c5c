package rules

import (
	"testing"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

func TestEngineAppliesAllMatchingRulesByPriority(t *testing.T) {
	rules := []Rule{
		{
			ID: "low-priority", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "motion_detected", Matches: true}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityLow}},
		},
		{
			ID: "high-priority", Priority: 10, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "motion_detected", Matches: true}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityCritical}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	event := &model.AnalysisEvent{Type: "motion_detected", Severity: model.SeverityMedium, OccurredAt: time.Now()}
	keep := e.Evaluate(event)

	if !keep {
		t.Fatal("expected event to be kept")
	}
	// Both rules match; higher priority runs first but the lower-priority
	// rule still applies afterward, so its severity wins.
	if event.Severity != model.SeverityLow {
		t.Errorf("expected both rules to apply in priority order, got severity %v", event.Severity)
	}
}

func TestEngineDeleteEventDrops(t *testing.T) {
	rules := []Rule{
		{ID: "drop-low-confidence", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionConfidence, Comparator: CompareLess, Confidence: 0.5}},
			Actions:    []Action{{Type: ActionDeleteEvent}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	event := &model.AnalysisEvent{Type: "motion_detected", Confidence: 0.1, OccurredAt: time.Now()}
	if keep := e.Evaluate(event); keep {
		t.Fatal("expected event to be dropped")
	}
}

func TestEngineDeleteEventStopsFurtherRules(t *testing.T) {
	rules := []Rule{
		{ID: "delete-rule", Priority: 10, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "x", Matches: true}},
			Actions:    []Action{{Type: ActionDeleteEvent}},
		},
		{ID: "lower-rule", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "x", Matches: true}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityCritical}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	event := &model.AnalysisEvent{Type: "x", Severity: model.SeverityLow, OccurredAt: time.Now()}
	if keep := e.Evaluate(event); keep {
		t.Fatal("expected event to be dropped by the higher-priority delete rule")
	}
	if event.Severity != model.SeverityLow {
		t.Errorf("lower-priority rule should never have run, got severity %v", event.Severity)
	}
}

func TestEventTypeConditionWildcard(t *testing.T) {
	rules := []Rule{
		{ID: "motion-rule", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "motion_*", Matches: true}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityHigh}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	event := &model.AnalysisEvent{Type: "motion_detected", OccurredAt: time.Now()}
	e.Evaluate(event)
	if event.Severity != model.SeverityHigh {
		t.Errorf("expected wildcard pattern to match, got severity %v", event.Severity)
	}
}

func TestEventTypeConditionMatchesFalseNegates(t *testing.T) {
	rules := []Rule{
		{ID: "not-motion-rule", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "motion_*", Matches: false}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityHigh}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	motion := &model.AnalysisEvent{Type: "motion_detected", Severity: model.SeverityLow, OccurredAt: time.Now()}
	e.Evaluate(motion)
	if motion.Severity != model.SeverityLow {
		t.Errorf("matches=false should not fire on a pattern hit, got severity %v", motion.Severity)
	}

	other := &model.AnalysisEvent{Type: "frame_described", Severity: model.SeverityLow, OccurredAt: time.Now()}
	e.Evaluate(other)
	if other.Severity != model.SeverityHigh {
		t.Errorf("matches=false should fire when the pattern misses, got severity %v", other.Severity)
	}
}

func TestMetadataConditionOperators(t *testing.T) {
	eq := Condition{Type: ConditionMetadata, MetadataKey: "zone", Comparator: CompareEquals, MetadataValue: "north"}
	if !matchesMetadata(map[string]string{"zone": "north"}, eq.MetadataKey, eq.Comparator, eq.MetadataValue) {
		t.Error("expected Equal to match on equal value")
	}
	if matchesMetadata(map[string]string{"zone": "south"}, eq.MetadataKey, eq.Comparator, eq.MetadataValue) {
		t.Error("expected Equal to fail on differing value")
	}

	contains := Condition{Type: ConditionMetadata, MetadataKey: "tags", Comparator: CompareContains, MetadataValue: "alert"}
	if !matchesMetadata(map[string]string{"tags": "camera,alert,night"}, contains.MetadataKey, contains.Comparator, contains.MetadataValue) {
		t.Error("expected Contains to match a substring")
	}

	// Missing field: NotEqual is true, every other comparator is false.
	if !matchesMetadata(nil, "missing", CompareNotEquals, "x") {
		t.Error("expected NotEqual to hold for a missing field")
	}
	if matchesMetadata(nil, "missing", CompareEquals, "x") {
		t.Error("expected Equal to fail for a missing field")
	}
	if matchesMetadata(nil, "missing", CompareContains, "x") {
		t.Error("expected Contains to fail for a missing field")
	}
}

func TestTimeWindowCondition(t *testing.T) {
	friday := 5 // time.Friday
	rules := []Rule{
		{ID: "business-hours", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionTimeWindow, StartTime: "09:00", EndTime: "17:00", Days: []int{friday}}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityHigh}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})

	inWindow := &model.AnalysisEvent{Type: "x", OccurredAt: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)} // Friday
	e.Evaluate(inWindow)
	if inWindow.Severity != model.SeverityHigh {
		t.Errorf("expected time-window condition to match during business hours, got %v", inWindow.Severity)
	}

	wrongDay := &model.AnalysisEvent{Type: "x", OccurredAt: time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)} // Saturday
	e.Evaluate(wrongDay)
	if wrongDay.Severity == model.SeverityHigh {
		t.Error("expected time-window condition not to match on the wrong weekday")
	}
}

func TestTimeWindowConditionWrapsMidnight(t *testing.T) {
	sunday := 0
	if !inTimeWindow(time.Date(2026, 1, 4, 23, 30, 0, 0, time.UTC), "22:00", "06:00", []int{sunday}) {
		t.Error("expected 23:30 to fall within an overnight 22:00-06:00 window")
	}
	if inTimeWindow(time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC), "22:00", "06:00", []int{sunday}) {
		t.Error("expected noon not to fall within an overnight 22:00-06:00 window")
	}
}

func TestEngineDeduplicatesWithinWindow(t *testing.T) {
	dedup := DeduplicationConfig{
		Enabled:    true,
		EventTypes: []string{"motion_detected"},
		KeyFields:  []string{"source_id", "event_type"},
		WindowMs:   60000,
	}
	e := NewEngine(nil, dedup, QuietHoursConfig{})
	now := time.Now()
	e1 := &model.AnalysisEvent{SourceID: "cam1", Type: "motion_detected", OccurredAt: now}
	e2 := &model.AnalysisEvent{SourceID: "cam1", Type: "motion_detected", OccurredAt: now.Add(time.Second)}

	if keep := e.Evaluate(e1); !keep {
		t.Fatal("first event should be kept")
	}
	if keep := e.Evaluate(e2); keep {
		t.Fatal("second event within dedup window should be dropped")
	}
}

func TestEngineDeduplicationSkipsUngatedEventTypes(t *testing.T) {
	dedup := DeduplicationConfig{
		Enabled:    true,
		EventTypes: []string{"motion_detected"}, // frame_described is not gated
		KeyFields:  []string{"source_id", "event_type"},
		WindowMs:   60000,
	}
	e := NewEngine(nil, dedup, QuietHoursConfig{})
	now := time.Now()
	e1 := &model.AnalysisEvent{SourceID: "cam1", Type: "frame_described", OccurredAt: now}
	e2 := &model.AnalysisEvent{SourceID: "cam1", Type: "frame_described", OccurredAt: now.Add(time.Second)}

	if keep := e.Evaluate(e1); !keep {
		t.Fatal("first event should be kept")
	}
	if keep := e.Evaluate(e2); !keep {
		t.Fatal("event type not in dedup.EventTypes should bypass deduplication")
	}
}

func TestQuietHoursSuppressesNotificationGlobally(t *testing.T) {
	quiet := QuietHoursConfig{
		Enabled:   true,
		StartTime: "22:00",
		EndTime:   "06:00",
		Days:      []int{0, 1, 2, 3, 4, 5, 6},
		Actions:   []Action{{Type: ActionSuppressNotification}},
	}
	e := NewEngine(nil, DeduplicationConfig{}, quiet)

	at := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	event := &model.AnalysisEvent{Type: "x", OccurredAt: at}
	keep := e.Evaluate(event)

	if !keep {
		t.Fatal("quiet-hours actions must never drop an event")
	}
	if !event.Suppressed {
		t.Error("expected quiet-hours SuppressNotification action to apply")
	}
}

func TestQuietHoursOutsideWindowLeavesEventUntouched(t *testing.T) {
	quiet := QuietHoursConfig{
		Enabled:   true,
		StartTime: "22:00",
		EndTime:   "06:00",
		Days:      []int{0, 1, 2, 3, 4, 5, 6},
		Actions:   []Action{{Type: ActionSuppressNotification}},
	}
	e := NewEngine(nil, DeduplicationConfig{}, quiet)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	event := &model.AnalysisEvent{Type: "x", OccurredAt: at}
	e.Evaluate(event)

	if event.Suppressed {
		t.Error("quiet-hours action should not apply outside the configured window")
	}
}

func TestRuleActionsApplyRegardlessOfQuietHours(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventType, EventType: "x", Matches: true}},
			Actions:    []Action{{Type: ActionSuppressNotification}},
		},
	}
	quiet := QuietHoursConfig{Enabled: true, StartTime: "22:00", EndTime: "06:00", Days: []int{0, 1, 2, 3, 4, 5, 6}}
	e := NewEngine(rules, DeduplicationConfig{}, quiet)

	at := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	event := &model.AnalysisEvent{Type: "x", OccurredAt: at}
	keep := e.Evaluate(event)

	if !keep {
		t.Fatal("expected event to be kept")
	}
	if !event.Suppressed {
		t.Error("a rule's own SuppressNotification action must apply regardless of quiet hours")
	}
}

func TestEventCountConditionRequiresMinimumOccurrences(t *testing.T) {
	rules := []Rule{
		{ID: "r1", Priority: 1, Enabled: true,
			Conditions: []Condition{{Type: ConditionEventCount, EventType: "motion_detected", WindowMs: 60000, MinCount: 3}},
			Actions:    []Action{{Type: ActionSetSeverity, Severity: model.SeverityHigh}},
		},
	}
	e := NewEngine(rules, DeduplicationConfig{}, QuietHoursConfig{})
	now := time.Now()

	for i := 0; i < 3; i++ {
		event := &model.AnalysisEvent{SourceID: "cam1", Type: "motion_detected", OccurredAt: now.Add(time.Duration(i) * time.Second)}
		e.Evaluate(event)
	}
	fourth := &model.AnalysisEvent{SourceID: "cam1", Type: "motion_detected", OccurredAt: now.Add(3 * time.Second)}
	e.Evaluate(fourth)
	if fourth.Severity != model.SeverityHigh {
		t.Errorf("expected fourth event, after three earlier events in window, to trigger rule, got severity %v", fourth.Severity)
	}
}
