// Package rules implements a declarative rule engine that evaluates
// analysis events against configured conditions and applies mutating or
// suppressing actions before notification dispatch.
package rules

import (
	"github.com/glimpser/glimpser-go/internal/model"
)

// ConditionType discriminates the Condition sum type.
type ConditionType string

const (
	ConditionEventType  ConditionType = "event_type"
	ConditionSeverity   ConditionType = "severity"
	ConditionConfidence ConditionType = "confidence"
	ConditionTimeWindow ConditionType = "time_window"
	ConditionEventCount ConditionType = "event_count"
	ConditionMetadata   ConditionType = "metadata"
	ConditionSourceID   ConditionType = "source_id"
)

// Comparator is shared by Severity, Confidence, EventCount and Metadata
// conditions.
type Comparator string

const (
	CompareEquals      Comparator = "=="
	CompareNotEquals   Comparator = "!="
	CompareGreater     Comparator = ">"
	CompareGreaterEq   Comparator = ">="
	CompareLess        Comparator = "<"
	CompareLessEq      Comparator = "<="
	CompareContains    Comparator = "contains"
	CompareNotContains Comparator = "not_contains"
)

// Condition is one clause of a Rule. Exactly the fields relevant to Type
// are consulted; the rest are ignored.
type Condition struct {
	Type ConditionType

	// EventType / SourceID double as the wildcard pattern for
	// ConditionEventType / ConditionSourceID — treated as a regex
	// (`*` -> `.*`) when the pattern contains `*`, plain equality
	// otherwise. EventType additionally doubles as the optional type
	// filter for ConditionEventCount. Matches negates the pattern
	// comparison: the condition holds iff pattern-match == Matches.
	EventType string
	SourceID  string
	Matches   bool

	Severity   model.Severity
	Comparator Comparator
	Confidence float64

	// TimeWindow: weekday ∈ Days and HH:MM ∈ [StartTime, EndTime]
	// (inclusive), wrapping past midnight when StartTime > EndTime.
	StartTime string
	EndTime   string
	Days      []int // 0=Sunday..6=Saturday

	// EventCount: occurrences of EventType (or any type, if empty) within
	// the last WindowMs, compared to MinCount via Comparator (>= when empty).
	WindowMs int64
	MinCount int

	// Metadata: MetadataKey looked up in event metadata and compared to
	// MetadataValue via Comparator (Equal/NotEqual/Contains/NotContains).
	// A missing field is treated as CompareNotEquals = true, all other
	// comparators = false.
	MetadataKey   string
	MetadataValue string
}

// ActionType discriminates the Action sum type.
type ActionType string

const (
	ActionSuppressNotification    ActionType = "suppress_notification"
	ActionSetSeverity             ActionType = "set_severity"
	ActionAddMetadata             ActionType = "add_metadata"
	ActionDeleteEvent             ActionType = "delete_event"
	ActionSetNotificationTemplate ActionType = "set_notification_template"
	ActionRateLimit               ActionType = "rate_limit"
)

// Action is one effect applied when a Rule's conditions all match.
type Action struct {
	Type          ActionType
	Severity      model.Severity
	MetadataKey   string
	MetadataValue string
	Template      string
	MaxPerHour    int
}

// Rule bundles conditions (all must match) with the actions to apply,
// evaluated in descending Priority order.
type Rule struct {
	ID         string
	Name       string
	Priority   int
	Enabled    bool
	Conditions []Condition
	Actions    []Action
}

// DeduplicationConfig is the global step applied after rules run: for
// each event whose Type is in EventTypes, a dedup key is built from
// KeyFields and compared against recent history.
type DeduplicationConfig struct {
	Enabled    bool
	EventTypes []string
	KeyFields  []string // "event_type", "source_id", "template_id", or a metadata field
	WindowMs   int64
}

// QuietHoursConfig is the global step applied after deduplication: when
// the event falls inside the configured window, Actions runs against it —
// but only its mutation-only subset (SuppressNotification, SetSeverity);
// other action types are ignored in this context.
type QuietHoursConfig struct {
	Enabled   bool
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	Days      []int  // 0=Sunday..6=Saturday
	Actions   []Action
}
