package rules

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// MaxHistory bounds the engine's in-memory event ring buffer, used for
// EventCount conditions and deduplication lookups.
const MaxHistory = 1000

// Engine evaluates incoming events against a RuleSet, in descending
// priority order, applying every matching rule's actions cumulatively.
type Engine struct {
	mu         sync.Mutex
	rules      []Rule
	dedup      DeduplicationConfig
	quietHours QuietHoursConfig

	history    []historyEntry
	historyPos int
}

type historyEntry struct {
	event *model.AnalysisEvent
}

// NewEngine builds an Engine with the given rules (need not be
// pre-sorted) and dedup/quiet-hours configuration.
func NewEngine(rules []Rule, dedup DeduplicationConfig, quietHours QuietHoursConfig) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return &Engine{
		rules:      sorted,
		dedup:      dedup,
		quietHours: quietHours,
	}
}

// Replace swaps in a new rule set, dedup, and quiet-hours configuration
// atomically, without discarding tracked event history (in-flight
// EventCount conditions and dedup state survive a config reload).
func (e *Engine) Replace(rules []Rule, dedup DeduplicationConfig, quietHours QuietHoursConfig) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = sorted
	e.dedup = dedup
	e.quietHours = quietHours
}

// ClearHistory discards all tracked event history.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
	e.historyPos = 0
}

// HistorySize returns the number of events currently tracked.
func (e *Engine) HistorySize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

func (e *Engine) recordLocked(event *model.AnalysisEvent) {
	entry := historyEntry{event: event}
	if len(e.history) < MaxHistory {
		e.history = append(e.history, entry)
		return
	}
	e.history[e.historyPos] = entry
	e.historyPos = (e.historyPos + 1) % MaxHistory
}

func (e *Engine) countInWindow(sourceID, eventType string, windowMs int64, now time.Time) int {
	cutoff := now.Add(-time.Duration(windowMs) * time.Millisecond)
	count := 0
	for _, h := range e.history {
		if h.event.SourceID != sourceID {
			continue
		}
		if eventType != "" && h.event.Type != eventType {
			continue
		}
		if h.event.OccurredAt.Before(cutoff) {
			continue
		}
		count++
	}
	return count
}

// Evaluate applies every enabled rule whose conditions all match, in
// descending priority order, mutating event in place. A rule whose
// actions include ActionDeleteEvent stops further rule processing and
// drops the event immediately. A surviving event then passes through
// global deduplication and finally global quiet-hours, which may only
// mutate it, never drop it. Only a kept event is recorded into history.
func (e *Engine) Evaluate(event *model.AnalysisEvent) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := event.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	keep := true
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if !e.matchesAll(rule.Conditions, event, now) {
			continue
		}
		if !e.applyActions(rule.Actions, event) {
			keep = false
			break
		}
	}

	if keep && e.dedup.Enabled {
		keep = e.checkDeduplication(event, now)
	}

	if keep && e.quietHours.Enabled && inTimeWindow(now, e.quietHours.StartTime, e.quietHours.EndTime, e.quietHours.Days) {
		e.applyQuietHoursActions(event)
	}

	if keep {
		e.recordLocked(event)
	}
	return keep
}

// dedupKey builds the deduplication key for event from KeyFields: the
// well-known attributes "event_type", "source_id", "template_id", or
// otherwise a metadata lookup.
func (e *Engine) dedupKey(event *model.AnalysisEvent) string {
	parts := make([]string, 0, len(e.dedup.KeyFields))
	for _, field := range e.dedup.KeyFields {
		switch field {
		case "event_type":
			parts = append(parts, event.Type)
		case "source_id":
			parts = append(parts, event.SourceID)
		case "template_id":
			parts = append(parts, event.Template)
		default:
			if event.Metadata != nil {
				if v, ok := event.Metadata[field]; ok {
					parts = append(parts, v)
				}
			}
		}
	}
	return strings.Join(parts, "|")
}

// checkDeduplication reports whether event should be kept. Events whose
// type isn't in dedup.EventTypes bypass deduplication entirely; otherwise
// a recent history entry of the same type with an equal dedup key, within
// WindowMs, causes this event to be dropped.
func (e *Engine) checkDeduplication(event *model.AnalysisEvent, now time.Time) bool {
	inScope := false
	for _, t := range e.dedup.EventTypes {
		if t == event.Type {
			inScope = true
			break
		}
	}
	if !inScope {
		return true
	}

	cutoff := now.Add(-time.Duration(e.dedup.WindowMs) * time.Millisecond)
	key := e.dedupKey(event)
	for _, h := range e.history {
		if h.event.OccurredAt.Before(cutoff) {
			continue
		}
		if h.event.Type != event.Type {
			continue
		}
		if e.dedupKey(h.event) == key {
			return false
		}
	}
	return true
}

// applyQuietHoursActions applies the mutation-only subset of the
// configured quiet-hours actions; other action types are ignored here.
func (e *Engine) applyQuietHoursActions(event *model.AnalysisEvent) {
	for _, a := range e.quietHours.Actions {
		switch a.Type {
		case ActionSuppressNotification:
			event.Suppressed = true
		case ActionSetSeverity:
			event.Severity = a.Severity
		}
	}
}

func (e *Engine) matchesAll(conditions []Condition, event *model.AnalysisEvent, now time.Time) bool {
	for _, c := range conditions {
		if !e.matches(c, event, now) {
			return false
		}
	}
	return true
}

func (e *Engine) matches(c Condition, event *model.AnalysisEvent, now time.Time) bool {
	switch c.Type {
	case ConditionEventType:
		return patternMatches(c.EventType, event.Type) == c.Matches
	case ConditionSourceID:
		return patternMatches(c.SourceID, event.SourceID) == c.Matches
	case ConditionSeverity:
		return compareInt(int(event.Severity), c.Comparator, int(c.Severity))
	case ConditionConfidence:
		return compareFloat(event.Confidence, c.Comparator, c.Confidence)
	case ConditionMetadata:
		return matchesMetadata(event.Metadata, c.MetadataKey, c.Comparator, c.MetadataValue)
	case ConditionTimeWindow:
		return inTimeWindow(now, c.StartTime, c.EndTime, c.Days)
	case ConditionEventCount:
		return compareInt(e.countInWindow(event.SourceID, c.EventType, c.WindowMs, now), c.Comparator, c.MinCount)
	default:
		return false
	}
}

// patternMatches reports whether value matches pattern: a wildcard regex
// (`*` -> `.*`) when pattern contains `*`, exact string equality
// otherwise.
func patternMatches(pattern, value string) bool {
	if strings.Contains(pattern, "*") {
		re, err := regexp.Compile(strings.ReplaceAll(pattern, "*", ".*"))
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}
	return value == pattern
}

// matchesMetadata evaluates a Metadata condition. A missing field is
// treated as CompareNotEquals = true; every other comparator is false for
// a missing field.
func matchesMetadata(metadata map[string]string, key string, cmp Comparator, want string) bool {
	v, ok := metadata[key]
	if !ok {
		return cmp == CompareNotEquals
	}
	switch cmp {
	case CompareEquals:
		return v == want
	case CompareNotEquals:
		return v != want
	case CompareContains:
		return strings.Contains(v, want)
	case CompareNotContains:
		return !strings.Contains(v, want)
	default:
		return false
	}
}

// inTimeWindow reports whether t's weekday is in days and its HH:MM falls
// in [start,end], wrapping past midnight when start > end.
func inTimeWindow(t time.Time, start, end string, days []int) bool {
	weekday := int(t.Weekday())
	dayMatches := false
	for _, d := range days {
		if d == weekday {
			dayMatches = true
			break
		}
	}
	if !dayMatches {
		return false
	}

	cur := t.Format("15:04")
	if start <= end {
		return cur >= start && cur <= end
	}
	return cur >= start || cur <= end
}

func compareInt(observed int, cmp Comparator, threshold int) bool {
	switch cmp {
	case CompareEquals:
		return observed == threshold
	case CompareNotEquals:
		return observed != threshold
	case CompareGreater:
		return observed > threshold
	case CompareGreaterEq:
		return observed >= threshold
	case CompareLess:
		return observed < threshold
	case CompareLessEq:
		return observed <= threshold
	default:
		return observed >= threshold
	}
}

func compareFloat(observed float64, cmp Comparator, threshold float64) bool {
	switch cmp {
	case CompareEquals:
		return observed == threshold
	case CompareNotEquals:
		return observed != threshold
	case CompareGreater:
		return observed > threshold
	case CompareGreaterEq:
		return observed >= threshold
	case CompareLess:
		return observed < threshold
	case CompareLessEq:
		return observed <= threshold
	default:
		return observed >= threshold
	}
}

// applyActions runs a rule's actions against event in order, returning
// whether the event should still be delivered. It stops at the first
// ActionDeleteEvent.
func (e *Engine) applyActions(actions []Action, event *model.AnalysisEvent) bool {
	keep := true
	for _, a := range actions {
		switch a.Type {
		case ActionSuppressNotification:
			event.Suppressed = true
		case ActionDeleteEvent:
			keep = false
		case ActionSetSeverity:
			event.Severity = a.Severity
		case ActionAddMetadata:
			if event.Metadata == nil {
				event.Metadata = make(map[string]string)
			}
			event.Metadata[a.MetadataKey] = a.MetadataValue
		case ActionSetNotificationTemplate:
			event.Template = a.Template
		case ActionRateLimit:
			// Action.MaxPerHour is carried on the rule but is not
			// enforced here or by the dispatcher; nothing to mutate on
			// the event itself.
		}
		if !keep {
			break
		}
	}
	return keep
}
