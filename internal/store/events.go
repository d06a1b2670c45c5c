package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SaveEvent inserts or replaces an analysis event row.
func (s *Store) SaveEvent(ctx context.Context, e model.AnalysisEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_events (id, source_id, type, severity, confidence, metadata, occurred_at, previous_event_id, suppressed, template)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			severity = excluded.severity,
			confidence = excluded.confidence,
			metadata = excluded.metadata,
			suppressed = excluded.suppressed,
			template = excluded.template`,
		e.ID, e.SourceID, e.Type, int(e.Severity), e.Confidence, string(metadata),
		e.OccurredAt.Format(time.RFC3339Nano), e.PreviousEventID, boolToInt(e.Suppressed), e.Template)
	return err
}

// ListEventsSince returns events for sourceID occurring at or after since,
// ordered oldest first, for windowed rule-engine / summary queries.
func (s *Store) ListEventsSince(ctx context.Context, sourceID string, since time.Time) ([]model.AnalysisEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, type, severity, confidence, metadata, occurred_at, previous_event_id, suppressed, template
		FROM analysis_events
		WHERE source_id = ? AND occurred_at >= ?
		ORDER BY occurred_at ASC`, sourceID, since.Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.AnalysisEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.AnalysisEvent, error) {
	var e model.AnalysisEvent
	var severity int
	var metadata, occurredAt string
	var suppressed int
	err := row.Scan(&e.ID, &e.SourceID, &e.Type, &severity, &e.Confidence, &metadata, &occurredAt, &e.PreviousEventID, &suppressed, &e.Template)
	if err != nil {
		return e, err
	}
	e.Severity = model.Severity(severity)
	e.Suppressed = suppressed != 0
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
			return e, err
		}
	}
	e.OccurredAt, err = time.Parse(time.RFC3339Nano, occurredAt)
	return e, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ErrNotFound is returned by single-row lookups with no match.
var ErrNotFound = errors.New("store: not found")

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (model.AnalysisEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, type, severity, confidence, metadata, occurred_at, previous_event_id, suppressed, template
		FROM analysis_events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisEvent{}, ErrNotFound
	}
	return e, err
}
