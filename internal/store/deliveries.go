package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SQLDeliveryStore implements dispatcher.DeliveryStore over the
// notification_deliveries table, giving dispatch idempotency across
// process restarts.
type SQLDeliveryStore struct {
	db *sql.DB
}

// NewSQLDeliveryStore builds a SQLDeliveryStore over an open Store's
// connection.
func NewSQLDeliveryStore(s *Store) *SQLDeliveryStore {
	return &SQLDeliveryStore{db: s.db}
}

func (d *SQLDeliveryStore) FindDelivery(ctx context.Context, eventID string, channel model.NotificationChannel) (*model.NotificationDelivery, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, event_id, channel, status, attempts, external_id, last_error, created_at, updated_at
		FROM notification_deliveries WHERE event_id = ? AND channel = ?`, eventID, string(channel))

	var rec model.NotificationDelivery
	var channelStr, status, createdAt, updatedAt string
	err := row.Scan(&rec.ID, &rec.EventID, &channelStr, &status, &rec.Attempts, &rec.ExternalID, &rec.LastError, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Channel = model.NotificationChannel(channelStr)
	rec.Status = model.DeliveryStatus(status)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, err
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *SQLDeliveryStore) SaveDelivery(ctx context.Context, rec model.NotificationDelivery) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO notification_deliveries (id, event_id, channel, status, attempts, external_id, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id, channel) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			external_id = excluded.external_id,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		rec.ID, rec.EventID, string(rec.Channel), string(rec.Status), rec.Attempts, rec.ExternalID, rec.LastError,
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	return err
}
