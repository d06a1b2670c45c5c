package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// UpsertStream inserts or updates a capture source's configuration.
func (s *Store) UpsertStream(ctx context.Context, cfg model.SourceConfig) error {
	now := time.Now().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streams (id, url, frame_rate, quality, width, height, accel, rtsp_transport, timeout_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			frame_rate = excluded.frame_rate,
			quality = excluded.quality,
			width = excluded.width,
			height = excluded.height,
			accel = excluded.accel,
			rtsp_transport = excluded.rtsp_transport,
			timeout_ms = excluded.timeout_ms,
			updated_at = excluded.updated_at`,
		cfg.ID, cfg.URL, cfg.FrameRate, cfg.Quality, cfg.Width, cfg.Height,
		string(cfg.Accel), string(cfg.RTSPTransport), cfg.TimeoutMs, now, now)
	return err
}

// GetStream fetches a single stream's configuration by id.
func (s *Store) GetStream(ctx context.Context, id string) (model.SourceConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, frame_rate, quality, width, height, accel, rtsp_transport, timeout_ms
		FROM streams WHERE id = ?`, id)

	var cfg model.SourceConfig
	var accel, transport string
	err := row.Scan(&cfg.ID, &cfg.URL, &cfg.FrameRate, &cfg.Quality, &cfg.Width, &cfg.Height, &accel, &transport, &cfg.TimeoutMs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SourceConfig{}, ErrNotFound
	}
	if err != nil {
		return model.SourceConfig{}, err
	}
	cfg.Accel = model.AccelMode(accel)
	cfg.RTSPTransport = model.RTSPTransport(transport)
	return cfg, nil
}

// ListStreams returns every configured capture source.
func (s *Store) ListStreams(ctx context.Context) ([]model.SourceConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, frame_rate, quality, width, height, accel, rtsp_transport, timeout_ms
		FROM streams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SourceConfig
	for rows.Next() {
		var cfg model.SourceConfig
		var accel, transport string
		if err := rows.Scan(&cfg.ID, &cfg.URL, &cfg.FrameRate, &cfg.Quality, &cfg.Width, &cfg.Height, &accel, &transport, &cfg.TimeoutMs); err != nil {
			return nil, err
		}
		cfg.Accel = model.AccelMode(accel)
		cfg.RTSPTransport = model.RTSPTransport(transport)
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// DeleteStream removes a capture source's row.
func (s *Store) DeleteStream(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM streams WHERE id = ?`, id)
	return err
}
