package store

import (
	"context"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
)

// SaveSnapshot persists an artifact returned from internal/artifacts
// alongside the source that produced it. The core writes through this
// path once per capture and never re-reads the blob itself, only this
// row.
func (s *Store) SaveSnapshot(ctx context.Context, sourceID string, a model.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (uri, source_id, size_bytes, content_type, checksum, etag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO NOTHING`,
		a.URI, sourceID, a.Size, a.ContentType, a.Checksum, a.ETag, time.Now().Format(time.RFC3339Nano))
	return err
}

// SweepSnapshotsOlderThan deletes snapshot rows created before cutoff,
// returning how many were removed. The caller is responsible for
// deleting the underlying blobs; this only drops the index row.
func (s *Store) SweepSnapshotsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
