package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glimpser/glimpser-go/internal/artifacts"
	"github.com/glimpser/glimpser-go/internal/broadcast"
	"github.com/glimpser/glimpser-go/internal/capture"
	"github.com/glimpser/glimpser-go/internal/model"
	"github.com/glimpser/glimpser-go/internal/scheduler"
	"github.com/glimpser/glimpser-go/internal/store"
)

// snapshotTimeout bounds how long captureSnapshot waits for the next
// broadcast frame before giving up on a source.
const snapshotTimeout = 10 * time.Second

// snapshotJobDefinition describes the recurring snapshot-capture job run
// under a distributed lock so only one instance does the work per tick.
func snapshotJobDefinition() model.JobDefinition {
	return model.JobDefinition{ID: "snapshot-capture", Schedule: "interval", TimeoutMs: 60000, GracePeriodMs: 5000}
}

// captureSnapshot subscribes to hub just long enough to grab the next
// frame for sourceID, persists it through artifactStore, and records the
// resulting artifact in db.
func captureSnapshot(ctx context.Context, sourceID string, hub *broadcast.Hub, artifactStore artifacts.Store, db *store.Store) error {
	sub, err := hub.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe for snapshot: %w", err)
	}
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	for {
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("snapshot: no frame from source %s within %s", sourceID, snapshotTimeout)
		case frame := <-sub.Frames():
			if frame == nil {
				continue
			}
			if frame.SourceID != sourceID {
				frame.Release()
				continue
			}
			data := append([]byte(nil), frame.Data...)
			frame.Release()

			artifact, err := artifactStore.Save(sourceID, data)
			if err != nil {
				return fmt.Errorf("save snapshot artifact: %w", err)
			}
			return db.SaveSnapshot(ctx, sourceID, artifact)
		}
	}
}

// runSnapshotLoop takes a periodic snapshot of every source pool
// currently reports health for, under the distributed "snapshot-capture"
// job lock so only one instance in a multi-instance deployment does the
// work per tick.
func runSnapshotLoop(ctx context.Context, interval time.Duration, pool *capture.Pool, hub *broadcast.Hub, artifactStore artifacts.Store, db *store.Store, runner *scheduler.Runner) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	job := func(jobCtx context.Context) error {
		for _, h := range pool.Health() {
			if err := captureSnapshot(jobCtx, h.SourceID, hub, artifactStore, db); err != nil {
				slog.Warn("periodic snapshot failed", "source_id", h.SourceID, "error", err)
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.Run(ctx, snapshotJobDefinition(), job); err != nil {
				slog.Warn("snapshot job execution failed", "error", err)
			}
		}
	}
}
