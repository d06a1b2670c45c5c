package store

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	id               TEXT PRIMARY KEY,
	url              TEXT NOT NULL,
	frame_rate       INTEGER NOT NULL DEFAULT 5,
	quality          INTEGER NOT NULL DEFAULT 80,
	width            INTEGER NOT NULL DEFAULT 0,
	height           INTEGER NOT NULL DEFAULT 0,
	accel            TEXT NOT NULL DEFAULT 'auto',
	rtsp_transport   TEXT NOT NULL DEFAULT 'auto',
	timeout_ms       INTEGER NOT NULL DEFAULT 10000,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	schedule         TEXT NOT NULL,
	timeout_ms       INTEGER NOT NULL DEFAULT 60000,
	grace_period_ms  INTEGER NOT NULL DEFAULT 5000,
	max_retries      INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_executions (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL REFERENCES jobs(id),
	instance_id      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	started_at       TEXT,
	finished_at      TEXT,
	attempt          INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_job_executions_job_id ON job_executions(job_id);

CREATE TABLE IF NOT EXISTS job_locks (
	id                 TEXT PRIMARY KEY,
	job_id             TEXT NOT NULL REFERENCES jobs(id),
	execution_id       TEXT NOT NULL,
	instance_id        TEXT NOT NULL,
	locked_at          TEXT NOT NULL,
	lease_expires_at   TEXT NOT NULL,
	status             TEXT NOT NULL,
	released_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_locks_job_id_status ON job_locks(job_id, status);

CREATE TABLE IF NOT EXISTS analysis_events (
	id                 TEXT PRIMARY KEY,
	source_id          TEXT NOT NULL REFERENCES streams(id),
	type               TEXT NOT NULL,
	severity           INTEGER NOT NULL,
	confidence         REAL NOT NULL DEFAULT 0,
	metadata           TEXT NOT NULL DEFAULT '{}',
	occurred_at        TEXT NOT NULL,
	previous_event_id  TEXT NOT NULL DEFAULT '',
	suppressed         INTEGER NOT NULL DEFAULT 0,
	template           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_analysis_events_source_occurred ON analysis_events(source_id, occurred_at);

CREATE TABLE IF NOT EXISTS notification_deliveries (
	id                 TEXT PRIMARY KEY,
	event_id           TEXT NOT NULL REFERENCES analysis_events(id),
	channel            TEXT NOT NULL,
	status             TEXT NOT NULL,
	attempts           INTEGER NOT NULL DEFAULT 0,
	external_id        TEXT NOT NULL DEFAULT '',
	last_error         TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL,
	UNIQUE(event_id, channel)
);

CREATE TABLE IF NOT EXISTS snapshots (
	uri                TEXT PRIMARY KEY,
	source_id          TEXT NOT NULL REFERENCES streams(id),
	size_bytes         INTEGER NOT NULL,
	content_type       TEXT NOT NULL DEFAULT '',
	checksum           TEXT NOT NULL,
	etag               TEXT NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_source_created ON snapshots(source_id, created_at);
`

// migrate creates every table the core reads and writes, idempotently.
// There is exactly one schema generation; additive columns in future
// would need a real migration runner, which is out of scope here.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
