// Package store provides the persistent backend for streams, jobs, job
// executions, job locks, analysis events, notification deliveries, and
// snapshots, backed by modernc.org/sqlite (pure Go, no cgo).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config tunes the connection pool and pragma set applied on open.
type Config struct {
	Path            string
	MaxOpenConns    int
	BusyTimeout     time.Duration
	CacheSizeKB     int
	MMapSizeBytes   int64
	MinVersionFloor string
}

// DefaultConfig mirrors the tuning the core validates on connect: foreign
// keys on, WAL journaling, a 30s+ busy timeout, and a reasonable cache /
// mmap budget.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    10,
		BusyTimeout:     30 * time.Second,
		CacheSizeKB:     10000,
		MMapSizeBytes:   268435456,
		MinVersionFloor: "3.8.0",
	}
}

// Store wraps a *sql.DB with the schema and queries the core operates
// against.
type Store struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the SQLite database at cfg.Path, applies pragmas,
// validates them (warning rather than failing on mismatch), and runs the
// schema migration.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)&_pragma=busy_timeout(%d)&_pragma=cache_size(-%d)&_pragma=mmap_size(%d)",
		cfg.Path, cfg.BusyTimeout.Milliseconds(), cfg.CacheSizeKB, cfg.MMapSizeBytes,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	s.validatePragmas(ctx)

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need raw access
// (e.g. the retention sweep's bulk deletes).
func (s *Store) DB() *sql.DB {
	return s.db
}

type pragmaExpectation struct {
	name       string
	expected   string
	minVersion string
}

// validatePragmas queries each tuning pragma and the SQLite version once
// at connect, logging a warning on mismatch rather than failing: the
// pragmas set via the DSN above are requests, not guarantees, and an
// embedding application may have already opened the file with different
// settings.
func (s *Store) validatePragmas(ctx context.Context) {
	version, err := s.sqliteVersion(ctx)
	if err != nil {
		slog.Warn("store: failed to read sqlite_version()", "error", err)
		version = ""
	} else {
		slog.Info("store: sqlite version", "version", version)
	}

	if version != "" && s.cfg.MinVersionFloor != "" && !versionMeetsRequirement(version, s.cfg.MinVersionFloor) {
		slog.Warn("store: sqlite version below minimum floor", "version", version, "floor", s.cfg.MinVersionFloor)
	}

	expectations := []pragmaExpectation{
		{name: "foreign_keys", expected: "1"},
		{name: "synchronous", expected: "1"},
		{name: "cache_size", expected: strconv.Itoa(-s.cfg.CacheSizeKB)},
		{name: "temp_store", expected: "2"},
		{name: "busy_timeout", expected: strconv.FormatInt(s.cfg.BusyTimeout.Milliseconds(), 10)},
		{name: "mmap_size", expected: strconv.FormatInt(s.cfg.MMapSizeBytes, 10), minVersion: "3.7.17"},
	}

	for _, p := range expectations {
		if p.minVersion != "" && version != "" && !versionMeetsRequirement(version, p.minVersion) {
			slog.Warn("store: skipping pragma validation, sqlite too old", "pragma", p.name, "min_version", p.minVersion, "version", version)
			continue
		}
		actual, err := s.readPragma(ctx, p.name)
		if err != nil {
			slog.Warn("store: failed to read pragma", "pragma", p.name, "error", err)
			continue
		}
		if actual != p.expected {
			slog.Warn("store: pragma mismatch", "pragma", p.name, "expected", p.expected, "actual", actual)
			continue
		}
		slog.Debug("store: pragma validated", "pragma", p.name, "value", actual)
	}
}

func (s *Store) sqliteVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	return version, err
}

func (s *Store) readPragma(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value)
	return value, err
}

// versionMeetsRequirement reports whether current is >= required,
// comparing dot-separated numeric components left to right.
func versionMeetsRequirement(current, required string) bool {
	currentParts, ok := parseVersion(current)
	if !ok {
		return false
	}
	requiredParts, ok := parseVersion(required)
	if !ok {
		return false
	}
	for i := 0; i < len(requiredParts); i++ {
		var c int
		if i < len(currentParts) {
			c = currentParts[i]
		}
		r := requiredParts[i]
		if c > r {
			return true
		}
		if c < r {
			return false
		}
	}
	return true
}

func parseVersion(v string) ([]int, bool) {
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
