// Package retention provides periodic TTL-based cleanup of expired job
// locks, finished job executions, and snapshot artifacts.
package retention

// Config holds retention policy configuration.
type Config struct {
	// JobLocksTTLHours is the time-to-live for released/expired job_locks
	// rows. Default: 24 (1 day).
	JobLocksTTLHours int

	// JobExecutionsTTLHours is the time-to-live for job_executions rows.
	// Default: 168 (7 days).
	JobExecutionsTTLHours int

	// SnapshotsTTLHours is the time-to-live for snapshot rows (the
	// underlying blob is not deleted by this package). Default: 168
	// (7 days).
	SnapshotsTTLHours int

	// CleanupIntervalHours is the interval between cleanup runs.
	// Default: 24 (once per day).
	CleanupIntervalHours int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		JobLocksTTLHours:      24,
		JobExecutionsTTLHours: 168,
		SnapshotsTTLHours:     168,
		CleanupIntervalHours:  24,
	}
}

// WithDefaults returns a copy of the config with zero values replaced by
// defaults.
func (c Config) WithDefaults() Config {
	result := c
	if result.JobLocksTTLHours <= 0 {
		result.JobLocksTTLHours = 24
	}
	if result.JobExecutionsTTLHours <= 0 {
		result.JobExecutionsTTLHours = 168
	}
	if result.SnapshotsTTLHours <= 0 {
		result.SnapshotsTTLHours = 168
	}
	if result.CleanupIntervalHours <= 0 {
		result.CleanupIntervalHours = 24
	}
	return result
}
