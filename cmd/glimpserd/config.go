package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/glimpser/glimpser-go/internal/model"
	"github.com/glimpser/glimpser-go/internal/rules"
)

// fileConfig is the on-disk JSON shape for sources, rules, and scheduled
// jobs. It exists as a translation layer in front of internal/model and
// internal/rules so those packages never need json tags of their own.
type fileConfig struct {
	Sources    []sourceDTO    `json:"sources"`
	Rules      []ruleDTO      `json:"rules"`
	Dedup      dedupDTO       `json:"deduplication"`
	QuietHours quietHoursDTO  `json:"quiet_hours"`
	Jobs       []jobDTO       `json:"jobs"`
}

type sourceDTO struct {
	ID              string   `json:"id"`
	URL             string   `json:"url"`
	ExtractorURL    string   `json:"extractor_url"`
	FrameRate       int      `json:"frame_rate"`
	Quality         int      `json:"quality"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Accel           string   `json:"accel"`
	RTSPTransport   string   `json:"rtsp_transport"`
	TimeoutMs       int      `json:"timeout_ms"`
	InputOptions    []string `json:"input_options"`
	BufferSizeBytes int      `json:"buffer_size_bytes"`
}

func (d sourceDTO) toModel() model.SourceConfig {
	return model.SourceConfig{
		ID:              d.ID,
		URL:             d.URL,
		ExtractorURL:    d.ExtractorURL,
		FrameRate:       d.FrameRate,
		Quality:         d.Quality,
		Width:           d.Width,
		Height:          d.Height,
		Accel:           model.AccelMode(d.Accel),
		RTSPTransport:   model.RTSPTransport(d.RTSPTransport),
		TimeoutMs:       d.TimeoutMs,
		InputOptions:    d.InputOptions,
		BufferSizeBytes: d.BufferSizeBytes,
	}
}

type conditionDTO struct {
	Type          string  `json:"type"`
	EventType     string  `json:"event_type"`
	SourceID      string  `json:"source_id"`
	Matches       bool    `json:"matches"`
	Severity      string  `json:"severity"`
	Comparator    string  `json:"comparator"`
	Confidence    float64 `json:"confidence"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Days          []int   `json:"days"`
	WindowMs      int64   `json:"window_ms"`
	MinCount      int     `json:"min_count"`
	MetadataKey   string  `json:"metadata_key"`
	MetadataValue string  `json:"metadata_value"`
}

func (d conditionDTO) toModel() rules.Condition {
	severity, _ := model.ParseSeverity(d.Severity)
	return rules.Condition{
		Type:          rules.ConditionType(d.Type),
		EventType:     d.EventType,
		SourceID:      d.SourceID,
		Matches:       d.Matches,
		Severity:      severity,
		Comparator:    rules.Comparator(d.Comparator),
		Confidence:    d.Confidence,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		Days:          d.Days,
		WindowMs:      d.WindowMs,
		MinCount:      d.MinCount,
		MetadataKey:   d.MetadataKey,
		MetadataValue: d.MetadataValue,
	}
}

type actionDTO struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	MetadataKey   string `json:"metadata_key"`
	MetadataValue string `json:"metadata_value"`
	Template      string `json:"template"`
	MaxPerHour    int    `json:"max_per_hour"`
}

func (d actionDTO) toModel() rules.Action {
	severity, _ := model.ParseSeverity(d.Severity)
	return rules.Action{
		Type:          rules.ActionType(d.Type),
		Severity:      severity,
		MetadataKey:   d.MetadataKey,
		MetadataValue: d.MetadataValue,
		Template:      d.Template,
		MaxPerHour:    d.MaxPerHour,
	}
}

type ruleDTO struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Priority   int            `json:"priority"`
	Enabled    bool           `json:"enabled"`
	Conditions []conditionDTO `json:"conditions"`
	Actions    []actionDTO    `json:"actions"`
}

func (d ruleDTO) toModel() rules.Rule {
	conditions := make([]rules.Condition, len(d.Conditions))
	for i, c := range d.Conditions {
		conditions[i] = c.toModel()
	}
	actions := make([]rules.Action, len(d.Actions))
	for i, a := range d.Actions {
		actions[i] = a.toModel()
	}
	return rules.Rule{
		ID:         d.ID,
		Name:       d.Name,
		Priority:   d.Priority,
		Enabled:    d.Enabled,
		Conditions: conditions,
		Actions:    actions,
	}
}

type dedupDTO struct {
	Enabled    bool     `json:"enabled"`
	EventTypes []string `json:"event_types"`
	KeyFields  []string `json:"key_fields"`
	WindowMs   int64    `json:"window_ms"`
}

func (d dedupDTO) toModel() rules.DeduplicationConfig {
	return rules.DeduplicationConfig{
		Enabled:    d.Enabled,
		EventTypes: d.EventTypes,
		KeyFields:  d.KeyFields,
		WindowMs:   d.WindowMs,
	}
}

type quietHoursDTO struct {
	Enabled   bool        `json:"enabled"`
	StartTime string      `json:"start_time"`
	EndTime   string      `json:"end_time"`
	Days      []int       `json:"days"`
	Actions   []actionDTO `json:"actions"`
}

func (d quietHoursDTO) toModel() rules.QuietHoursConfig {
	actions := make([]rules.Action, len(d.Actions))
	for i, a := range d.Actions {
		actions[i] = a.toModel()
	}
	return rules.QuietHoursConfig{
		Enabled:   d.Enabled,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Days:      d.Days,
		Actions:   actions,
	}
}

type jobDTO struct {
	ID            string `json:"id"`
	Schedule      string `json:"schedule"`
	TimeoutMs     int    `json:"timeout_ms"`
	GracePeriodMs int    `json:"grace_period_ms"`
	MaxRetries    int    `json:"max_retries"`
	IntervalMs    int64  `json:"interval_ms"`
}

func (d jobDTO) toModel() model.JobDefinition {
	return model.JobDefinition{
		ID:            d.ID,
		Schedule:      d.Schedule,
		TimeoutMs:     d.TimeoutMs,
		GracePeriodMs: d.GracePeriodMs,
		MaxRetries:    d.MaxRetries,
	}
}

// interval returns the job's tick period, falling back to an hour if
// unset. There is no cron-expression evaluator in this module; Schedule
// is a descriptive label. Nothing in this command calls interval; jobs
// loaded from the config file are only persisted.
func (d jobDTO) interval() time.Duration {
	if d.IntervalMs <= 0 {
		return time.Hour
	}
	return time.Duration(d.IntervalMs) * time.Millisecond
}

func loadConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
