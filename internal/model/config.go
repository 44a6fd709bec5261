package model

import (
	"fmt"
	"time"
)

// FetchMode selects how candidates are pulled from the source table.
type FetchMode string

const (
	// FetchLatest reads the most recent N rows unconditionally.
	FetchLatest FetchMode = "latest"
	// FetchUnprocessed reads rows not yet flagged processed within the
	// recency window. Only meaningful when the source table carries a
	// processed column.
	FetchUnprocessed FetchMode = "unprocessed"
)

// Rubric selects the evaluation policy.
type Rubric string

const (
	// RubricInclusive passes broad crypto-adjacent content; ties pass.
	RubricInclusive Rubric = "inclusive"
	// RubricStrict passes only enumerated market-moving events; ties block.
	RubricStrict Rubric = "strict"
)

// ResponseFormat selects how the evaluator answers.
type ResponseFormat string

const (
	// FormatJSON expects a JSON object with a decision field.
	FormatJSON ResponseFormat = "json"
	// FormatText expects free text starting with PASS or BLOCK.
	FormatText ResponseFormat = "text"
)

// MarkPolicy controls when the source row's processed flag is flipped.
type MarkPolicy string

const (
	// MarkNever leaves the source table untouched.
	MarkNever MarkPolicy = "never"
	// MarkStored flips the flag only after a successful archive insert.
	MarkStored MarkPolicy = "stored"
	// MarkHandled also flips it for blocked and duplicate candidates so
	// they are never re-evaluated.
	MarkHandled MarkPolicy = "handled"
)

// RetentionOrder selects which timestamp defines "oldest" during pruning.
type RetentionOrder string

const (
	// OrderByPublished prunes by the original publish time.
	OrderByPublished RetentionOrder = "original_published_at"
	// OrderByProcessed prunes by the archive insert time, for feeds whose
	// publish timestamps are unreliable.
	OrderByProcessed RetentionOrder = "processed_at"
)

// Config is the full deployment profile. The historical deployments differed
// only in table names, rubric wording, and dedup/retention details; every one
// of those knobs is an explicit field here.
type Config struct {
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Tables    TableConfig     `yaml:"tables" mapstructure:"tables"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig describes the data store connection.
type DatabaseConfig struct {
	// URL is a postgres DSN, or a sqlite:// path for local runs.
	URL string `yaml:"url" mapstructure:"url"`
}

// TableConfig names the two external tables.
type TableConfig struct {
	Source      string `yaml:"source" mapstructure:"source"`
	Destination string `yaml:"destination" mapstructure:"destination"`
}

// PipelineConfig tunes the poll loop and per-item policies.
type PipelineConfig struct {
	BatchLimit         int        `yaml:"batch_limit" mapstructure:"batch_limit"`
	RecencyWindowHours int        `yaml:"recency_window_hours" mapstructure:"recency_window_hours"`
	CycleSeconds       int        `yaml:"cycle_seconds" mapstructure:"cycle_seconds"`
	MaxFailures        int        `yaml:"max_failures" mapstructure:"max_failures"`
	FetchMode          FetchMode  `yaml:"fetch_mode" mapstructure:"fetch_mode"`
	DedupKeys          []string   `yaml:"dedup_keys" mapstructure:"dedup_keys"`
	MarkPolicy         MarkPolicy `yaml:"mark_policy" mapstructure:"mark_policy"`
	DefaultTicker      string     `yaml:"default_ticker" mapstructure:"default_ticker"`
	ProcessingVersion  string     `yaml:"processing_version" mapstructure:"processing_version"`
}

// RecencyWindow returns the dedup/fetch window as a duration.
func (p PipelineConfig) RecencyWindow() time.Duration {
	return time.Duration(p.RecencyWindowHours) * time.Hour
}

// CycleInterval returns the target cadence of the poll loop.
func (p PipelineConfig) CycleInterval() time.Duration {
	return time.Duration(p.CycleSeconds) * time.Second
}

// RetentionConfig bounds the destination table.
type RetentionConfig struct {
	Ceiling int            `yaml:"ceiling" mapstructure:"ceiling"`
	Order   RetentionOrder `yaml:"order" mapstructure:"order"`
}

// LLMConfig describes the model endpoint and the evaluation policy.
type LLMConfig struct {
	Provider  string         `yaml:"provider" mapstructure:"provider"`
	Model     string         `yaml:"model" mapstructure:"model"`
	APIKey    string         `yaml:"-" mapstructure:"-"`
	BaseURL   string         `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int            `yaml:"timeout" mapstructure:"timeout"` // seconds
	Rubric    Rubric         `yaml:"rubric" mapstructure:"rubric"`
	Format    ResponseFormat `yaml:"format" mapstructure:"format"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// DedupKey values accepted in PipelineConfig.DedupKeys, checked in order.
const (
	DedupByLink     = "link"
	DedupByHeadline = "headline"
	DedupByID       = "id"
)

// DefaultConfig returns the profile of the main crypto deployment.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{},
		Tables: TableConfig{
			Source:      "crypto_news_articles",
			Destination: "crypto_clean_articles",
		},
		Pipeline: PipelineConfig{
			BatchLimit:         20,
			RecencyWindowHours: 24,
			CycleSeconds:       60,
			MaxFailures:        3,
			FetchMode:          FetchLatest,
			DedupKeys:          []string{DedupByLink, DedupByHeadline, DedupByID},
			MarkPolicy:         MarkNever,
			DefaultTicker:      "BTC",
			ProcessingVersion:  "1.0",
		},
		Retention: RetentionConfig{
			Ceiling: 100,
			Order:   OrderByPublished,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  30,
			Rubric:   RubricInclusive,
			Format:   FormatJSON,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the parts of the profile without safe fallbacks. A broken
// profile is fatal at startup, before the loop ever runs.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set DATABASE_URL)")
	}
	if c.Tables.Source == "" || c.Tables.Destination == "" {
		return fmt.Errorf("source and destination table names are required")
	}
	if c.Pipeline.BatchLimit < 1 {
		return fmt.Errorf("batch_limit must be at least 1, got %d", c.Pipeline.BatchLimit)
	}
	if c.Retention.Ceiling < 1 {
		return fmt.Errorf("retention ceiling must be at least 1, got %d", c.Retention.Ceiling)
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm provider is required")
	}
	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	switch c.Pipeline.MarkPolicy {
	case MarkNever, MarkStored, MarkHandled:
	default:
		return fmt.Errorf("unknown mark_policy: %s", c.Pipeline.MarkPolicy)
	}
	switch c.Pipeline.FetchMode {
	case FetchLatest, FetchUnprocessed:
	default:
		return fmt.Errorf("unknown fetch_mode: %s", c.Pipeline.FetchMode)
	}
	for _, key := range c.Pipeline.DedupKeys {
		switch key {
		case DedupByLink, DedupByHeadline, DedupByID:
		default:
			return fmt.Errorf("unknown dedup key: %s", key)
		}
	}
	return nil
}
