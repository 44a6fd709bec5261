package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cryptobrief/refinery/internal/cache"
	"github.com/cryptobrief/refinery/internal/llm"
	"github.com/cryptobrief/refinery/internal/logging"
	"github.com/cryptobrief/refinery/internal/model"
	"github.com/cryptobrief/refinery/internal/pipeline"
	"github.com/cryptobrief/refinery/internal/store"
	"github.com/spf13/viper"
)

// setProfileDefaults registers every deployment profile key with viper.
// Values mirror model.DefaultConfig so defaults stay in one place; the
// registration is what lets AutomaticEnv see REFINERY_* overrides for them.
func setProfileDefaults() {
	def := model.DefaultConfig()

	viper.SetDefault("database.url", def.Database.URL)
	viper.SetDefault("tables.source", def.Tables.Source)
	viper.SetDefault("tables.destination", def.Tables.Destination)

	viper.SetDefault("pipeline.batch_limit", def.Pipeline.BatchLimit)
	viper.SetDefault("pipeline.recency_window_hours", def.Pipeline.RecencyWindowHours)
	viper.SetDefault("pipeline.cycle_seconds", def.Pipeline.CycleSeconds)
	viper.SetDefault("pipeline.max_failures", def.Pipeline.MaxFailures)
	viper.SetDefault("pipeline.fetch_mode", string(def.Pipeline.FetchMode))
	viper.SetDefault("pipeline.dedup_keys", def.Pipeline.DedupKeys)
	viper.SetDefault("pipeline.mark_policy", string(def.Pipeline.MarkPolicy))
	viper.SetDefault("pipeline.default_ticker", def.Pipeline.DefaultTicker)
	viper.SetDefault("pipeline.processing_version", def.Pipeline.ProcessingVersion)

	viper.SetDefault("retention.ceiling", def.Retention.Ceiling)
	viper.SetDefault("retention.order", string(def.Retention.Order))

	viper.SetDefault("llm.provider", def.LLM.Provider)
	viper.SetDefault("llm.model", def.LLM.Model)
	viper.SetDefault("llm.base_url", def.LLM.BaseURL)
	viper.SetDefault("llm.timeout", def.LLM.Timeout)
	viper.SetDefault("llm.rubric", string(def.LLM.Rubric))
	viper.SetDefault("llm.format", string(def.LLM.Format))

	viper.SetDefault("logging.level", def.Logging.Level)
	viper.SetDefault("logging.format", def.Logging.Format)
}

func unmarshalViper(cfg *model.Config) error {
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}
	return nil
}

// loadConfig assembles the deployment profile from defaults, the config
// file/environment (via viper), and the credential environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if err := unmarshalViper(cfg); err != nil {
		return nil, err
	}

	// Credentials come from the environment, never the config file.
	if u := os.Getenv("DATABASE_URL"); u != "" {
		cfg.Database.URL = u
	}
	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")

	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// buildProcessor wires the data store, model provider, and pipeline from the
// profile. The returned logger is the application root logger.
func buildProcessor(cfg *model.Config) (*pipeline.Processor, *slog.Logger, error) {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}

	archive := store.NewArchiveRepository(db, cfg.Tables.Destination)
	if err := archive.Migrate(); err != nil {
		return nil, nil, err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, nil, err
	}

	logger.Info("refinery initialized",
		"source_table", cfg.Tables.Source,
		"destination_table", cfg.Tables.Destination,
		"provider", provider.Name(),
		"model", cfg.LLM.Model,
		"rubric", cfg.LLM.Rubric,
		"batch_limit", cfg.Pipeline.BatchLimit,
		"retention_ceiling", cfg.Retention.Ceiling)

	proc := pipeline.NewProcessor(pipeline.Deps{
		Config:  cfg,
		LLM:     provider,
		Source:  store.NewSourceRepository(db, cfg.Tables.Source),
		Archive: archive,
		Seen:    cache.NewMemoryCache(cfg.Pipeline.RecencyWindow(), 10*time.Minute),
		Logger:  logger,
	})

	return proc, logger, nil
}
