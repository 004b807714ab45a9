// Package pipeline holds the configuration, schedulers, worker pools, and
// recovery sweeps shared by the fetch, enrich, and brief pipelines.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"briefingcore/internal/pkg/config"
)

// FetchConfig controls the fetch pipeline's scheduler, queue, and workers
// (spec.md §6, "fetch.*" keys).
type FetchConfig struct {
	SchedulerInterval time.Duration
	QueueCapacity     int
	WorkerCount       int
	BatchSize         int
	StuckThresholdMin int
}

// EnrichConfig controls the enrich pipeline ("enrich.*" keys).
type EnrichConfig struct {
	SchedulerInterval        time.Duration
	QueueCapacity            int
	WorkerCount              int
	BatchSize                int
	ContentLenThresholdForWebFetch int
}

// BriefConfig controls the brief pipeline ("brief.*" keys).
type BriefConfig struct {
	SchedulerInterval time.Duration
	QueueCapacity     int
	WorkerCount       int
	MaxReportItems    int
}

// RecoveryConfig controls the stuck-item recovery sweep, shared across
// all three pipelines ("recovery.*" and the per-pipeline stuck thresholds).
type RecoveryConfig struct {
	Interval          time.Duration
	StuckThresholdMin int
}

// HTTPConfig controls outbound HTTP calls made by fetchers ("http.*" keys).
type HTTPConfig struct {
	FetchTimeout time.Duration
}

// Config aggregates every pipeline's configuration, loaded once at startup.
type Config struct {
	Fetch    FetchConfig
	Enrich   EnrichConfig
	Brief    BriefConfig
	Recovery RecoveryConfig
	HTTP     HTTPConfig
}

// DefaultConfig returns the configuration defaults enumerated in spec.md §6.
func DefaultConfig() Config {
	return Config{
		Fetch: FetchConfig{
			SchedulerInterval: 60 * time.Second,
			QueueCapacity:     1000,
			WorkerCount:       4,
			BatchSize:         100,
			StuckThresholdMin: 10,
		},
		Enrich: EnrichConfig{
			SchedulerInterval:              60 * time.Second,
			QueueCapacity:                  500,
			WorkerCount:                    2,
			BatchSize:                      50,
			ContentLenThresholdForWebFetch: 2000,
		},
		Brief: BriefConfig{
			SchedulerInterval: 60 * time.Second,
			QueueCapacity:     100,
			WorkerCount:       2,
			MaxReportItems:    10,
		},
		Recovery: RecoveryConfig{
			Interval:          5 * time.Minute,
			StuckThresholdMin: 10,
		},
		HTTP: HTTPConfig{
			FetchTimeout: 30 * time.Second,
		},
	}
}

// Validate checks every field against the ranges implied by spec.md §6,
// collecting all violations rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("fetch.queueCapacity must be positive"))
	}
	if c.Fetch.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("fetch.workerCount must be positive"))
	}
	if c.Fetch.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("fetch.batchSize must be positive"))
	}
	if c.Enrich.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("enrich.queueCapacity must be positive"))
	}
	if c.Enrich.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("enrich.workerCount must be positive"))
	}
	if c.Brief.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("brief.queueCapacity must be positive"))
	}
	if c.Brief.MaxReportItems <= 0 || c.Brief.MaxReportItems > 100 {
		errs = append(errs, fmt.Errorf("brief.maxReportItems out of range"))
	}
	if c.Recovery.Interval <= 0 {
		errs = append(errs, fmt.Errorf("recovery.intervalMs must be positive"))
	}
	if c.HTTP.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.fetchTimeoutSec must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}
	return nil
}

// LoadFromEnv loads Config from environment variables with the teacher's
// fail-open strategy: each key is parsed and validated independently; a
// missing or invalid value falls back to the default and is logged as a
// warning, never as an error. The returned Config is always valid.
func LoadFromEnv(logger *slog.Logger) Config {
	cfg := DefaultConfig()

	loadDuration := func(envKey string, cur *time.Duration, min, max time.Duration) {
		result := config.LoadEnvDuration(envKey, *cur, func(d time.Duration) error {
			return config.ValidateDuration(d, min, max)
		})
		*cur = result.Value.(time.Duration)
		for _, w := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("env_key", envKey), slog.String("warning", w))
		}
	}
	loadInt := func(envKey string, cur *int, min, max int) {
		result := config.LoadEnvInt(envKey, *cur, func(v int) error {
			return config.ValidateIntRange(v, min, max)
		})
		*cur = result.Value.(int)
		for _, w := range result.Warnings {
			logger.Warn("configuration fallback applied", slog.String("env_key", envKey), slog.String("warning", w))
		}
	}

	loadDuration("FETCH_SCHEDULER_INTERVAL_MS", &cfg.Fetch.SchedulerInterval, time.Second, time.Hour)
	loadInt("FETCH_QUEUE_CAPACITY", &cfg.Fetch.QueueCapacity, 1, 100000)
	loadInt("FETCH_WORKER_COUNT", &cfg.Fetch.WorkerCount, 1, 64)
	loadInt("FETCH_BATCH_SIZE", &cfg.Fetch.BatchSize, 1, 10000)
	loadInt("FETCH_STUCK_THRESHOLD_MIN", &cfg.Fetch.StuckThresholdMin, 1, 1440)

	loadDuration("ENRICH_SCHEDULER_INTERVAL_MS", &cfg.Enrich.SchedulerInterval, time.Second, time.Hour)
	loadInt("ENRICH_QUEUE_CAPACITY", &cfg.Enrich.QueueCapacity, 1, 100000)
	loadInt("ENRICH_WORKER_COUNT", &cfg.Enrich.WorkerCount, 1, 64)
	loadInt("ENRICH_BATCH_SIZE", &cfg.Enrich.BatchSize, 1, 10000)
	loadInt("ENRICH_CONTENT_LEN_THRESHOLD_FOR_WEB_FETCH", &cfg.Enrich.ContentLenThresholdForWebFetch, 0, 1000000)

	loadDuration("BRIEF_SCHEDULER_INTERVAL_MS", &cfg.Brief.SchedulerInterval, time.Second, time.Hour)
	loadInt("BRIEF_QUEUE_CAPACITY", &cfg.Brief.QueueCapacity, 1, 100000)
	loadInt("BRIEF_WORKER_COUNT", &cfg.Brief.WorkerCount, 1, 64)
	loadInt("BRIEF_MAX_REPORT_ITEMS", &cfg.Brief.MaxReportItems, 1, 100)

	loadDuration("RECOVERY_INTERVAL_MS", &cfg.Recovery.Interval, time.Second, time.Hour)
	loadInt("RECOVERY_STUCK_THRESHOLD_MIN", &cfg.Recovery.StuckThresholdMin, 1, 1440)
	cfg.Fetch.StuckThresholdMin = cfg.Recovery.StuckThresholdMin

	loadDuration("HTTP_FETCH_TIMEOUT_SEC", &cfg.HTTP.FetchTimeout, time.Second, 5*time.Minute)

	if err := cfg.Validate(); err != nil {
		logger.Warn("configuration still invalid after fallback, using defaults", slog.Any("error", err))
		return DefaultConfig()
	}
	return cfg
}

// yamlOverlay mirrors Config's fields for optional file-based overrides.
// Every field is a pointer so an absent YAML key leaves the corresponding
// Config field untouched rather than zeroing it out.
type yamlOverlay struct {
	Fetch struct {
		SchedulerIntervalSec *int `yaml:"schedulerIntervalSec"`
		QueueCapacity        *int `yaml:"queueCapacity"`
		WorkerCount          *int `yaml:"workerCount"`
		BatchSize            *int `yaml:"batchSize"`
	} `yaml:"fetch"`
	Enrich struct {
		SchedulerIntervalSec *int `yaml:"schedulerIntervalSec"`
		QueueCapacity        *int `yaml:"queueCapacity"`
		WorkerCount          *int `yaml:"workerCount"`
		BatchSize            *int `yaml:"batchSize"`
	} `yaml:"enrich"`
	Brief struct {
		SchedulerIntervalSec *int `yaml:"schedulerIntervalSec"`
		QueueCapacity        *int `yaml:"queueCapacity"`
		WorkerCount          *int `yaml:"workerCount"`
		MaxReportItems       *int `yaml:"maxReportItems"`
	} `yaml:"brief"`
}

// LoadYAMLOverlay reads an optional deployment-specific tuning file (e.g. to
// widen queue capacity or worker counts per environment without a restart's
// worth of env-var plumbing) and applies it on top of cfg, the way the
// teacher's LoadSecurityConfig layers a YAML file over hardcoded defaults.
// A missing path is not an error: the caller passes an empty path when no
// override file is configured. cfg is revalidated after the overlay and
// left unchanged if the result is invalid.
func LoadYAMLOverlay(path string, cfg *Config, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config overlay %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing config overlay %s: %w", path, err)
	}

	candidate := *cfg
	applySec := func(dst *time.Duration, src *int) {
		if src != nil {
			*dst = time.Duration(*src) * time.Second
		}
	}
	applyInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	applySec(&candidate.Fetch.SchedulerInterval, overlay.Fetch.SchedulerIntervalSec)
	applyInt(&candidate.Fetch.QueueCapacity, overlay.Fetch.QueueCapacity)
	applyInt(&candidate.Fetch.WorkerCount, overlay.Fetch.WorkerCount)
	applyInt(&candidate.Fetch.BatchSize, overlay.Fetch.BatchSize)

	applySec(&candidate.Enrich.SchedulerInterval, overlay.Enrich.SchedulerIntervalSec)
	applyInt(&candidate.Enrich.QueueCapacity, overlay.Enrich.QueueCapacity)
	applyInt(&candidate.Enrich.WorkerCount, overlay.Enrich.WorkerCount)
	applyInt(&candidate.Enrich.BatchSize, overlay.Enrich.BatchSize)

	applySec(&candidate.Brief.SchedulerInterval, overlay.Brief.SchedulerIntervalSec)
	applyInt(&candidate.Brief.QueueCapacity, overlay.Brief.QueueCapacity)
	applyInt(&candidate.Brief.WorkerCount, overlay.Brief.WorkerCount)
	applyInt(&candidate.Brief.MaxReportItems, overlay.Brief.MaxReportItems)

	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("config overlay %s produced invalid configuration: %w", path, err)
	}
	logger.Info("applied configuration overlay", slog.String("path", path))
	*cfg = candidate
	return nil
}
