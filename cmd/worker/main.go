package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"briefingcore/internal/domain/entity"
	pgRepo "briefingcore/internal/infra/adapter/persistence/postgres"
	"briefingcore/internal/infra/db"
	"briefingcore/internal/infra/enricher"
	"briefingcore/internal/infra/fetcher"
	"briefingcore/internal/infra/webbody"
	workerPkg "briefingcore/internal/infra/worker"
	"briefingcore/internal/observability/logging"
	"briefingcore/internal/pipeline"
	"briefingcore/internal/pipeline/brief"
	"briefingcore/internal/pipeline/enrich"
	"briefingcore/internal/pipeline/fetch"
	"briefingcore/internal/pipeline/recovery"
	"briefingcore/internal/pkg/queue"
	"briefingcore/internal/repository"
	"briefingcore/internal/usecase/credit"
	"briefingcore/internal/usecase/trigger"
)

func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM sources LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := pipeline.LoadFromEnv(logger)
	if err := pipeline.LoadYAMLOverlay(os.Getenv("CONFIG_OVERLAY_FILE"), &cfg, logger); err != nil {
		logger.Warn("ignoring invalid configuration overlay", slog.Any("error", err))
	}
	logger.Info("pipeline configuration loaded",
		slog.Duration("fetch_interval", cfg.Fetch.SchedulerInterval),
		slog.Duration("enrich_interval", cfg.Enrich.SchedulerInterval),
		slog.Duration("brief_interval", cfg.Brief.SchedulerInterval),
		slog.Duration("recovery_interval", cfg.Recovery.Interval))

	store := pgRepo.NewStore(database)
	credits := credit.New(store.Credits())

	health := workerPkg.NewHealthServer(healthAddr(), logger, database, staleAfterFor(cfg))

	var wg sync.WaitGroup
	startMetricsServer(ctx, &wg, logger)
	startHealthServer(ctx, &wg, logger, health)

	fetchQueue := queue.New[string](cfg.Fetch.QueueCapacity)
	enrichQueue := queue.New[string](cfg.Enrich.QueueCapacity)
	briefQueue := queue.New[string](cfg.Brief.QueueCapacity)

	runFetchPipeline(ctx, &wg, store, fetchQueue, cfg, logger, health)
	runEnrichPipeline(ctx, &wg, store, credits, enrichQueue, cfg, logger, health)
	runBriefPipeline(ctx, &wg, store, briefQueue, cfg, logger, health)

	sweep := recovery.New(store,
		time.Duration(cfg.Recovery.StuckThresholdMin)*time.Minute,
		time.Duration(cfg.Recovery.StuckThresholdMin)*time.Minute,
		time.Duration(cfg.Recovery.StuckThresholdMin)*time.Minute,
		logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Run(ctx, cfg.Recovery.Interval)
	}()

	triggerAPI := trigger.New(store, fetchQueue, enrichQueue, briefQueue, logger)
	_ = triggerAPI // exported for host-app embedding (spec.md's in-process TriggerAPI); not driven by this binary directly

	health.SetReady(true)
	logger.Info("worker started")

	<-ctx.Done()
	logger.Info("shutdown signal received, draining pipelines")
	wg.Wait()
	logger.Info("worker stopped")
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	if err := db.MigrateUp(database); err != nil {
		logger.Error("schema migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

func staleAfterFor(cfg pipeline.Config) time.Duration {
	longest := cfg.Fetch.SchedulerInterval
	if cfg.Enrich.SchedulerInterval > longest {
		longest = cfg.Enrich.SchedulerInterval
	}
	if cfg.Brief.SchedulerInterval > longest {
		longest = cfg.Brief.SchedulerInterval
	}
	return 3 * longest
}

func healthAddr() string {
	port := os.Getenv("HEALTH_PORT")
	if port == "" {
		port = "8081"
	}
	return fmt.Sprintf(":%s", port)
}

func startHealthServer(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, health *workerPkg.HealthServer) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := health.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
}

// runFetchPipeline wires the fetch scheduler, worker pool, and fetcher
// registry (spec.md §4.1): RSS and EMAIL are always registered, WEB is
// always registered over the shared webbody.Fetcher + enricher, and
// REDDIT registers only when OAuth credentials are present.
func runFetchPipeline(ctx context.Context, wg *sync.WaitGroup, store repository.Store, q *queue.Queue[string], cfg pipeline.Config, logger *slog.Logger, health *workerPkg.HealthServer) {
	registry := fetcher.NewRegistry()

	httpClient := &http.Client{
		Timeout: cfg.HTTP.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	registry.Register(entity.SourceTypeRSS, fetcher.NewRSS(httpClient))
	registry.Register(entity.SourceTypeEmail, fetcher.NewEmail())
	registry.Register(entity.SourceTypeWeb, fetcher.NewWeb(newWebBodyFetcher(cfg), newEnrichProvider(logger)))

	if reddit, ok := fetcher.NewReddit(httpClient, redditConfigFromEnv()); ok {
		registry.Register(entity.SourceTypeReddit, reddit)
		logger.Info("reddit fetcher enabled")
	} else {
		logger.Info("reddit fetcher disabled: no OAuth credentials")
	}

	scheduler := fetch.NewScheduler(store, q, cfg.Fetch.BatchSize, logger)
	scheduler.OnTick = func() { health.ReportTick("fetch") }
	workers := fetch.NewWorkerPool(store, q, registry, logger)

	wg.Add(2)
	go func() { defer wg.Done(); scheduler.Run(ctx, cfg.Fetch.SchedulerInterval) }()
	go func() { defer wg.Done(); workers.Run(ctx, cfg.Fetch.WorkerCount) }()
}

func runEnrichPipeline(ctx context.Context, wg *sync.WaitGroup, store repository.Store, credits *credit.Gate, q *queue.Queue[string], cfg pipeline.Config, logger *slog.Logger, health *workerPkg.HealthServer) {
	provider := newEnrichProvider(logger)
	webBody := newWebBodyFetcher(cfg)

	scheduler := enrich.NewScheduler(store, q, cfg.Enrich.BatchSize, logger)
	scheduler.OnTick = func() { health.ReportTick("enrich") }
	workers := enrich.NewWorkerPool(store, q, provider, webBody, credits, nil, cfg.Enrich.ContentLenThresholdForWebFetch, logger)

	wg.Add(2)
	go func() { defer wg.Done(); scheduler.Run(ctx, cfg.Enrich.SchedulerInterval) }()
	go func() { defer wg.Done(); workers.Run(ctx, cfg.Enrich.WorkerCount) }()
}

func runBriefPipeline(ctx context.Context, wg *sync.WaitGroup, store repository.Store, q *queue.Queue[string], cfg pipeline.Config, logger *slog.Logger, health *workerPkg.HealthServer) {
	scheduler := brief.NewScheduler(store, q, logger)
	scheduler.OnTick = func() { health.ReportTick("brief") }
	// No mailer.ReportMailer implementation ships in this core (spec.md
	// §6: SMTP transport is a host-app concern); briefings with email
	// delivery enabled simply have delivery skipped until a host wires one.
	workers := brief.NewWorkerPool(store, q, nil, cfg.Brief.MaxReportItems, logger)

	wg.Add(2)
	go func() { defer wg.Done(); scheduler.Run(ctx, cfg.Brief.SchedulerInterval) }()
	go func() { defer wg.Done(); workers.Run(ctx, cfg.Brief.WorkerCount) }()
}

// newEnrichProvider selects Claude or OpenAI via ENRICHER_TYPE (default
// claude), wrapping either in the Tracking decorator so every call is
// recorded through PrometheusUsageRecorder regardless of provider choice.
func newEnrichProvider(logger *slog.Logger) enricher.Provider {
	var inner enricher.Provider
	switch os.Getenv("ENRICHER_TYPE") {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when ENRICHER_TYPE=openai")
			os.Exit(1)
		}
		inner = enricher.NewOpenAI(apiKey)
	default:
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when ENRICHER_TYPE=claude")
			os.Exit(1)
		}
		inner = enricher.NewClaude(apiKey)
	}
	return enricher.NewTracking(inner, enricher.NewPrometheusUsageRecorder())
}

func newWebBodyFetcher(cfg pipeline.Config) *webbody.Fetcher {
	wbCfg := webbody.DefaultConfig()
	wbCfg.Timeout = cfg.HTTP.FetchTimeout
	return webbody.New(wbCfg)
}

func redditConfigFromEnv() fetcher.RedditConfig {
	return fetcher.RedditConfig{
		ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		ListingLimit: 25,
		MaxAge:       24 * time.Hour,
	}
}
