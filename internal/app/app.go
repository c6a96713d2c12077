// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"ucap-workers/internal/api"
	"ucap-workers/internal/common/config"
	"ucap-workers/internal/common/database"
	commonhttp "ucap-workers/internal/common/http"
	"ucap-workers/internal/common/llm"
	"ucap-workers/internal/common/logger"
	"ucap-workers/internal/common/observability"
	"ucap-workers/internal/orchestrator"
	"ucap-workers/internal/orchestrator/aggregator"
	"ucap-workers/internal/orchestrator/inference"
	"ucap-workers/internal/orchestrator/selector"
	"ucap-workers/internal/sources"
)

// App holds the process-wide query stack.
type App struct {
	Config  *config.Config
	Service *orchestrator.Service
	Cache   *sources.Cache
	Checks  map[string]api.Pinger

	closers []func() error
	logger  logger.Logger
}

// Build connects the configured stores and assembles the orchestrator.
// obs may be nil.
func Build(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Checks: make(map[string]api.Pinger),
		logger: log,
	}

	stores, cache, err := a.connectStores(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Cache = cache

	registry, err := sources.NewRegistryFromConfig(cfg, stores, cache, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build source registry: %w", err)
	}

	sel := selector.New(log)
	agg := aggregator.New(log, obs)

	var model inference.ModelClient
	if cfg.LLM.APIKey != "" {
		model = llm.NewClient(llm.Config{
			BaseURL:           cfg.LLM.BaseURL,
			APIKey:            cfg.LLM.APIKey,
			Model:             cfg.LLM.Model,
			MaxTokens:         cfg.LLM.MaxTokens,
			Temperature:       cfg.LLM.Temperature,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		}, commonhttp.NewClient(config.GetDuration(cfg.LLM.Timeout)+5*time.Second), log)
	} else {
		log.Warn("LLM api key not configured, natural-language queries use keyword rules only", nil)
	}

	inf := inference.New(inference.Config{
		TimeEnhancements: cfg.Features.TimeEnhancements(),
		NarrowTimeLLM:    cfg.Features.NarrowTimeLLM(),
		Model:            cfg.LLM.Model,
		ModelTimeout:     config.GetDuration(cfg.LLM.Timeout),
		NarrowTimeout:    config.GetDuration(cfg.LLM.NarrowTimeout),
		MaxLimit:         cfg.Query.MaxLimit,
		DefaultLimit:     cfg.Query.DefaultLimit,
		Location:         cfg.Location(),
	}, model, sel, log)

	a.Service = orchestrator.NewService(orchestrator.Config{
		DefaultTimeoutMs: cfg.Query.DefaultTimeoutMs,
		MinTimeoutMs:     cfg.Query.MinTimeoutMs,
		MaxTimeoutMs:     cfg.Query.MaxTimeoutMs,
	}, registry, sel, agg, inf, obs, log)

	log.Info("query stack ready", map[string]interface{}{
		"systems":  registry.Systems(),
		"llmModel": cfg.LLM.Model,
	})
	return a, nil
}

func (a *App) connectStores(ctx context.Context, cfg *config.Config) (sources.Stores, *sources.Cache, error) {
	var stores sources.Stores

	if usesBackend(cfg, config.BackendPostgres) {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return stores, nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Ping(ctx); err != nil {
			a.logger.Warn("postgres not reachable at startup", map[string]interface{}{"error": err.Error()})
		}
		stores.Postgres = sources.NewPostgresStore(pg)
		a.Checks["postgres"] = pg
	}

	if usesBackend(cfg, config.BackendElasticsearch) {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return stores, nil, err
		}
		stores.Elasticsearch = es.Client
		a.Checks["elasticsearch"] = es
	}

	var cache *sources.Cache
	if cfg.Database.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return stores, nil, err
		}
		a.closers = append(a.closers, rc.Close)
		cache = sources.NewCache(rc.Client, sources.CacheTTLs(cfg), a.logger)
		a.Checks["redis"] = rc
	} else {
		cache = sources.NewCache(nil, nil, a.logger)
	}

	return stores, cache, nil
}

func usesBackend(cfg *config.Config, backend string) bool {
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		b := sc.Backend
		if b == "" {
			b = config.BackendPostgres
		}
		if b == backend {
			return true
		}
	}
	return false
}

// Close releases every store connection opened by Build.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}
