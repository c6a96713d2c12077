// internal/orchestrator/service.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"ucap-workers/internal/common/observability"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator/aggregator"
	"ucap-workers/internal/orchestrator/inference"
	"ucap-workers/internal/orchestrator/selector"
	"ucap-workers/internal/sources"
)

// Entry point names, as used in metric attributes.
const (
	EntryQuery   = "query"
	EntryNLQuery = "nl_query"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config bounds the per-request deadline.
type Config struct {
	DefaultTimeoutMs int
	MinTimeoutMs     int
	MaxTimeoutMs     int
}

// QueryRequest is a structured cross-system query.
type QueryRequest struct {
	Filter    map[string]interface{}
	Systems   []string
	TimeoutMs *int
}

// NLRequest is a free-text query. DefaultFilters fill what inference leaves
// open; Systems and TimeoutMs, when set, win over inferred values.
type NLRequest struct {
	Text           string
	DefaultFilters map[string]interface{}
	Systems        []string
	TimeoutMs      *int
}

// Service wires selection, inference and aggregation into the two query
// entry points. It is safe for concurrent use.
type Service struct {
	config     Config
	registry   *sources.Registry
	selector   *selector.Selector
	aggregator *aggregator.Aggregator
	inferencer *inference.Inferencer
	obs        *observability.Observability
	logger     Logger
}

func NewService(
	cfg Config,
	registry *sources.Registry,
	sel *selector.Selector,
	agg *aggregator.Aggregator,
	inf *inference.Inferencer,
	obs *observability.Observability,
	log Logger,
) *Service {
	if cfg.MinTimeoutMs == 0 {
		cfg.MinTimeoutMs = inference.MinTimeoutMs
	}
	if cfg.MaxTimeoutMs == 0 {
		cfg.MaxTimeoutMs = inference.MaxTimeoutMs
	}
	if cfg.DefaultTimeoutMs == 0 {
		cfg.DefaultTimeoutMs = 5000
	}
	return &Service{
		config:     cfg,
		registry:   registry,
		selector:   sel,
		aggregator: agg,
		inferencer: inf,
		obs:        obs,
		logger:     log,
	}
}

// QueryAcrossSystems validates the request and queries the selected
// systems. The result is always non-nil.
func (s *Service) QueryAcrossSystems(ctx context.Context, req QueryRequest) *models.UnifiedResult {
	start := time.Now()

	systems, filter, warnings := s.selector.Resolve(req.Systems, req.Filter)
	timeoutMs := s.timeout(req.TimeoutMs, nil)

	result := s.dispatch(ctx, systems, filter, timeoutMs)
	result.Warnings = append(warnings, result.Warnings...)
	result.Metrics.API = apiMetrics(start, timeoutMs, systems, filter)

	s.obs.RecordQuery(ctx, EntryQuery, result.Metrics.API.DurationMs, result.Metrics.FailCount)
	return result
}

// NLQuery infers a filter from free text, then queries like
// QueryAcrossSystems. Inference problems only show up as warnings and in
// the llm metrics.
func (s *Service) NLQuery(ctx context.Context, req NLRequest) *models.UnifiedResult {
	start := time.Now()

	inferred := s.inferencer.Infer(ctx, req.Text, req.DefaultFilters)
	warnings := append([]string{}, inferred.Warnings...)

	systems := inferred.Systems
	if len(req.Systems) > 0 {
		var systemWarnings []string
		systems, systemWarnings = s.selector.ValidateSystems(req.Systems)
		warnings = append(warnings, systemWarnings...)
	} else if len(systems) == 0 {
		systems = append([]models.SystemType(nil), models.AllSystems...)
	}

	timeoutMs := s.timeout(req.TimeoutMs, inferred.TimeoutMs)

	s.logger.Debug("Natural-language query resolved", map[string]interface{}{
		"systems":   systems,
		"filter":    inferred.Filter.ToMap(),
		"timeoutMs": timeoutMs,
		"llmStatus": inferred.Metrics.LLMStatus,
	})

	result := s.dispatch(ctx, systems, inferred.Filter, timeoutMs)
	result.Warnings = append(warnings, result.Warnings...)

	llm := inferred.Metrics
	result.Metrics.LLM = &llm
	result.Metrics.API = apiMetrics(start, timeoutMs, systems, inferred.Filter)

	s.obs.RecordQuery(ctx, EntryNLQuery, result.Metrics.API.DurationMs, result.Metrics.FailCount)
	return result
}

// Systems lists the systems that have a registered source.
func (s *Service) Systems() []models.SystemType {
	return s.registry.Systems()
}

func (s *Service) dispatch(ctx context.Context, systems []models.SystemType, filter models.FilterSpec, timeoutMs int) *models.UnifiedResult {
	srcs := s.registry.Resolve(systems)

	var skipped []string
	if len(srcs) < len(systems) {
		registered := make(map[models.SystemType]struct{}, len(srcs))
		for _, src := range srcs {
			registered[src.System()] = struct{}{}
		}
		for _, system := range systems {
			if _, ok := registered[system]; !ok {
				skipped = append(skipped, fmt.Sprintf("system '%s' is not enabled, skipped", system))
			}
		}
	}

	result := s.aggregator.Execute(ctx, srcs, filter, timeoutMs)
	result.Warnings = append(skipped, result.Warnings...)
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return result
}

// timeout picks the explicit value, then the inferred one, then the
// default, and clamps the result to the configured bounds.
func (s *Service) timeout(explicit, inferred *int) int {
	ms := s.config.DefaultTimeoutMs
	switch {
	case explicit != nil:
		ms = *explicit
	case inferred != nil:
		ms = *inferred
	}
	if ms < s.config.MinTimeoutMs {
		ms = s.config.MinTimeoutMs
	}
	if ms > s.config.MaxTimeoutMs {
		ms = s.config.MaxTimeoutMs
	}
	return ms
}

func apiMetrics(start time.Time, timeoutMs int, systems []models.SystemType, filter models.FilterSpec) *models.APIMetrics {
	names := make([]string, 0, len(systems))
	for _, s := range systems {
		names = append(names, string(s))
	}

	m := &models.APIMetrics{
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		TimeoutMs:  timeoutMs,
		Systems:    names,
		EntityType: string(filter.EntityType),
	}
	if filter.Limit > 0 {
		limit := filter.Limit
		m.Limit = &limit
	}
	return m
}
