// Package aggregator fans a filter out to every selected source under one
// shared deadline and concatenates what comes back in time.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/common/observability"
	"ucap-workers/internal/models"
	"ucap-workers/internal/sources"
)

// Outcome statuses, as used in metric labels.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Aggregator is stateless between calls.
type Aggregator struct {
	logger Logger
	obs    *observability.Observability
}

func New(log Logger, obs *observability.Observability) *Aggregator {
	return &Aggregator{logger: log, obs: obs}
}

// outcome is what one source task reports back.
type outcome struct {
	index    int
	system   models.SystemType
	bundle   *models.EntityBundle
	err      error
	duration time.Duration
}

// Execute queries every source concurrently and never fails: source errors,
// timeouts and panics are reported in the result's Errors.
func (a *Aggregator) Execute(ctx context.Context, srcs []sources.Source, filter models.FilterSpec, deadlineMs int) *models.UnifiedResult {
	start := time.Now()
	result := models.NewUnifiedResult()

	deadline := time.Duration(deadlineMs) * time.Millisecond
	if deadline < time.Millisecond {
		deadline = time.Millisecond
	}

	a.logger.Info("Dispatching cross-system query", map[string]interface{}{
		"sources":    len(srcs),
		"deadlineMs": deadlineMs,
	})

	batchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Buffered so late tasks never block after the batch returns.
	results := make(chan outcome, len(srcs))
	for i, src := range srcs {
		go run(batchCtx, i, src, filter, results)
	}

	pending := make(map[int]models.SystemType, len(srcs))
	for i, src := range srcs {
		pending[i] = src.System()
	}

	for len(pending) > 0 {
		select {
		case out := <-results:
			// a source that gave up because the batch ended is reported as abandoned
			if batchCtx.Err() != nil && isContextError(out.err) {
				continue
			}
			delete(pending, out.index)
			a.record(ctx, result, out, filter.Limit)
		case <-batchCtx.Done():
			a.abandon(ctx, result, srcs, pending, deadlineMs)
			pending = nil
		}
	}

	a.capAggregate(result, filter.Limit)

	result.Metrics.TotalDurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	a.logger.Info("Cross-system query finished", map[string]interface{}{
		"durationMs": result.Metrics.TotalDurationMs,
		"success":    result.Metrics.SuccessCount,
		"failed":     result.Metrics.FailCount,
	})
	return result
}

func run(ctx context.Context, index int, src sources.Source, filter models.FilterSpec, results chan<- outcome) {
	started := time.Now()
	out := outcome{index: index, system: src.System()}

	defer func() {
		if r := recover(); r != nil {
			out.bundle = nil
			out.err = fmt.Errorf("panic: %v", r)
		}
		out.duration = time.Since(started)
		results <- out
	}()

	out.bundle, out.err = src.FetchNormalized(ctx, filter)
	if out.err == nil && out.bundle == nil {
		out.bundle = models.NewEntityBundle()
	}
}

// record folds one completed task into the result.
func (a *Aggregator) record(ctx context.Context, result *models.UnifiedResult, out outcome, limit int) {
	durationMs := float64(out.duration.Microseconds()) / 1000.0
	result.Metrics.PerSourceDurationMs[out.system] = durationMs
	metrics.SourceQueryDuration.WithLabelValues(string(out.system)).Observe(out.duration.Seconds())

	if out.err != nil {
		msg := fmt.Sprintf("%s query failed: %v", out.system, out.err)
		result.Errors = append(result.Errors, msg)
		result.Metrics.PerSourceCounts[out.system] = models.ZeroCounts()
		result.Metrics.FailCount++
		a.count(ctx, out.system, StatusFailed)

		a.logger.Error("Source query failed", map[string]interface{}{
			"system":     string(out.system),
			"durationMs": durationMs,
			"error":      out.err.Error(),
			"access":     errors.Is(out.err, sources.ErrSourceAccess),
			"mapping":    errors.Is(out.err, sources.ErrMapping),
		})
		return
	}

	bundle := &models.EntityBundle{
		Organizations: models.Truncate(models.Dedup(out.bundle.Organizations), limit),
		Persons:       models.Truncate(models.Dedup(out.bundle.Persons), limit),
		Customers:     models.Truncate(models.Dedup(out.bundle.Customers), limit),
		Transactions:  models.Truncate(models.Dedup(out.bundle.Transactions), limit),
	}

	counts := bundle.Counts()
	result.Metrics.PerSourceCounts[out.system] = counts
	result.Metrics.SuccessCount++
	result.Append(bundle)
	a.count(ctx, out.system, StatusSuccess)

	a.logger.Debug("Source query succeeded", map[string]interface{}{
		"system":        string(out.system),
		"durationMs":    durationMs,
		"organizations": counts[models.EntityOrganizations],
		"persons":       counts[models.EntityPersons],
		"customers":     counts[models.EntityCustomers],
		"transactions":  counts[models.EntityTransactions],
	})
}

// abandon reports every source still pending when the batch context ends.
func (a *Aggregator) abandon(ctx context.Context, result *models.UnifiedResult, srcs []sources.Source, pending map[int]models.SystemType, deadlineMs int) {
	// A caller cancellation is not a timeout.
	cancelled := ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded)

	// Walk in dispatch order so error order is stable.
	for i := range srcs {
		system, ok := pending[i]
		if !ok {
			continue
		}

		status := StatusTimeout
		msg := fmt.Sprintf("%s timeout (>%dms)", system, deadlineMs)
		if cancelled {
			status = StatusCancelled
			msg = fmt.Sprintf("%s query cancelled", system)
		}

		result.Errors = append(result.Errors, msg)
		result.Metrics.PerSourceDurationMs[system] = float64(deadlineMs)
		result.Metrics.PerSourceCounts[system] = models.ZeroCounts()
		result.Metrics.FailCount++
		a.count(ctx, system, status)

		a.logger.Warn("Source abandoned at deadline", map[string]interface{}{
			"system":     string(system),
			"status":     status,
			"deadlineMs": deadlineMs,
		})
	}
}

// capAggregate keeps the concatenated collections within the caller's cap.
func (a *Aggregator) capAggregate(result *models.UnifiedResult, limit int) {
	if limit <= 0 {
		return
	}

	truncated := false
	if len(result.Organizations) > limit {
		result.Organizations, truncated = result.Organizations[:limit], true
	}
	if len(result.Persons) > limit {
		result.Persons, truncated = result.Persons[:limit], true
	}
	if len(result.Customers) > limit {
		result.Customers, truncated = result.Customers[:limit], true
	}
	if len(result.Transactions) > limit {
		result.Transactions, truncated = result.Transactions[:limit], true
	}

	if truncated {
		result.Warnings = append(result.Warnings, fmt.Sprintf("aggregate truncated to limit %d", limit))
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (a *Aggregator) count(ctx context.Context, system models.SystemType, status string) {
	metrics.SourceQueries.WithLabelValues(string(system), status).Inc()
	a.obs.RecordSourceOutcome(ctx, string(system), status)
}
