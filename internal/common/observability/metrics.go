package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records OpenTelemetry instruments, exported through the
// default prometheus registry.
type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	sourceOutcomes otelmetric.Int64Counter
	queryDuration  otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	sourceOutcomes, _ := meter.Int64Counter(
		"query.source.outcomes",
		otelmetric.WithDescription("Per-source outcomes of cross-system queries"),
	)

	queryDuration, _ := meter.Float64Histogram(
		"query.duration",
		otelmetric.WithDescription("End-to-end cross-system query duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		jobCounter:     jobCounter,
		jobDuration:    jobDuration,
		sourceOutcomes: sourceOutcomes,
		queryDuration:  queryDuration,
	}
}

// RecordJob counts one handled Zeebe job and its handling time.
func (o *Observability) RecordJob(ctx context.Context, taskType string, duration time.Duration) {
	if o == nil || o.jobCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("task_type", taskType))
	o.jobCounter.Add(ctx, 1, attrs)
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordSourceOutcome counts one source result of an aggregated query.
func (o *Observability) RecordSourceOutcome(ctx context.Context, system, status string) {
	if o == nil || o.sourceOutcomes == nil {
		return
	}
	o.sourceOutcomes.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("system", system),
		attribute.String("status", status),
	))
}

// RecordQuery records the wall time of one aggregated query.
func (o *Observability) RecordQuery(ctx context.Context, entryPoint string, durationMs float64, failed int) {
	if o == nil || o.queryDuration == nil {
		return
	}
	o.queryDuration.Record(ctx, durationMs, otelmetric.WithAttributes(
		attribute.String("entry_point", entryPoint),
		attribute.Bool("partial", failed > 0),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
