// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// status is one of success, failed, timeout, cancelled
	SourceQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucap_source_queries_total",
			Help: "Source queries issued by the aggregator, by outcome",
		},
		[]string{"system", "status"},
	)

	SourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ucap_source_query_duration_seconds",
			Help:    "Time spent waiting for a source, capped at the batch deadline",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"system"},
	)

	SourceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucap_source_cache_lookups_total",
			Help: "Normalized bundle cache lookups, by result",
		},
		[]string{"system", "result"},
	)

	// path is one of llm, fallback, narrow_time, time_anchor
	InferencePath = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucap_inference_path_total",
			Help: "Natural-language inference stages that contributed to a filter",
		},
		[]string{"path"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ucap_llm_call_duration_seconds",
			Help: "Latency of model calls, by prompt kind and status",
		},
		[]string{"kind", "status"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucap_api_requests_total",
			Help: "HTTP query requests, by route and status code",
		},
		[]string{"route", "code"},
	)
)
