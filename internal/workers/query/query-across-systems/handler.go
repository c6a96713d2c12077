package queryacrosssystems

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator"
)

const (
	TaskType = "query-across-systems"
)

var validate = validator.New()

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// QueryService is the part of the orchestrator this worker needs.
type QueryService interface {
	QueryAcrossSystems(ctx context.Context, req orchestrator.QueryRequest) *models.UnifiedResult
}

type Handler struct {
	config   *Config
	service  QueryService
	failures *apperrors.ErrorHandler
	logger   Logger
}

func NewHandler(config *Config, service QueryService, log Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:   config,
		service:  service,
		failures: apperrors.NewErrorHandler(l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := DecodeInput(job.Variables)
	if err != nil {
		h.failures.HandleJobError(context.Background(), client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failures.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// DecodeInput parses and validates the job variables.
func DecodeInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	if err := validate.Struct(&input); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result := h.service.QueryAcrossSystems(ctx, orchestrator.QueryRequest{
		Filter:    input.FilterParams,
		Systems:   input.Systems,
		TimeoutMs: input.TimeoutMs,
	})

	if h.config.FailOnAllSourcesFailed && allSourcesFailed(result) {
		return nil, apperrors.NewAllSourcesFailedError(result.Errors)
	}

	if len(result.Errors) > 0 {
		h.logger.Warn("some sources failed", map[string]interface{}{
			"errors": result.Errors,
		})
	}

	h.logger.Info("cross-system query completed", map[string]interface{}{
		"success":    result.Metrics.SuccessCount,
		"failed":     result.Metrics.FailCount,
		"entities":   result.Total(),
		"durationMs": result.Metrics.TotalDurationMs,
	})

	return NewOutput(result), nil
}

func allSourcesFailed(r *models.UnifiedResult) bool {
	return r.Metrics.SuccessCount == 0 && r.Metrics.FailCount > 0
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
