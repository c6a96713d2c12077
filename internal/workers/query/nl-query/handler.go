package nlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator"
)

const (
	TaskType = "nl-query"
)

var validate = validator.New()

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type QueryService interface {
	NLQuery(ctx context.Context, req orchestrator.NLRequest) *models.UnifiedResult
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

// DecodeInput parses and validates the job variables. Blank text is rejected.
func DecodeInput(variables string) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	input.Text = strings.TrimSpace(input.Text)
	if err := validate.Struct(&input); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result := h.service.NLQuery(ctx, orchestrator.NLRequest{
		Text:           input.Text,
		DefaultFilters: input.DefaultFilters,
		Systems:        input.Systems,
		TimeoutMs:      input.TimeoutMs,
	})

	if h.config.FailOnAllSourcesFailed && result.Metrics.SuccessCount == 0 && result.Metrics.FailCount > 0 {
		return nil, apperrors.NewAllSourcesFailedError(result.Errors)
	}

	fields := map[string]interface{}{
		"success":  result.Metrics.SuccessCount,
		"failed":   result.Metrics.FailCount,
		"entities": result.Total(),
	}
	if llm := result.Metrics.LLM; llm != nil {
		fields["llmStatus"] = llm.LLMStatus
		fields["timeNarrowUsed"] = llm.TimeNarrowUsed
		fields["timeAnchorOverride"] = llm.TimeAnchorOverrideUsed
		if llm.LLMStatus == models.LLMStatusDegraded {
			h.logger.Warn("natural-language inference degraded to rules", map[string]interface{}{
				"model":     llm.LLMModel,
				"errorCode": llm.LLMErrorCode,
			})
		}
	}
	h.logger.Info("natural-language query completed", fields)

	return NewOutput(result), nil
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
