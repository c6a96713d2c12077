// Package inference turns free text into a validated filter. A model call is
// tried first; keyword and calendar rules take over when it fails, and a
// second, narrower model call may recover a missing date range.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "ucap-workers/internal/common/errors"
	"ucap-workers/internal/common/llm"
	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/common/validation"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator/selector"
)

const (
	keyEntityType   = "entity_type"
	keyDateFrom     = "date_from"
	keyDateTo       = "date_to"
	keyLimit        = "limit"
	keyFilterParams = "filter_params"
	keySystems      = "systems"
	keyTimeoutMs    = "timeout_ms"

	MinTimeoutMs = 50
	MaxTimeoutMs = 60000
)

const (
	// FallbackWarning prefixes the warning emitted when the primary call is unusable.
	FallbackWarning = "model inference unavailable, using keyword and calendar rules"
	NarrowWarning   = "date range recovered by narrow time inference"
)

var (
	ErrNoModel     = errors.New("no model client configured")
	ErrNoDateRange = errors.New("reply has no complete date range")
	ErrRejected    = errors.New("reply rejected")
)

// ModelClient sends one prompt and returns the raw reply text.
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Config is fixed for the lifetime of an Inferencer.
type Config struct {
	TimeEnhancements bool
	NarrowTimeLLM    bool
	Model            string
	ModelTimeout     time.Duration
	NarrowTimeout    time.Duration
	MaxLimit         int
	DefaultLimit     int
	Location         *time.Location
	Now              func() time.Time
}

// Result is produced once per request and never cached.
type Result struct {
	Filter    models.FilterSpec
	Systems   []models.SystemType
	TimeoutMs *int
	Warnings  []string
	Metrics   models.InferenceMetrics
	// Degradation is set when the primary model path failed.
	Degradation *apperrors.StandardError
}

type Inferencer struct {
	config   Config
	client   ModelClient
	selector *selector.Selector
	logger   Logger
}

// New builds an Inferencer. client may be nil, in which case every request
// takes the rule-based path.
func New(cfg Config, client ModelClient, sel *selector.Selector, log Logger) *Inferencer {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sel == nil {
		sel = selector.New(log)
	}
	return &Inferencer{config: cfg, client: client, selector: sel, logger: log}
}

// Infer never fails: every problem surfaces as a warning or in Metrics.
func (i *Inferencer) Infer(ctx context.Context, text string, defaults map[string]interface{}) *Result {
	now := i.config.Now().In(i.config.Location)
	res := &Result{
		Warnings: []string{},
		Metrics: models.InferenceMetrics{
			LLMStatus: models.LLMStatusOK,
			LLMModel:  i.config.Model,
		},
	}

	fromDefaults := candidateFromDefaults(defaults)
	keyword := keywordCandidate(text, i.config.DefaultLimit, i.config.MaxLimit)
	ranges := RecognizeCalendar(text, now)

	var merged *Candidate
	primary, warnings, err := i.primary(ctx, text, now, &res.Metrics)
	if err == nil {
		res.Metrics.LLMUsed = true
		res.Warnings = append(res.Warnings, warnings...)
		metrics.InferencePath.WithLabelValues("llm").Inc()
		merged = i.anchor(primary, fromDefaults, keyword, ranges, res)
	} else {
		cause := modelFailure(err)
		res.Degradation = apperrors.NewInferenceDegradedError(err).WithMetadata("cause", string(cause.Code))
		res.Metrics.LLMStatus = models.LLMStatusDegraded
		res.Metrics.LLMErrorCode = string(cause.Code)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", FallbackWarning, err))
		metrics.InferencePath.WithLabelValues("fallback").Inc()
		i.logger.Warn("Primary inference failed, using fallback rules", map[string]interface{}{
			"error":     err.Error(),
			"errorCode": cause.Code,
		})

		merged = Merge(fromDefaults, keyword)
		merged = Merge(merged, calendarCandidate(ranges, i.config.Location))
		for _, r := range ranges {
			res.Warnings = append(res.Warnings, r.warning())
		}
	}

	if i.config.TimeEnhancements && i.config.NarrowTimeLLM && !merged.HasDateRange() {
		recovered, err := i.narrow(ctx, text, now, &res.Metrics)
		if err != nil {
			i.logger.Debug("Narrow time inference gave no range", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			merged = Merge(merged, recovered)
			res.Metrics.TimeNarrowUsed = true
			res.Warnings = append(res.Warnings, NarrowWarning)
			metrics.InferencePath.WithLabelValues("narrow_time").Inc()
		}
	}

	i.finish(merged, res)

	i.logger.Debug("Inference completed", map[string]interface{}{
		"llmStatus":      res.Metrics.LLMStatus,
		"timeNarrowUsed": res.Metrics.TimeNarrowUsed,
		"anchorOverride": res.Metrics.TimeAnchorOverrideUsed,
		"filter":         res.Filter.ToMap(),
	})
	return res
}

func (i *Inferencer) primary(ctx context.Context, text string, now time.Time, m *models.InferenceMetrics) (*Candidate, []string, error) {
	reply, latency, err := i.call(ctx, "primary", i.config.ModelTimeout, primaryPrompt(text, now, i.config.MaxLimit))
	m.LLMLatencyMs = latency
	if err != nil {
		return nil, nil, err
	}

	obj, err := ParseReply(reply)
	if err != nil {
		return nil, nil, err
	}
	return i.candidateFromReply(obj)
}

func (i *Inferencer) narrow(ctx context.Context, text string, now time.Time, m *models.InferenceMetrics) (*Candidate, error) {
	reply, latency, err := i.call(ctx, "narrow", i.config.NarrowTimeout, narrowTimePrompt(text, now))
	m.TimeNarrowLatencyMs = latency
	if err != nil {
		return nil, err
	}

	obj, err := ParseReply(reply)
	if err != nil {
		return nil, err
	}
	from, to, ok := pickDates(obj)
	if !ok {
		return nil, ErrNoDateRange
	}
	return &Candidate{Filter: map[string]interface{}{keyDateFrom: from, keyDateTo: to}}, nil
}

func (i *Inferencer) call(ctx context.Context, kind string, timeout time.Duration, prompt string) (string, int64, error) {
	if i.client == nil {
		return "", 0, ErrNoModel
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := i.client.Complete(callCtx, prompt)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallDuration.WithLabelValues(kind, status).Observe(elapsed.Seconds())

	return reply, elapsed.Milliseconds(), err
}

// modelFailure classifies why the primary path could not be used.
func modelFailure(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrNoModel), errors.Is(err, llm.ErrMissingCredentials):
		return apperrors.NewMissingCredentialsError("llm")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewLLMTimeoutError()
	case errors.Is(err, ErrUnparsableReply), errors.Is(err, ErrRejected):
		return apperrors.NewInferenceDegradedError(err)
	default:
		return apperrors.NewLLMUnavailableError(err)
	}
}

// candidateFromReply validates a parsed reply and drops the fields that do
// not conform. A reply that is not an object at all is rejected.
func (i *Inferencer) candidateFromReply(obj map[string]interface{}) (*Candidate, []string, error) {
	result, err := validation.Validate(validation.InferenceReplySchema(i.config.MaxLimit), obj)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	filter, _ := obj[keyFilterParams].(map[string]interface{})
	filter = copyMap(filter)
	dropSystems, dropTimeout := false, false

	for _, e := range result.Errors {
		switch {
		case e.Field == "(root)":
			return nil, nil, fmt.Errorf("%w: %s", ErrRejected, e.Message)
		case e.Field == keyFilterParams:
			filter = map[string]interface{}{}
			warnings = append(warnings, fmt.Sprintf("model field '%s' dropped: %s", e.Field, e.Message))
		case strings.HasPrefix(e.Field, keyFilterParams+"."):
			key := strings.TrimPrefix(e.Field, keyFilterParams+".")
			// entity_type is checked below, case-insensitively
			if key == keyEntityType {
				continue
			}
			if _, ok := filter[key]; ok {
				delete(filter, key)
				warnings = append(warnings, fmt.Sprintf("model field '%s' dropped: %s", e.Field, e.Message))
			}
		case e.Field == keySystems:
			dropSystems = true
		case strings.HasPrefix(e.Field, keySystems+"."):
			// non-string items are skipped below
		case e.Field == keyTimeoutMs:
			dropTimeout = true
			warnings = append(warnings, fmt.Sprintf("model field '%s' dropped: %s", e.Field, e.Message))
		}
	}

	if value, ok := filter[keyEntityType]; ok && value != nil {
		text := fmt.Sprint(value)
		if entity, valid := models.ParseEntityType(text); valid {
			filter[keyEntityType] = string(entity)
		} else {
			// removed here so keyword rules can still supply an entity type
			delete(filter, keyEntityType)
			warnings = append(warnings, fmt.Sprintf("invalid entity_type '%s' removed", text))
		}
	}

	c := &Candidate{Filter: filter}
	if items, ok := obj[keySystems].([]interface{}); ok && !dropSystems {
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				c.Systems = append(c.Systems, s)
			}
		}
	}
	if !dropTimeout {
		if t, ok := asInt(obj[keyTimeoutMs]); ok {
			c.TimeoutMs = &t
		}
	}
	return c, warnings, nil
}

// anchor applies the calendar recognizer to a model candidate. With time
// enhancements on a recognized phrase replaces the model's range; otherwise
// it only fills missing bounds. Caller defaults sit between the two.
func (i *Inferencer) anchor(primary, defaults, keyword *Candidate, ranges []TimeRange, res *Result) *Candidate {
	start := time.Now()
	defer func() {
		res.Metrics.TimeAnchorLatencyMs = time.Since(start).Milliseconds()
	}()

	calendar := calendarCandidate(ranges, i.config.Location)
	if calendar != nil && i.config.TimeEnhancements {
		action := "set"
		if primary.hasAnyDate() {
			action = "replaced"
		}
		primary = Merge(calendar, primary)
		res.Metrics.TimeAnchorOverrideUsed = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("time anchor override: calendar phrase '%s' %s the model date range", ranges[0].Label, action))
		metrics.InferencePath.WithLabelValues("time_anchor").Inc()
	}

	merged := Merge(primary, defaults)

	if calendar != nil && !i.config.TimeEnhancements {
		if !merged.HasDateRange() {
			merged = Merge(merged, calendar)
			res.Warnings = append(res.Warnings, fmt.Sprintf("time anchor fill: calendar phrase '%s' filled missing date bounds", ranges[0].Label))
			metrics.InferencePath.WithLabelValues("time_anchor").Inc()
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("time anchor kept model range over calendar phrase '%s'", ranges[0].Label))
		}
	}

	for _, r := range ranges {
		res.Warnings = append(res.Warnings, r.warning())
	}

	if keyword != nil {
		fill := &Candidate{Filter: map[string]interface{}{}}
		if et, ok := keyword.Filter[keyEntityType]; ok {
			fill.Filter[keyEntityType] = et
		}
		fill.Systems = keyword.Systems
		merged = Merge(merged, fill)
	}
	return merged
}

// finish runs the merged candidate through the selector so both inference
// paths share one validation contract.
func (i *Inferencer) finish(merged *Candidate, res *Result) {
	filter, warnings := i.selector.ValidateFilter(merged.Filter)
	res.Filter = filter
	res.Warnings = append(res.Warnings, warnings...)

	if len(merged.Systems) > 0 {
		systems, warnings := i.selector.ValidateSystems(merged.Systems)
		res.Systems = systems
		res.Warnings = append(res.Warnings, warnings...)
	}

	if merged.TimeoutMs != nil {
		t := ClampTimeout(*merged.TimeoutMs)
		res.TimeoutMs = &t
	}
}

// ClampTimeout bounds an inferred timeout to [MinTimeoutMs, MaxTimeoutMs].
func ClampTimeout(ms int) int {
	if ms < MinTimeoutMs {
		return MinTimeoutMs
	}
	if ms > MaxTimeoutMs {
		return MaxTimeoutMs
	}
	return ms
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
