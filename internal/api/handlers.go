package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"ucap-workers/internal/orchestrator"
	"ucap-workers/internal/orchestrator/selector"
)

type QueryRequest struct {
	FilterParams map[string]interface{} `json:"filter_params"`
	Systems      []string               `json:"systems"`
	TimeoutMs    *int                   `json:"timeout_ms" binding:"omitempty,min=50,max=60000"`
}

type NLQueryRequest struct {
	Text           string                 `json:"text" binding:"required,notblank"`
	DefaultFilters map[string]interface{} `json:"default_filters"`
	Systems        []string               `json:"systems"`
	TimeoutMs      *int                   `json:"timeout_ms" binding:"omitempty,min=50,max=60000"`
}

// InvalidResponse keeps the success shape so clients can parse both.
type InvalidResponse struct {
	Errors        []string               `json:"errors"`
	Warnings      []string               `json:"warnings"`
	Organizations []interface{}          `json:"organizations"`
	Persons       []interface{}          `json:"persons"`
	Customers     []interface{}          `json:"customers"`
	Transactions  []interface{}          `json:"transactions"`
	Metrics       map[string]interface{} `json:"metrics"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type Handlers struct {
	service QueryService
	checks  map[string]Pinger
	config  Config
	logger  Logger
}

func NewHandlers(svc QueryService, checks map[string]Pinger, cfg Config, log Logger) *Handlers {
	return &Handlers{service: svc, checks: checks, config: cfg, logger: log}
}

// HandleQuery handles POST /query.
func (h *Handlers) HandleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, bindingErrors(err))
		return
	}
	if problems := h.checkLimit(req.FilterParams, "filter_params"); len(problems) > 0 {
		h.reject(c, problems)
		return
	}

	result := h.service.QueryAcrossSystems(c.Request.Context(), orchestrator.QueryRequest{
		Filter:    req.FilterParams,
		Systems:   req.Systems,
		TimeoutMs: req.TimeoutMs,
	})
	c.JSON(http.StatusOK, result)
}

// HandleNLQuery handles POST /nl-query.
func (h *Handlers) HandleNLQuery(c *gin.Context) {
	var req NLQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, bindingErrors(err))
		return
	}
	if problems := h.checkLimit(req.DefaultFilters, "default_filters"); len(problems) > 0 {
		h.reject(c, problems)
		return
	}

	result := h.service.NLQuery(c.Request.Context(), orchestrator.NLRequest{
		Text:           req.Text,
		DefaultFilters: req.DefaultFilters,
		Systems:        req.Systems,
		TimeoutMs:      req.TimeoutMs,
	})
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.config.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady pings every configured store. Any failure makes the service unready.
func (h *Handlers) HandleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(code, resp)
}

func (h *Handlers) checkLimit(filter map[string]interface{}, field string) []string {
	raw, ok := filter["limit"]
	if !ok || raw == nil {
		return nil
	}
	limit, ok := selector.ParseLimit(raw)
	if !ok || limit > h.config.MaxLimit {
		return []string{fmt.Sprintf("%s.limit must be an integer between 1 and %d", field, h.config.MaxLimit)}
	}
	return nil
}

func (h *Handlers) reject(c *gin.Context, problems []string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, InvalidResponse{
		Errors:        problems,
		Warnings:      []string{},
		Organizations: []interface{}{},
		Persons:       []interface{}{},
		Customers:     []interface{}{},
		Transactions:  []interface{}{},
		Metrics:       map[string]interface{}{},
	})
}

func bindingErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{fmt.Sprintf("invalid request body: %v", err)}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "notblank":
			out = append(out, fmt.Sprintf("%s must not be empty", fe.Field()))
		case "min":
			out = append(out, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "max":
			out = append(out, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			out = append(out, fmt.Sprintf("%s failed '%s' validation", fe.Field(), fe.Tag()))
		}
	}
	return out
}
