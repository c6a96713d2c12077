// internal/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"ucap-workers/internal/common/metrics"
	"ucap-workers/internal/models"
	"ucap-workers/internal/orchestrator"
)

const (
	RequestIDHeader = "X-Request-ID"
	serviceName     = "ucap-api"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// QueryService is the orchestrator surface served over HTTP.
type QueryService interface {
	QueryAcrossSystems(ctx context.Context, req orchestrator.QueryRequest) *models.UnifiedResult
	NLQuery(ctx context.Context, req orchestrator.NLRequest) *models.UnifiedResult
}

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxLimit     int
	Version      string
}

type Server struct {
	config  Config
	engine  *gin.Engine
	handler *Handlers
	logger  Logger
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func NewServer(cfg Config, svc QueryService, checks map[string]Pinger, log Logger) *Server {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), otelgin.Middleware(serviceName), requestID(), observe(log))

	h := NewHandlers(svc, checks, cfg, log)
	RegisterRoutes(engine, h)

	return &Server{config: cfg, engine: engine, handler: h, logger: log}
}

// RegisterRoutes wires the query endpoints and health checks onto r.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.POST("/query", h.HandleQuery)
	r.POST("/nl-query", h.HandleNLQuery)
	r.GET("/health", h.HandleHealth)
	r.GET("/ready", h.HandleReady)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query API listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	s.logger.Info("query API stopped", nil)
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func observe(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()

		fields := map[string]interface{}{
			"route":      route,
			"status":     code,
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  c.GetString(RequestIDHeader),
		}
		switch {
		case code >= http.StatusInternalServerError:
			log.Error("request failed", fields)
		case code >= http.StatusBadRequest:
			log.Warn("request rejected", fields)
		default:
			log.Info("request served", fields)
		}
	}
}
