// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ucap-workers/internal/api"
	"ucap-workers/internal/app"
	"ucap-workers/internal/common/camunda"
	"ucap-workers/internal/common/config"
	"ucap-workers/internal/common/logger"
	"ucap-workers/internal/common/observability"

	nlq "ucap-workers/internal/workers/query/nl-query"
	qas "ucap-workers/internal/workers/query/query-across-systems"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	var obs *observability.Observability
	if cfg.Monitoring.OTelEnabled {
		obs = observability.New(cfg.App.Name)
		defer obs.Shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Query stack with retry ---
	var stack *app.App
	err = retryWithBackoff(func() error {
		var err error
		stack, err = app.Build(ctx, cfg, obs, log)
		return err
	}, 5, 2*time.Second, zapLog, "Query stack initialization")
	if err != nil {
		zapLog.Fatal("query stack failed after retries", zap.Error(err))
	}
	defer stack.Close()

	// --- Zeebe client ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		stack.Checks["zeebe"] = zeebe
		zapLog.Info("Zeebe client connected successfully")
	}

	g, gctx := errgroup.WithContext(ctx)

	// --- Query API ---
	if cfg.Server.Enabled {
		server := api.NewServer(api.Config{
			Port:         cfg.Server.Port,
			ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
			WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
			MaxLimit:     cfg.Query.MaxLimit,
			Version:      cfg.App.Version,
		}, stack.Service, stack.Checks, log)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	// --- Health & Metrics Server ---
	g.Go(func() error {
		return serveMonitoring(gctx, cfg.Monitoring.Port, zapLog)
	})

	// --- Zeebe workers ---
	var workers []*camunda.CamundaWorker
	if zeebe != nil {
		qasCfg := qas.LoadConfig()
		qasHandler := qas.NewHandler(qasCfg, stack.Service, &queryAcrossSystemsLoggerAdapter{log})
		if w := camunda.StartWorker(zeebe.GetClient(), qas.TaskType, config.GetWorkerConfig(cfg, qas.TaskType), qasHandler, obs, log); w != nil {
			workers = append(workers, w)
		}

		nlqCfg := nlq.LoadConfig()
		nlqHandler := nlq.NewHandler(nlqCfg, stack.Service, &nlQueryLoggerAdapter{log})
		if w := camunda.StartWorker(zeebe.GetClient(), nlq.TaskType, config.GetWorkerConfig(cfg, nlq.TaskType), nlqHandler, obs, log); w != nil {
			workers = append(workers, w)
		}

		zapLog.Info("workers registered", zap.Int("count", len(workers)))
	}

	// --- Graceful Shutdown ---
	<-gctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := g.Wait(); err != nil {
		zapLog.Error("server exited with error", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped gracefully")
}

func serveMonitoring(ctx context.Context, port int, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Logger adapters for workers that have their own Logger interfaces
type queryAcrossSystemsLoggerAdapter struct {
	logger.Logger
}

func (a *queryAcrossSystemsLoggerAdapter) With(fields map[string]interface{}) qas.Logger {
	return &queryAcrossSystemsLoggerAdapter{a.Logger.With(fields)}
}

type nlQueryLoggerAdapter struct {
	logger.Logger
}

func (a *nlQueryLoggerAdapter) With(fields map[string]interface{}) nlq.Logger {
	return &nlQueryLoggerAdapter{a.Logger.With(fields)}
}
