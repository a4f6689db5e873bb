package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stavrosp/flowguard/config"
	"github.com/stavrosp/flowguard/internal/backpressure"
	"github.com/stavrosp/flowguard/internal/checkpoint"
	"github.com/stavrosp/flowguard/internal/circuitbreaker"
	"github.com/stavrosp/flowguard/internal/handler"
	"github.com/stavrosp/flowguard/internal/httpserver"
	"github.com/stavrosp/flowguard/internal/metrics"
	"github.com/stavrosp/flowguard/internal/pipeline"
	"github.com/stavrosp/flowguard/internal/ratelimiter"
	"github.com/stavrosp/flowguard/internal/telemetry"
	"github.com/stavrosp/flowguard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, limiter, controller, loop, collector, err := buildComponents(cfg, log)
	if err != nil {
		log.Error("Failed to build reliability components", slog.Any("err", err))
		os.Exit(1)
	}

	collector.Start(ctx)

	mux := setupRouter(handler.Health(registry, controller, limiter), collector)
	gated := handler.RateLimit(limiter, collector, log)(mux)

	srv, err := httpserver.New(cfg.Server.Address, gated, log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Error("Service terminated with error", slog.Any("err", err))
		os.Exit(1)
	}
}

// buildComponents wires the reliability layer from configuration: the
// checkpoint store, breaker registry, rate limiter, backpressure
// controller, metrics collector, and the processing loop over them.
func buildComponents(cfg *config.Config, log *slog.Logger) (
	*circuitbreaker.Registry,
	*ratelimiter.RateLimiter,
	*backpressure.Controller,
	*pipeline.Loop,
	*metrics.Collector,
	error,
) {
	registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Timeout:          cfg.CircuitBreaker.Timeout(),
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
	})
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	limiter, err := ratelimiter.New(ratelimiter.Config{
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window(),
	})
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	store, err := checkpoint.NewStore(cfg.Pipeline.CheckpointPath)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	collector := metrics.NewCollector(1000, logger.WithComponent(log, "metrics"))

	controller, err := backpressure.NewController(backpressure.Config{
		ThresholdMB: cfg.Backpressure.ThresholdMB,
		Sources:     cfg.Backpressure.Sources,
	}, store, collector, logger.WithComponent(log, "backpressure"))
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	pollInterval, err := time.ParseDuration(cfg.Backpressure.PollInterval)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	pipelineLog := logger.WithComponent(log, "pipeline")
	vector, records := newStoreClients(cfg.Dependencies)
	processor := pipeline.NewProcessor(registry, vector, records, collector, pipelineLog)
	reader := telemetry.NewReader(logger.WithComponent(log, "telemetry"))

	loop := pipeline.NewLoop(controller, store, reader, processor,
		cfg.Backpressure.Sources, pollInterval, cfg.Pipeline.BatchSize, pipelineLog)

	return registry, limiter, controller, loop, collector, nil
}
