package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/threadsight/threadsight/internal/api"
	"github.com/threadsight/threadsight/internal/classify"
	"github.com/threadsight/threadsight/internal/config"
	"github.com/threadsight/threadsight/internal/fetch"
	"github.com/threadsight/threadsight/internal/llm"
	"github.com/threadsight/threadsight/internal/logging"
	"github.com/threadsight/threadsight/internal/metrics"
	"github.com/threadsight/threadsight/internal/pipeline"
	"github.com/threadsight/threadsight/internal/runstore"
	"github.com/threadsight/threadsight/internal/scheduler"
	"github.com/threadsight/threadsight/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting threadsight")

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	store, err := runstore.NewStore(cfg.Pipeline.DataDir, logger)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		os.Exit(1)
	}

	// Without an API key, fall back to the deterministic mock so the
	// service stays usable for local development.
	var client llm.Client
	openaiClient, err := llm.NewOpenAIClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Warn("openai client unavailable, using mock LLM", "error", err)
		client = llm.NewMockClient()
	} else {
		client = openaiClient
	}

	fetcher := fetch.NewRedditFetcher(logger, cfg.Pipeline.MinScore, cfg.Pipeline.CommentsPerPost)
	engine := classify.NewEngine(client, logger, cfg.Pipeline.BatchSize, cfg.Pipeline.ClassifyWorkers)
	pipe := pipeline.New(fetcher, client, engine, store, collector, logger)

	ledger, err := scheduler.OpenLedger(cfg.Pipeline.JobsDBPath)
	if err != nil {
		logger.Error("failed to open job ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	sched, err := scheduler.New(pipe, ledger, collector, logger, scheduler.Options{
		Workers:          cfg.Pipeline.Workers,
		SerializeSources: cfg.Pipeline.SourcePolicy == "serialize",
	})
	if err != nil {
		logger.Error("failed to init scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	handler := api.NewRouter(
		api.NewPipelineHandler(sched, logger),
		api.NewDataHandler(store, logger),
		collector,
		logger,
	)

	srv := server.New(cfg.Server, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("threadsight started",
		"url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port),
		"data_dir", cfg.Pipeline.DataDir)

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
