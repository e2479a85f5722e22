// Package main runs a backfill worker: it polls the orchestrator for batches,
// refreshes history or fills gaps for each symbol, and serves an operator API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stock-backfill/internal/api"
	"stock-backfill/internal/app"
	"stock-backfill/internal/backfill"
	"stock-backfill/internal/config"
	"stock-backfill/internal/worker"
	"stock-backfill/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("BACKFILL_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	orchestratorURL := flag.String("orchestrator-url", "", "Orchestrator base URL (overrides config)")
	workerID := flag.String("worker-id", "", "Worker identifier (overrides config)")
	pollInterval := flag.Duration("poll-interval", 0, "Batch poll interval (overrides config)")
	noPoll := flag.Bool("no-poll", false, "Serve the operator API only")
	pretty := flag.Bool("pretty", false, "Human-readable console logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.Config{}).Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Worker.Addr = *addr
	}
	if *orchestratorURL != "" {
		cfg.Worker.OrchestratorURL = *orchestratorURL
	}
	if *workerID != "" {
		cfg.Worker.ID = *workerID
	}
	if *pollInterval > 0 {
		cfg.Worker.PollInterval = *pollInterval
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty || *pretty, Service: "worker"}).
		With().Str("worker_id", cfg.Worker.ID).Logger()
	logger.SetGlobalLogger(log)

	if err := run(cfg, !*noPoll, log); err != nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

func run(cfg *config.Config, poll bool, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer cleanup()

	source, err := app.NewQuoteSource(cfg)
	if err != nil {
		return err
	}
	bf := app.NewBackfill(cfg, stores, source, log)

	cooldown := backfill.NewCooldownTracker(cfg.Worker.FailureMargin, cfg.Worker.CooldownWindow, nil)
	client := worker.NewClient(cfg.Worker.OrchestratorURL, cfg.Worker.ID)
	runner := worker.NewRunner(worker.RunnerOptions{
		Batches:      client,
		Executor:     bf.Executor,
		Cooldown:     cooldown,
		PollInterval: cfg.Worker.PollInterval,
		MaxRetries:   cfg.Backfill.MaxRetries,
		Logger:       &log,
	})

	server := api.NewServer(cfg.Worker.Addr, log, api.NewWorkerHandlers(api.WorkerHandlersOptions{
		Detector:       bf.Detector,
		Executor:       bf.Executor,
		BarStore:       stores.Bars,
		BlacklistStore: stores.Blacklist,
		Cooldown:       cooldown,
		Logger:         log,
	}))

	if poll {
		statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if st, err := client.Status(statusCtx); err != nil {
			log.Warn().Err(err).Msg("orchestrator not reachable yet, polling anyway")
		} else {
			log.Info().
				Int("total_stocks", st.TotalStocks).
				Int("history_remaining", st.History.Remaining).
				Int("gap_remaining", st.GapDetection.Remaining).
				Msg("orchestrator reachable")
		}
		cancel()
	}

	log.Info().
		Str("orchestrator", cfg.Worker.OrchestratorURL).
		Str("storage", cfg.Storage.Driver).
		Bool("poll", poll).
		Msg("worker ready")

	g, gctx := errgroup.WithContext(ctx)
	if poll {
		g.Go(func() error { return runner.Run(gctx) })
	}
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
