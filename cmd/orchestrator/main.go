// Package main runs the orchestrator: it owns the stock queues, reseeds them
// from the symbol universe on start and daily, and serves batches to workers.
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
	"stock-backfill/internal/config"
	"stock-backfill/internal/orchestrator"
	"stock-backfill/internal/queue"
	"stock-backfill/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("BACKFILL_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	universeFile := flag.String("universe-file", "", "Read symbols from this file instead of Alpaca")
	skipInitial := flag.Bool("skip-initial-reseed", false, "Do not reseed queues on start")
	pretty := flag.Bool("pretty", false, "Human-readable console logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.Config{}).Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Orchestrator.Addr = *addr
	}
	if *universeFile != "" {
		cfg.Orchestrator.UniverseFile = *universeFile
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty || *pretty, Service: "orchestrator"})
	logger.SetGlobalLogger(log)

	if err := run(cfg, !*skipInitial, log); err != nil {
		log.Fatal().Err(err).Msg("orchestrator exited")
	}
}

func run(cfg *config.Config, initialReseed bool, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := app.NewUniverse(cfg)
	if err != nil {
		return err
	}

	q := queue.NewService(queue.Options{
		BatchSize:       cfg.Orchestrator.BatchSize,
		RefreshInterval: cfg.Orchestrator.RefreshInterval,
		Logger:          &log,
	})
	orch := orchestrator.New(orchestrator.Options{
		Queue:         q,
		Provider:      provider,
		ReseedTimeout: cfg.Orchestrator.ReseedTimeout,
		Logger:        &log,
	})

	scheduler := orchestrator.NewScheduler(log)
	if err := scheduler.AddJob(cfg.Orchestrator.RefreshCron, orch.ReseedJob()); err != nil {
		return err
	}

	if initialReseed {
		// A failed first reseed leaves empty queues; the cron job or POST /refresh retries.
		if err := scheduler.RunNow(ctx, orch.ReseedJob()); err != nil {
			log.Error().Err(err).Msg("initial reseed failed")
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info().
		Str("provider", provider.Name()).
		Str("addr", cfg.Orchestrator.Addr).
		Time("next_reseed", scheduler.Next()).
		Msg("orchestrator ready")

	server := api.NewServer(cfg.Orchestrator.Addr, log,
		api.NewOrchestratorHandlers(orch, cfg.Orchestrator.StreamInterval, nil, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
