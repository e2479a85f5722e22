// Package main is the operator CLI for one-off gap checks, fills, history
// refreshes, Parquet exports and blacklist maintenance.
//
// Usage:
//
//	backfill [-config path] <command> [flags]
//
// Commands: check, fill, history, export, blacklist.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stock-backfill/internal/app"
	"stock-backfill/internal/archive"
	"stock-backfill/internal/config"
	"stock-backfill/internal/domain"
	"stock-backfill/pkg/logger"
)

const usage = `usage: backfill [-config path] <command> [flags]

commands:
  check      -symbol S                      list unsuppressed gaps
  fill       -symbol S [-max-retries N]     fill gaps with retry and blacklisting
  history    -symbol S                      refresh the full coarse and fine history
  export     -symbol S -out FILE [-band B] [-start T] [-end T]
                                            write stored bars to Parquet
  blacklist  list|clear [-symbol S]         inspect or clear blacklist entries
`

var errUsage = errors.New("invalid usage")

func main() {
	configPath := flag.String("config", os.Getenv("BACKFILL_CONFIG"), "Path to YAML config file")
	pretty := flag.Bool("pretty", true, "Human-readable console logs on stderr")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: *pretty, Service: "backfill", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Args(), log); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, log zerolog.Logger) error {
	cmd, rest := args[0], args[1:]

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer cleanup()

	switch cmd {
	case "check":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		symbol := fs.String("symbol", "", "Ticker symbol")
		if err := parse(fs, rest, symbol); err != nil {
			return err
		}
		bf := app.NewBackfill(cfg, stores, nil, log)
		found, err := bf.Detector.CheckGaps(ctx, *symbol)
		if err != nil {
			return err
		}
		return printJSON(found)

	case "fill":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		symbol := fs.String("symbol", "", "Ticker symbol")
		maxRetries := fs.Int("max-retries", cfg.Backfill.MaxRetries, "Maximum fetch attempts per gap")
		if err := parse(fs, rest, symbol); err != nil {
			return err
		}
		source, err := app.NewQuoteSource(cfg)
		if err != nil {
			return err
		}
		outcome, err := app.NewBackfill(cfg, stores, source, log).Executor.FillGaps(ctx, *symbol, *maxRetries)
		if err != nil {
			return err
		}
		return printJSON(outcome)

	case "history":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		symbol := fs.String("symbol", "", "Ticker symbol")
		if err := parse(fs, rest, symbol); err != nil {
			return err
		}
		source, err := app.NewQuoteSource(cfg)
		if err != nil {
			return err
		}
		result, err := app.NewBackfill(cfg, stores, source, log).Executor.RefreshHistory(ctx, *symbol)
		if err != nil {
			return err
		}
		return printJSON(result)

	case "export":
		return runExport(ctx, cfg, stores, rest, log)

	case "blacklist":
		return runBlacklist(ctx, stores, rest)
	}

	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func runExport(ctx context.Context, cfg *config.Config, stores *app.Stores, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "Ticker symbol")
	bandName := fs.String("band", "coarse", "Band: coarse|hourly or fine|minute")
	startStr := fs.String("start", "", "Range start, RFC3339 (default: band window start)")
	endStr := fs.String("end", "", "Range end, RFC3339 (default: now)")
	out := fs.String("out", "", "Output Parquet file")
	if err := parse(fs, args, symbol); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("-out is required: %w", errUsage)
	}

	band, err := domain.ParseBand(*bandName)
	if err != nil {
		return err
	}
	end := time.Now().UTC()
	if *endStr != "" {
		if end, err = time.Parse(time.RFC3339, *endStr); err != nil {
			return fmt.Errorf("parse -end: %w", err)
		}
	}
	start := end.Add(-cfg.GapsPolicy().Policy(band).Window)
	if *startStr != "" {
		if start, err = time.Parse(time.RFC3339, *startStr); err != nil {
			return fmt.Errorf("parse -start: %w", err)
		}
	}

	n, err := archive.NewExporter(stores.Bars, log).Export(ctx, *symbol, band, start, end, *out)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"symbol": *symbol, "band": band, "rows": n, "path": *out})
}

func runBlacklist(ctx context.Context, stores *app.Stores, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("blacklist needs list or clear: %w", errUsage)
	}
	action := args[0]

	fs := flag.NewFlagSet("blacklist "+action, flag.ContinueOnError)
	symbol := fs.String("symbol", "", "Restrict to one ticker")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	sym := ""
	if *symbol != "" {
		var err error
		if sym, err = domain.NormalizeSymbol(*symbol); err != nil {
			return err
		}
	}

	switch action {
	case "list":
		entries, err := stores.Blacklist.List(ctx, sym)
		if err != nil {
			return err
		}
		return printJSON(entries)
	case "clear":
		n, err := stores.Blacklist.Delete(ctx, sym)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"cleared": n, "symbol": sym})
	}
	return fmt.Errorf("unknown blacklist action %q: %w", action, errUsage)
}

// parse parses fs and requires -symbol.
func parse(fs *flag.FlagSet, args []string, symbol *string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%v: %w", err, errUsage)
	}
	if *symbol == "" {
		return fmt.Errorf("-symbol is required: %w", errUsage)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
