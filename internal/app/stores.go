// Package app wires configuration into the components shared by commands.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stock-backfill/internal/config"
	"stock-backfill/internal/storage"
	chstore "stock-backfill/internal/storage/clickhouse"
	"stock-backfill/internal/storage/memory"
	"stock-backfill/internal/storage/migrations"
	pgstore "stock-backfill/internal/storage/postgres"
	"stock-backfill/internal/storage/sqlite"
)

// Stores holds the three store implementations for one backend.
type Stores struct {
	Bars      storage.BarStore
	Symbols   storage.SymbolStore
	Blacklist storage.BlacklistStore
}

// OpenStores connects the configured backend and applies its migrations.
// The returned cleanup releases connections.
func OpenStores(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Stores, func(), error) {
	log = log.With().Str("component", "storage").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return &Stores{
			Bars:      memory.NewBarStore(),
			Symbols:   memory.NewSymbolStore(),
			Blacklist: memory.NewBlacklistStore(),
		}, func() {}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SqlitePath).Msg("sqlite storage ready")
		return &Stores{
			Bars:      sqlite.NewBarStore(db),
			Symbols:   sqlite.NewSymbolStore(db),
			Blacklist: sqlite.NewBlacklistStore(db),
		}, func() { db.Close() }, nil

	case config.DriverPostgres, config.DriverClickHouse:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		stores := &Stores{
			Bars:      pgstore.NewBarStore(pool),
			Symbols:   pgstore.NewSymbolStore(pool),
			Blacklist: pgstore.NewBlacklistStore(pool),
		}
		if cfg.Driver == config.DriverPostgres {
			log.Info().Msg("postgres storage ready")
			return stores, pool.Close, nil
		}

		// Bars move to ClickHouse, symbols and blacklist stay relational.
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		stores.Bars = chstore.NewBarStore(conn)
		log.Info().Msg("clickhouse bar storage ready")
		return stores, func() {
			conn.Close()
			pool.Close()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
