package migrations

import (
	"context"

	"stock-backfill/internal/storage/postgres"
)

// RunPostgresMigrations creates the incrementum schema and its tables.
// Each file runs as one multi-statement Exec and must be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	return apply(ctx, PostgresFS, "postgres", false, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	})
}
