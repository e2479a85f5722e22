package migrations

import (
	"context"
	"database/sql"
)

// RunSQLiteMigrations applies the embedded SQLite schema one statement at a time.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	return apply(ctx, SQLiteFS, "sqlite", true, func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}
