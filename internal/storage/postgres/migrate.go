// Package postgres implements the dispatch, sobriety and wallet stores on
// PostgreSQL through sqlx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema in one transaction. Every statement
// is idempotent.
func Migrate(ctx context.Context, pg *postgresql.Client, logger *slog.Logger) error {
	err := pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("Database schema applied")
	return nil
}
