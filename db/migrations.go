package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path"

	"github.com/jackc/pgx/v5"
)

// Inspired by https://github.com/miniflux/v2/blob/main/internal/database/database.go

//go:embed psql_schema
var migrationFiles embed.FS

type migration struct {
	id      int
	name    string
	handler func(ctx context.Context, tx pgx.Tx) error
}

// Append only, ids are monotonic.
var migrations = []migration{
	{
		id:      1,
		name:    "Base schema",
		handler: runFile("001.base.sql"),
	},
	{
		id:      2,
		name:    "Recurring subscriptions",
		handler: runFile("002.subscriptions.sql"),
	},
	{
		id:      3,
		name:    "Ledger events",
		handler: runFile("003.ledger_events.sql"),
	},
}

// Views are dropped and re-created from scratch whenever any migration ran,
// they are not versioned like table changes.
var viewMigration = migration{
	id:      999,
	name:    "Views",
	handler: runFile("999.views.sql"),
}

func (s *DB) RunMigrations(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS pkd_schema_version (version integer not null)`); err != nil {
		return err
	}
	var databaseSchema int
	var refreshViews bool
	s.conn.QueryRow(ctx, "SELECT version FROM pkd_schema_version").Scan(&databaseSchema)
	slog.DebugContext(ctx, "Checked DB schema", slog.Int("version", databaseSchema))
	for _, mig := range migrations {
		if mig.id <= databaseSchema {
			continue
		}
		refreshViews = true
		slog.InfoContext(ctx, "Executing migration", slog.Int("migration_id", mig.id))

		if err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
			if err := mig.handler(ctx, tx); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx, `DELETE FROM pkd_schema_version`); err != nil {
				return fmt.Errorf("could not clear schema version: %w", err)
			}

			if _, err := tx.Exec(ctx, `INSERT INTO pkd_schema_version (version) VALUES ($1)`, mig.id); err != nil {
				return fmt.Errorf("could not update schema version: %w", err)
			}

			return nil
		}); err != nil {
			return err
		}

	}

	if refreshViews {
		if err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
			return viewMigration.handler(ctx, tx)
		}); err != nil {
			return fmt.Errorf("could not refresh views: %w", err)
		}
	}

	return nil
}

func runFile(name string) func(ctx context.Context, tx pgx.Tx) error {
	return func(ctx context.Context, tx pgx.Tx) error {
		f, err := migrationFiles.ReadFile(path.Join("psql_schema", name))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, string(f))
		return err
	}
}
