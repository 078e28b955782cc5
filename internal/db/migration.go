package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate brings the plan cache schema up to date.
func Migrate(ctx context.Context, cfg Config) error {
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	conn, err := sql.Open("pgx", cfg.Url)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer conn.Close()

	if err := conn.PingContext(ctx); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}

	// a single connection keeps the search_path for the goose run
	conn.SetMaxOpenConns(1)

	ident := pgx.Identifier{schema}.Sanitize()
	if _, err := conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return fmt.Errorf("unable to create schema %s: %w", schema, err)
	}
	if _, err := conn.ExecContext(ctx, "SET search_path TO "+ident); err != nil {
		return fmt.Errorf("unable to set search_path: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, conn, "migrations"); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	slog.Info("Database migrations completed", "schema", schema)
	return nil
}
