package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image   = "postgres:17-alpine"
	dbUser  = "blinkup"
	dbPass  = "blinkup"
	dbName  = "blinkup_bridge"
	timeout = 30 * time.Second
)

// StartPostgres runs a throwaway Postgres and returns it with a DSN that
// pgx and goose both accept.
func StartPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.Run(ctx,
		image,
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.WithDatabase(dbName),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(timeout)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start Postgres container: %w", err)
	}

	state, err := container.State(ctx)
	if err != nil {
		return container, "", fmt.Errorf("failed to get container state: %w", err)
	}
	if !state.Running {
		return container, "", fmt.Errorf("postgres container is not running")
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("failed to get connection string: %w", err)
	}

	return container, dsn, nil
}

func TerminatePostgres(ctx context.Context, container *postgres.PostgresContainer) error {
	if container == nil {
		return nil
	}
	if err := container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate Postgres container: %w", err)
	}
	return nil
}
