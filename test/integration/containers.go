// Package integration spins up throwaway infrastructure for tests that need
// a real Postgres. Gated behind the INTEGRATION env var in the tests that use
// it, since it requires a local Docker daemon.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type Env struct {
	PG    *postgres.PostgresContainer
	Pool  *pgxpool.Pool
	PGURL string
}

func Setup(ctx context.Context) (*Env, error) {
	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, err
	}

	pool, err := pgxpool.New(ctx, pgURL)
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, err
	}

	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		_ = pgC.Terminate(ctx)
		return nil, err
	}

	return &Env{PG: pgC, Pool: pool, PGURL: pgURL}, nil
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, file, _, _ := runtime.Caller(0)
	schema, err := os.ReadFile(filepath.Join(filepath.Dir(file), "..", "..", "migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err = pool.Exec(ctx, string(schema))
	return err
}

func (e *Env) Teardown(ctx context.Context) {
	e.Pool.Close()
	_ = e.PG.Terminate(ctx)
}
