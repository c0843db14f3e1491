package vecstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/civicdesk/db"
	"github.com/civicdesk/civicdesk/internal/config"
)

// Open selects the vector store backend. It migrates the schema, builds a
// connection pool and verifies connectivity; any failure along the way
// downgrades to the in-memory backend with a warning instead of refusing to
// start. The portal stays able to accept complaints while the database is
// down, at the cost of persistence.
//
// The returned cleanup closes the pool and is a no-op for the memory backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Index, func()) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Warn("persistent vector store unavailable, using in-memory fallback",
			"backend", BackendMemory, "error", err)
		return NewMemory(logger), func() {}
	}

	logger.Info("vector store ready", "backend", BackendPostgres)
	return NewPostgres(pool, logger), pool.Close
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
