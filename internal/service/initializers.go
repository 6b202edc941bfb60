// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/gate"
	"github.com/xkilldash9x/rightsguard-cli/internal/store"
)

// InitializeDatabase opens and verifies the connection pool for the case store.
func InitializeDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is not configured (hint: check RIGHTSGUARD_DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	// A single run at a time needs very few connections.
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Debug("Database connection pool initialized.", zap.String("host", poolConfig.ConnConfig.Host))
	return pool, nil
}

// OpenStore connects, migrates and returns the store on its own, for commands
// that manage records without starting a run. cleanup closes the pool.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error) {
	pool, err := InitializeDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, pool.Close, nil
}

// InitializeGate resolves the runtime directory and returns the verification gate
// rooted there. It is shared by the running process and the `continue` command.
func InitializeGate(cfg config.VerificationConfig, logger *zap.Logger) (*gate.Gate, error) {
	dir, err := expandDir(cfg.RuntimeDir)
	if err != nil {
		return nil, fmt.Errorf("invalid verification runtime dir: %w", err)
	}
	return gate.New(dir, logger), nil
}

// expandDir expands "~" and creates the directory.
func expandDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("directory is not configured")
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", expanded, err)
	}
	return expanded, nil
}
