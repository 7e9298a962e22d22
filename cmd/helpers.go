// File: cmd/helpers.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/llmclient"
	"github.com/xkilldash9x/lancet-cli/internal/runner"
	"github.com/xkilldash9x/lancet-cli/internal/store"
)

func buildLLMClient(cfg *config.Config, logger *zap.Logger) (schemas.LLMClient, error) {
	client, err := llmclient.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("building LLM client: %w", err)
	}
	return client, nil
}

// buildStore opens the optional report database. Without a configured URL it
// returns a nil persister, which the runner treats as disk-only persistence.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runner.ReportPersister, func(), error) {
	if cfg.Database.URL == "" {
		return nil, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func closeQuietly(client schemas.LLMClient, logger *zap.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("Closing LLM client", zap.Error(err))
	}
}
