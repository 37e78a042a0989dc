package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/config"
	"horse.fit/skim/internal/settings"
)

// openStore picks the settings backend: Postgres when DATABASE_URL is set,
// in-memory otherwise. The returned closer is a no-op for the memory store.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (settings.Store, io.Closer, error) {
	if !cfg.UsesDatabase() {
		logger.Warn().Msg("no DATABASE_URL configured, settings live in memory only")
		return settings.NewMemoryStore(), nopCloser{}, nil
	}

	store, err := settings.OpenDBStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open settings store: %w", err)
	}
	logger.Info().Msg("settings store connected")
	return store, store, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
