package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/cli"
	"horse.fit/skim/internal/config"
	"horse.fit/skim/internal/coordinator"
	"horse.fit/skim/internal/logging"
)

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	if !cfg.UsesDatabase() {
		fmt.Fprintln(os.Stderr, "seed requires DATABASE_URL: an in-memory store forgets the seeded values")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, storeCloser, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("seed failed to open settings store")
		fmt.Fprintf(os.Stderr, "Failed to open settings store: %v\n", err)
		return 1
	}
	defer storeCloser.Close()

	b := bus.New(logger, cfg.ReplyTTL())
	defer b.Close()

	coord := coordinator.New(store, b, nil, logger)
	if err := coord.HandleInstalled(ctx); err != nil {
		logger.Error().Err(err).Msg("seeding failed")
		fmt.Fprintf(os.Stderr, "Failed to seed defaults: %v\n", err)
		return 1
	}

	fmt.Println("Preference defaults seeded.")
	return 0
}
