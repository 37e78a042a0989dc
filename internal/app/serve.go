package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/cli"
	"horse.fit/skim/internal/config"
	"horse.fit/skim/internal/coordinator"
	"horse.fit/skim/internal/httpapi"
	"horse.fit/skim/internal/logging"
	"horse.fit/skim/internal/page"
	"horse.fit/skim/internal/translation"
	"horse.fit/skim/internal/trigger"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	addr := fs.String("addr", "", "Listen address (overrides SKIM_LISTEN_ADDR)")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

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

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer storeCancel()

	store, storeCloser, err := openStore(storeCtx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to open settings store")
		fmt.Fprintf(os.Stderr, "Failed to open settings store: %v\n", err)
		return 1
	}
	defer storeCloser.Close()

	b := bus.New(logger, cfg.ReplyTTL())
	defer b.Close()

	registry := translation.NewRegistryFromEnv()
	extractor := page.NewExtractor(page.FetchOptions{
		Timeout:       cfg.PageFetchTimeout(),
		BodyByteLimit: cfg.PageBodyLimitBytes,
		UserAgent:     cfg.PageFetchUserAgent,
	})

	pool := NewAgentPool(b, registry, registry.DefaultProvider(), extractor, logger)
	coord := coordinator.New(store, b, pool, logger)
	pool.SetSink(coord)

	// Startup plays the role of installation: fill in missing defaults.
	if err := coord.HandleInstalled(storeCtx); err != nil {
		logger.Error().Err(err).Msg("seeding preference defaults failed")
		fmt.Fprintf(os.Stderr, "Failed to seed defaults: %v\n", err)
		return 1
	}

	surface := trigger.NewSurface(store, b, logger)
	defer surface.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	listenAddr := cfg.ListenAddr
	if *addr != "" {
		listenAddr = *addr
	}

	srv := httpapi.NewServer(store, registry, coord, surface, pool, logger, httpapi.Options{
		Addr:            listenAddr,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		AllowedOrigins:  cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("addr", listenAddr).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
