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
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/page"
	"horse.fit/skim/internal/settings"
	"horse.fit/skim/internal/translation"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	pageURL := fs.String("url", "", "URL of the page to translate (required)")
	lang := fs.String("lang", "", "Target language code (overrides the stored preference)")
	providerName := fs.String("provider", "", "Translation provider (default: configured provider)")
	timeout := fs.Duration("timeout", 3*time.Minute, "How long to wait for the translation outcome")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "--url is required")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, storeCloser, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("translate failed to open settings store")
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

	selectedProvider := *providerName
	if selectedProvider == "" {
		selectedProvider = registry.DefaultProvider()
	}

	pool := NewAgentPool(b, registry, selectedProvider, extractor, logger)
	coord := coordinator.New(store, b, pool, logger)
	pool.SetSink(coord)

	if err := coord.HandleInstalled(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to seed defaults: %v\n", err)
		return 1
	}

	if *lang != "" {
		normalized := translation.NormalizeLangCode(*lang)
		if normalized == "" {
			fmt.Fprintf(os.Stderr, "--lang %q is not a valid language code\n", *lang)
			return 2
		}
		if err := store.Set(ctx, settings.Values{settings.KeyTargetLanguage: normalized}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set target language: %v\n", err)
			return 1
		}
	}

	outcomes := make(chan message.Outcome, 1)
	listenerID := b.AddListener(func(outcome message.Outcome) {
		select {
		case outcomes <- outcome:
		default:
		}
	})
	defer b.RemoveListener(listenerID)

	const pageID = "cli-page"
	ack, err := coord.Activate(ctx, coordinator.Page{ID: pageID, URL: *pageURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Activation failed: %v\n", err)
		return 1
	}
	if !ack.Received {
		fmt.Fprintln(os.Stderr, "The page agent refused the translate request")
		return 1
	}

	select {
	case outcome := <-outcomes:
		if !outcome.Succeeded() {
			fmt.Fprintf(os.Stderr, "Error: %s\n", outcome.DisplayText())
			return 1
		}
		fmt.Printf("Translation complete! %s\n", outcome.DisplayText())
		if a, ok := pool.Lookup(pageID); ok {
			if result, ok := a.LastResult(); ok {
				fmt.Println()
				for _, block := range result.Blocks {
					fmt.Println(block)
					fmt.Println()
				}
			}
		}
		return 0
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "Timed out waiting for the translation outcome")
		return 1
	}
}
