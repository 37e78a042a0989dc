// Package agent hosts the per-page worker that performs translations. An
// agent acknowledges a translate request synchronously and does all real work
// afterwards, reporting back through a single outcome relay.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/langdetect"
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/page"
	"horse.fit/skim/internal/translation"
)

// DefaultWorkTimeout bounds one full translation run, extraction and provider
// call included.
const DefaultWorkTimeout = 2 * time.Minute

// detectSampleLimit caps how much text feeds the language detector.
const detectSampleLimit = 1500

// BlockSource produces the translatable text blocks of a page.
type BlockSource interface {
	ExtractBlocks(ctx context.Context, pageURL string) ([]string, error)
}

// OutcomeSink receives the single outcome of a translation run. The
// coordinator's relay satisfies it.
type OutcomeSink interface {
	RelayOutcome(outcome message.Outcome)
}

// apiKeyRequirer is optionally implemented by providers that can run without
// a configured credential.
type apiKeyRequirer interface {
	RequiresAPIKey() bool
}

// Options configures one page agent.
type Options struct {
	PageID       string
	PageURL      string
	Bus          *bus.Bus
	Registry     *translation.Registry
	ProviderName string
	Source       BlockSource
	Sink         OutcomeSink
	Logger       zerolog.Logger
	WorkTimeout  time.Duration

	// DetectLanguage overrides the detector, for tests.
	DetectLanguage func(string) string
}

// Result is the rendered view of a finished translation.
type Result struct {
	Blocks         []string `json:"blocks"`
	SourceLanguage string   `json:"source_language,omitempty"`
	TargetLanguage string   `json:"target_language"`
	DisplayMode    string   `json:"display_mode"`
	TextDirection  string   `json:"text_direction"`
}

// Agent is a page-bound translate receiver. Deliver returns its ack before
// any translation work starts; the work itself runs on a detached context so
// it outlives whichever surface triggered it.
type Agent struct {
	opts   Options
	detect func(string) string
	logger zerolog.Logger

	mu     sync.Mutex
	busy   bool
	result *Result
}

func New(opts Options) (*Agent, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("translation registry is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("block source is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("outcome sink is required")
	}
	if strings.TrimSpace(opts.PageID) == "" {
		return nil, fmt.Errorf("page id is required")
	}
	if opts.WorkTimeout <= 0 {
		opts.WorkTimeout = DefaultWorkTimeout
	}

	detect := opts.DetectLanguage
	if detect == nil {
		detect = langdetect.DetectISO6391
	}

	return &Agent{
		opts:   opts,
		detect: detect,
		logger: opts.Logger.With().Str("page_id", opts.PageID).Logger(),
	}, nil
}

// Deliver acknowledges the request and starts the run. A request that arrives
// while a run is in flight is refused with Received=false and has no other
// effect.
func (a *Agent) Deliver(_ context.Context, req message.TranslateRequest) message.Ack {
	if a == nil || req.Action != message.ActionTranslate {
		return message.Ack{Received: false}
	}

	a.mu.Lock()
	if a.busy {
		a.mu.Unlock()
		a.logger.Warn().Msg("translate request refused, run already in flight")
		return message.Ack{Received: false}
	}
	a.busy = true
	a.mu.Unlock()

	go a.run(req)
	return message.Ack{Received: true}
}

// Busy reports whether a run is currently in flight.
func (a *Agent) Busy() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

// LastResult returns the most recent finished translation, if any.
func (a *Agent) LastResult() (Result, bool) {
	if a == nil {
		return Result{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return Result{}, false
	}
	return *a.result, true
}

func (a *Agent) run(req message.TranslateRequest) {
	// The triggering surface may close mid-run; the work keeps its own clock.
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.WorkTimeout)
	defer cancel()

	outcome := a.translate(ctx, req)

	a.mu.Lock()
	a.busy = false
	a.mu.Unlock()

	a.opts.Sink.RelayOutcome(outcome)
}

func (a *Agent) translate(ctx context.Context, req message.TranslateRequest) message.Outcome {
	blocks, err := a.opts.Source.ExtractBlocks(ctx, a.opts.PageURL)
	if err != nil {
		a.logger.Error().Err(err).Msg("page extraction failed")
		return message.ErrorOutcome("Failed to read page content: " + err.Error())
	}
	if len(blocks) == 0 {
		return message.ErrorOutcome("No translatable text found on this page")
	}

	target := translation.NormalizeLangCode(req.TargetLanguage)
	source := a.detect(detectSample(blocks))
	if source != "" && source == target {
		a.storeResult(blocks, source, req)
		return message.CompleteOutcome(fmt.Sprintf("Page is already in %s.", translation.DisplayName(target)))
	}

	provider, err := a.opts.Registry.Provider(a.opts.ProviderName)
	if err != nil {
		return message.ErrorOutcome(err.Error())
	}

	apiKey := ""
	if needsAPIKey(provider) {
		reply, err := a.opts.Bus.RequestCredential(ctx)
		if err != nil {
			a.logger.Error().Err(err).Msg("credential request failed")
			return message.ErrorOutcome("Could not retrieve the API key: " + err.Error())
		}
		if !reply.Success {
			return message.ErrorOutcome(reply.Message)
		}
		apiKey = reply.APIKey
	}

	resp, err := provider.Translate(ctx, translation.TranslateRequest{
		Text:       page.TagBlocks(blocks),
		TargetLang: target,
		Prompt:     req.PromptTemplate,
		APIKey:     apiKey,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("provider", provider.Name()).Msg("provider call failed")
		return message.ErrorOutcome(err.Error())
	}

	translated := page.ParseTaggedBlocks(resp.Text, blocks)
	a.storeResult(translated, source, req)

	a.logger.Info().
		Str("provider", provider.Name()).
		Str("target_language", target).
		Int("blocks", len(translated)).
		Int64("latency_ms", resp.LatencyMs).
		Msg("page translated")

	return message.CompleteOutcome(fmt.Sprintf("Translated %d text blocks.", len(translated)))
}

func (a *Agent) storeResult(blocks []string, source string, req message.TranslateRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = &Result{
		Blocks:         blocks,
		SourceLanguage: source,
		TargetLanguage: translation.NormalizeLangCode(req.TargetLanguage),
		DisplayMode:    req.DisplayMode,
		TextDirection:  req.TextDirection,
	}
}

func needsAPIKey(provider translation.Provider) bool {
	if requirer, ok := provider.(apiKeyRequirer); ok {
		return requirer.RequiresAPIKey()
	}
	return true
}

func detectSample(blocks []string) string {
	var sb strings.Builder
	for _, block := range blocks {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(block)
		if sb.Len() >= detectSampleLimit {
			break
		}
	}
	sample := sb.String()
	if len(sample) > detectSampleLimit {
		cut := detectSampleLimit
		for cut < len(sample) && !utf8.RuneStart(sample[cut]) {
			cut++
		}
		sample = sample[:cut]
	}
	return sample
}
