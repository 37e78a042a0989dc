// Package coordinator is the always-resident relay between page agents and
// whichever trigger surface happens to be open. It is the only context with
// access to the settings store on behalf of agents, which is why it must stay
// up even when no surface exists.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/credential"
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/settings"
	"horse.fit/skim/internal/translation"
)

// ErrRestrictedPage reports an activation attempt against a privileged page
// where agent injection is disallowed.
var ErrRestrictedPage = errors.New("page scheme is restricted")

// NotConfiguredMessage is the actionable instruction relayed to agents when
// no credential has ever been written.
const NotConfiguredMessage = "API key not found. Please add your Gemini API key in the skim settings."

// resolveTimeout bounds the asynchronous store read behind a deferred
// credential reply.
const resolveTimeout = 10 * time.Second

var restrictedSchemes = []string{"chrome", "edge", "about"}

// Page identifies a translatable page for the fallback activation path.
type Page struct {
	ID  string
	URL string
}

// AgentInjector creates and attaches a page agent to a page. Implemented by
// the application wiring.
type AgentInjector interface {
	Inject(ctx context.Context, page Page) error
}

type Coordinator struct {
	store    settings.Store
	resolver *credential.Resolver
	bus      *bus.Bus
	injector AgentInjector
	logger   zerolog.Logger
}

// New builds a coordinator and registers it as the bus credential endpoint.
// injector may be nil when the fallback activation path is not wired.
func New(store settings.Store, b *bus.Bus, injector AgentInjector, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		store:    store,
		resolver: credential.NewResolver(store),
		bus:      b,
		injector: injector,
		logger:   logger,
	}
	if b != nil {
		b.SetCredentialHandler(c)
	}
	return c
}

// HandleCredentialRequest answers getApiKey. The responder is retained across
// the asynchronous store read; the bus keeps the reply channel open until the
// respond call or expiry. A store with no credential produces a failure reply
// with an instruction, never an error.
func (c *Coordinator) HandleCredentialRequest(_ message.CredentialRequest, respond bus.CredentialResponder) {
	if c == nil || respond == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		key, err := c.resolver.Resolve(ctx)
		switch {
		case err == nil:
			respond(message.CredentialReply{Success: true, APIKey: key})
		case errors.Is(err, credential.ErrNotConfigured):
			respond(message.CredentialReply{Success: false, Message: NotConfiguredMessage})
		default:
			c.logger.Error().Err(err).Msg("credential read failed")
			respond(message.CredentialReply{Success: false, Message: "Could not read the API key. Try again."})
		}
	}()
}

// RelayOutcome re-broadcasts a translation outcome to any open trigger
// surface. When none is listening the outcome is dropped deliberately: there
// is nowhere durable to park it.
func (c *Coordinator) RelayOutcome(outcome message.Outcome) {
	if c == nil || c.bus == nil {
		return
	}

	err := c.bus.Broadcast(outcome)
	if err == nil {
		return
	}
	if errors.Is(err, bus.ErrNoListener) {
		c.logger.Debug().Str("action", outcome.Action).Msg("translation outcome dropped, no surface open")
		return
	}
	c.logger.Error().Err(err).Str("action", outcome.Action).Msg("outcome relay failed")
}

// HandleInstalled seeds preference defaults at install time. Only missing or
// blank fields are filled; re-running against a configured store leaves
// user-set values untouched.
func (c *Coordinator) HandleInstalled(ctx context.Context) error {
	if c == nil || c.store == nil {
		return fmt.Errorf("coordinator is not initialized")
	}

	stored, err := c.store.Get(ctx, settings.PreferenceKeys()...)
	if err != nil {
		return fmt.Errorf("read preferences for seeding: %w", err)
	}

	defaults := settings.DefaultPreferences().ToValues()
	merged := make(settings.Values, len(defaults))
	for _, key := range settings.PreferenceKeys() {
		if value, ok := stored[key]; ok && strings.TrimSpace(value) != "" {
			merged[key] = value
			continue
		}
		merged[key] = defaults[key]
	}

	if err := c.store.Set(ctx, merged); err != nil {
		return fmt.Errorf("seed preference defaults: %w", err)
	}

	c.logger.Info().Msg("preference defaults seeded")
	return nil
}

// Activate is the fallback trigger path used when no surface reaches the
// page: inject an agent and immediately send a translate built from stored
// preferences. Privileged pages are skipped before any injection attempt.
func (c *Coordinator) Activate(ctx context.Context, page Page) (message.Ack, error) {
	if c == nil || c.bus == nil {
		return message.Ack{}, fmt.Errorf("coordinator is not initialized")
	}
	if c.injector == nil {
		return message.Ack{}, fmt.Errorf("agent injection is not wired")
	}
	if err := checkPageScheme(page.URL); err != nil {
		return message.Ack{}, err
	}

	if err := c.injector.Inject(ctx, page); err != nil {
		return message.Ack{}, fmt.Errorf("inject page agent: %w", err)
	}

	prefs, err := settings.LoadPreferences(ctx, c.store)
	if err != nil {
		return message.Ack{}, err
	}

	req := message.TranslateRequest{
		Action:         message.ActionTranslate,
		TargetLanguage: prefs.TargetLanguage,
		PromptTemplate: translation.ExpandTemplate(prefs.PromptTemplate, prefs.TargetLanguage),
		DisplayMode:    prefs.DisplayMode,
		TextDirection:  prefs.TextDirection,
	}
	return c.bus.SendTranslate(ctx, page.ID, req)
}

func checkPageScheme(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	for _, restricted := range restrictedSchemes {
		if scheme == restricted {
			return fmt.Errorf("scheme %s: %w", scheme, ErrRestrictedPage)
		}
	}
	return nil
}
