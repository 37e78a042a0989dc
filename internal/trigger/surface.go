// Package trigger implements the short-lived user-facing surface that starts
// a translation and renders its progress. A surface instance exists only
// while the panel is open; closing it discards all in-flight state, including
// any outstanding request, which then completes (or fails) unobserved.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/settings"
	"horse.fit/skim/internal/translation"
)

// ErrBusy reports a trigger while a translation is already outstanding. The
// caller sees no other effect: no second request is sent.
var ErrBusy = errors.New("a translation is already in progress")

// ErrClosed reports an operation on a surface that is not open.
var ErrClosed = errors.New("trigger surface is not open")

// FallbackPromptTemplate is rendered into the template control when the store
// holds no template at all (for example, before install seeding ran).
const FallbackPromptTemplate = "Translate the following text to {language} while maintaining the original meaning and tone."

type State string

const (
	StateIdle        State = "idle"
	StateTranslating State = "translating"
)

type StatusKind string

const (
	KindInfo    StatusKind = "info"
	KindSuccess StatusKind = "success"
	KindError   StatusKind = "error"
)

// Status is the renderable view of the surface.
type Status struct {
	State          State      `json:"state"`
	Kind           StatusKind `json:"kind"`
	Message        string     `json:"message"`
	TriggerEnabled bool       `json:"trigger_enabled"`
}

// Surface is the trigger-surface state machine. All methods are safe for
// concurrent use; the re-entrancy guard on Translate is taken synchronously
// before the first suspension point.
type Surface struct {
	store  settings.Store
	bus    *bus.Bus
	logger zerolog.Logger

	mu         sync.Mutex
	opened     bool
	listenerID string
	state      State
	kind       StatusKind
	text       string
	prefs      settings.Preferences
}

func NewSurface(store settings.Store, b *bus.Bus, logger zerolog.Logger) *Surface {
	return &Surface{
		store:  store,
		bus:    b,
		logger: logger,
		state:  StateIdle,
		kind:   KindInfo,
	}
}

// Open loads preferences into the controls and registers for outcome
// broadcasts. A reopened surface always starts Idle: it has no memory of a
// request an earlier instance left outstanding.
func (s *Surface) Open(ctx context.Context) error {
	if s == nil || s.store == nil || s.bus == nil {
		return fmt.Errorf("trigger surface is not initialized")
	}

	values, err := s.store.Get(ctx, settings.PreferenceKeys()...)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	prefs := settings.FromValues(values)
	if strings.TrimSpace(values[settings.KeyPromptTemplate]) == "" {
		prefs.PromptTemplate = FallbackPromptTemplate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return fmt.Errorf("trigger surface is already open")
	}
	s.opened = true
	s.state = StateIdle
	s.kind = KindInfo
	s.text = ""
	s.prefs = prefs
	s.listenerID = s.bus.AddListener(s.onOutcome)
	return nil
}

// Close discards all surface state. An outstanding translation keeps running;
// its outcome will broadcast to whoever is listening then, possibly nobody.
func (s *Surface) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	listenerID := s.listenerID
	s.opened = false
	s.listenerID = ""
	s.state = StateIdle
	s.kind = KindInfo
	s.text = ""
	s.mu.Unlock()

	if listenerID != "" {
		s.bus.RemoveListener(listenerID)
	}
}

// Preferences returns the current control values.
func (s *Surface) Preferences() settings.Preferences {
	if s == nil {
		return settings.Preferences{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Status returns the renderable surface state.
func (s *Surface) Status() Status {
	if s == nil {
		return Status{State: StateIdle, Kind: KindInfo, TriggerEnabled: true}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:          s.state,
		Kind:           s.kind,
		Message:        s.text,
		TriggerEnabled: s.state != StateTranslating,
	}
}

// SetTargetLanguage updates the control and write-through saves the full
// preference record, as does every other preference setter.
func (s *Surface) SetTargetLanguage(ctx context.Context, code string) error {
	normalized := translation.NormalizeLangCode(code)
	if normalized == "" {
		return fmt.Errorf("target language %q is not a valid code", code)
	}
	return s.updatePreferences(ctx, func(p *settings.Preferences) {
		p.TargetLanguage = normalized
	})
}

func (s *Surface) SetPromptTemplate(ctx context.Context, template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("prompt template is required")
	}
	return s.updatePreferences(ctx, func(p *settings.Preferences) {
		p.PromptTemplate = template
	})
}

func (s *Surface) SetDisplayMode(ctx context.Context, mode string) error {
	return s.updatePreferences(ctx, func(p *settings.Preferences) {
		p.DisplayMode = mode
	})
}

func (s *Surface) SetTextDirection(ctx context.Context, direction string) error {
	return s.updatePreferences(ctx, func(p *settings.Preferences) {
		p.TextDirection = direction
	})
}

func (s *Surface) updatePreferences(ctx context.Context, apply func(*settings.Preferences)) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("trigger surface is not initialized")
	}

	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrClosed
	}
	next := s.prefs
	apply(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.prefs = next
	s.mu.Unlock()

	// Full-record save on every field-level change, no debounce.
	if err := s.store.Set(ctx, next.ToValues()); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Translate sends a translation request to the agent on pageID. The state
// moves to Translating synchronously, before any suspension point, so a
// second concurrent trigger observes ErrBusy and causes no second send. A
// failed send or a negative acknowledgement returns the surface to Idle with
// the trigger re-enabled; a positive acknowledgement leaves it Translating
// until an outcome broadcast arrives or the surface is closed.
func (s *Surface) Translate(ctx context.Context, pageID string) (message.Ack, error) {
	if s == nil || s.bus == nil {
		return message.Ack{}, fmt.Errorf("trigger surface is not initialized")
	}

	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return message.Ack{}, ErrClosed
	}
	if s.state == StateTranslating {
		s.mu.Unlock()
		return message.Ack{}, ErrBusy
	}
	s.state = StateTranslating
	s.kind = KindInfo
	s.text = "Translating..."
	prefs := s.prefs
	s.mu.Unlock()

	// Persist current settings before sending, as a control change would.
	if err := s.store.Set(ctx, prefs.ToValues()); err != nil {
		s.logger.Warn().Err(err).Msg("preference save before translate failed")
	}

	req := message.TranslateRequest{
		Action:         message.ActionTranslate,
		TargetLanguage: prefs.TargetLanguage,
		PromptTemplate: translation.ExpandTemplate(prefs.PromptTemplate, prefs.TargetLanguage),
		DisplayMode:    prefs.DisplayMode,
		TextDirection:  prefs.TextDirection,
	}

	ack, err := s.bus.SendTranslate(ctx, pageID, req)
	if err != nil || !ack.Received {
		s.mu.Lock()
		if s.opened {
			s.state = StateIdle
			s.kind = KindError
			s.text = "Failed to start translation"
		}
		s.mu.Unlock()
		if err != nil {
			return ack, fmt.Errorf("send translate request: %w", err)
		}
		return ack, nil
	}

	s.mu.Lock()
	if s.opened && s.state == StateTranslating {
		s.text = "Translation in progress..."
	}
	s.mu.Unlock()
	return ack, nil
}

// onOutcome applies a relayed outcome. Any outcome returns the surface to
// Idle and re-enables the trigger, mirroring the at-most-once contract.
func (s *Surface) onOutcome(outcome message.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return
	}

	s.state = StateIdle
	if outcome.Succeeded() {
		s.kind = KindSuccess
		s.text = "Translation complete! " + outcome.DisplayText()
		return
	}
	s.kind = KindError
	s.text = "Error: " + outcome.DisplayText()
}
