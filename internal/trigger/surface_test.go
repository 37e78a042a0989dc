package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/settings"
)

type scriptedReceiver struct {
	mu    sync.Mutex
	ack   message.Ack
	block chan struct{}
	got   []message.TranslateRequest
}

func (r *scriptedReceiver) Deliver(_ context.Context, req message.TranslateRequest) message.Ack {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, req)
	return r.ack
}

func (r *scriptedReceiver) requests() []message.TranslateRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]message.TranslateRequest, len(r.got))
	copy(out, r.got)
	return out
}

func newTestSurface(t *testing.T) (*Surface, *bus.Bus, *settings.MemoryStore) {
	t.Helper()
	b := bus.New(zerolog.Nop(), time.Second)
	t.Cleanup(b.Close)
	store := settings.NewMemoryStore()
	return NewSurface(store, b, zerolog.Nop()), b, store
}

func waitForState(t *testing.T, s *Surface, state State) Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status := s.Status()
		if status.State == state {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("surface never reached state %s (last: %+v)", state, s.Status())
	return Status{}
}

func TestOpen_InsertsFallbackTemplate(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSurface(t)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	prefs := s.Preferences()
	if prefs.PromptTemplate != FallbackPromptTemplate {
		t.Fatalf("expected fallback template, got %q", prefs.PromptTemplate)
	}
	if !strings.Contains(prefs.PromptTemplate, "{language}") {
		t.Fatalf("fallback template is missing the placeholder")
	}
}

func TestPreferenceChange_WritesThroughFullRecord(t *testing.T) {
	t.Parallel()

	s, _, store := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.SetTargetLanguage(ctx, "fr"); err != nil {
		t.Fatalf("set language: %v", err)
	}

	values, err := store.Get(ctx, settings.PreferenceKeys()...)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if values[settings.KeyTargetLanguage] != "fr" {
		t.Fatalf("language not saved: %q", values[settings.KeyTargetLanguage])
	}
	// Single-field change persists the whole record.
	for _, key := range settings.PreferenceKeys() {
		if strings.TrimSpace(values[key]) == "" {
			t.Fatalf("key %s missing from write-through save", key)
		}
	}
}

func TestSetDisplayMode_RejectsUnknownValue(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.SetDisplayMode(ctx, "sideways"); err == nil {
		t.Fatalf("expected invalid display mode to be rejected")
	}
}

func TestTranslate_SubstitutesLanguageName(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.SetTargetLanguage(ctx, "es"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if err := s.SetPromptTemplate(ctx, "Translate to {language}"); err != nil {
		t.Fatalf("set template: %v", err)
	}

	receiver := &scriptedReceiver{ack: message.Ack{Received: true}}
	b.AttachAgent("page-1", receiver)

	if _, err := s.Translate(ctx, "page-1"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	reqs := receiver.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	if reqs[0].PromptTemplate != "Translate to Spanish" {
		t.Fatalf("unexpected prompt: %q", reqs[0].PromptTemplate)
	}
	if strings.Contains(reqs[0].PromptTemplate, "{language}") {
		t.Fatalf("residual placeholder in sent prompt")
	}
}

func TestTranslate_SendFailureReturnsToIdleError(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	// No agent attached anywhere.
	_, err := s.Translate(ctx, "page-1")
	if !errors.Is(err, bus.ErrNoReceiver) {
		t.Fatalf("expected ErrNoReceiver, got %v", err)
	}

	status := s.Status()
	if status.State != StateIdle || status.Kind != KindError {
		t.Fatalf("unexpected status after failed send: %+v", status)
	}
	if !status.TriggerEnabled {
		t.Fatalf("trigger must be re-enabled after a failed send")
	}
}

func TestTranslate_NegativeAckReturnsToIdleError(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	b.AttachAgent("page-1", &scriptedReceiver{ack: message.Ack{Received: false}})

	ack, err := s.Translate(ctx, "page-1")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if ack.Received {
		t.Fatalf("expected negative ack")
	}

	status := s.Status()
	if status.State != StateIdle || status.Kind != KindError || !status.TriggerEnabled {
		t.Fatalf("unexpected status after negative ack: %+v", status)
	}
}

func TestTranslate_SecondTriggerWhileOutstandingIsNoOp(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	receiver := &scriptedReceiver{ack: message.Ack{Received: true}}
	b.AttachAgent("page-1", receiver)

	if _, err := s.Translate(ctx, "page-1"); err != nil {
		t.Fatalf("first translate: %v", err)
	}

	_, err := s.Translate(ctx, "page-1")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(receiver.requests()) != 1 {
		t.Fatalf("second trigger must not send a second request")
	}

	status := s.Status()
	if status.State != StateTranslating || status.TriggerEnabled {
		t.Fatalf("first request state disturbed by second trigger: %+v", status)
	}
}

func TestOutcome_SuccessReEnablesTrigger(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	b.AttachAgent("page-1", &scriptedReceiver{ack: message.Ack{Received: true}})
	if _, err := s.Translate(ctx, "page-1"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	if err := b.Broadcast(message.CompleteOutcome("Translated 4 text blocks.")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	status := waitForState(t, s, StateIdle)
	if status.Kind != KindSuccess || !status.TriggerEnabled {
		t.Fatalf("unexpected status after success: %+v", status)
	}
	if !strings.Contains(status.Message, "Translation complete!") {
		t.Fatalf("unexpected success message: %q", status.Message)
	}
}

func TestOutcome_FailureReEnablesTrigger(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	b.AttachAgent("page-1", &scriptedReceiver{ack: message.Ack{Received: true}})
	if _, err := s.Translate(ctx, "page-1"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	if err := b.Broadcast(message.ErrorOutcome("provider unavailable")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	status := waitForState(t, s, StateIdle)
	if status.Kind != KindError || !status.TriggerEnabled {
		t.Fatalf("unexpected status after failure: %+v", status)
	}
	if !strings.Contains(status.Message, "provider unavailable") {
		t.Fatalf("error text not relayed verbatim: %q", status.Message)
	}
}

func TestCloseAndReopen_DiscardsTranslatingState(t *testing.T) {
	t.Parallel()

	s, b, _ := newTestSurface(t)
	ctx := context.Background()
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	b.AttachAgent("page-1", &scriptedReceiver{ack: message.Ack{Received: true}})
	if _, err := s.Translate(ctx, "page-1"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	s.Close()
	if b.ListenerCount() != 0 {
		t.Fatalf("closed surface left a listener registered")
	}

	// The outcome now broadcasts to nobody; that is the documented drop path.
	if err := b.Broadcast(message.CompleteOutcome("late")); !errors.Is(err, bus.ErrNoListener) {
		t.Fatalf("expected ErrNoListener, got %v", err)
	}

	if err := s.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	status := s.Status()
	if status.State != StateIdle || !status.TriggerEnabled {
		t.Fatalf("reopened surface must start Idle with trigger enabled: %+v", status)
	}
}

func TestPreferenceEdit_RejectedWhenClosed(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestSurface(t)

	err := s.SetTargetLanguage(context.Background(), "de")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
