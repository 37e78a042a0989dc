package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/message"
	"horse.fit/skim/internal/translation"
)

type stubSource struct {
	blocks []string
	err    error
	block  chan struct{}
}

func (s *stubSource) ExtractBlocks(_ context.Context, _ string) ([]string, error) {
	if s.block != nil {
		<-s.block
	}
	return s.blocks, s.err
}

type stubProvider struct {
	name     string
	needsKey bool
	reply    string
	err      error

	mu  sync.Mutex
	got []translation.TranslateRequest
}

func (p *stubProvider) Translate(_ context.Context, req translation.TranslateRequest) (*translation.TranslateResponse, error) {
	p.mu.Lock()
	p.got = append(p.got, req)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &translation.TranslateResponse{Text: p.reply, TargetLang: req.TargetLang, ProviderName: p.name}, nil
}

func (p *stubProvider) Name() string                 { return p.name }
func (p *stubProvider) SupportedLanguages() []string { return nil }
func (p *stubProvider) RequiresAPIKey() bool         { return p.needsKey }

func (p *stubProvider) requests() []translation.TranslateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]translation.TranslateRequest, len(p.got))
	copy(out, p.got)
	return out
}

type chanSink struct {
	outcomes chan message.Outcome
}

func (s *chanSink) RelayOutcome(outcome message.Outcome) {
	s.outcomes <- outcome
}

type scriptedCredentials struct {
	reply message.CredentialReply
}

func (h *scriptedCredentials) HandleCredentialRequest(_ message.CredentialRequest, respond bus.CredentialResponder) {
	respond(h.reply)
}

type fixture struct {
	agent    *Agent
	bus      *bus.Bus
	provider *stubProvider
	sink     *chanSink
}

func newFixture(t *testing.T, source BlockSource, provider *stubProvider) *fixture {
	t.Helper()

	b := bus.New(zerolog.Nop(), time.Second)
	t.Cleanup(b.Close)

	registry := translation.NewRegistry(provider.name)
	if err := registry.Register(provider); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	sink := &chanSink{outcomes: make(chan message.Outcome, 4)}
	a, err := New(Options{
		PageID:         "page-1",
		PageURL:        "https://example.com/article",
		Bus:            b,
		Registry:       registry,
		ProviderName:   provider.name,
		Source:         source,
		Sink:           sink,
		Logger:         zerolog.Nop(),
		DetectLanguage: func(string) string { return "en" },
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return &fixture{agent: a, bus: b, provider: provider, sink: sink}
}

func awaitOutcome(t *testing.T, sink *chanSink) message.Outcome {
	t.Helper()
	select {
	case outcome := <-sink.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatalf("no outcome arrived")
		return message.Outcome{}
	}
}

func TestDeliver_AcksBeforeWorkAndEmitsOneOutcome(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub", needsKey: true, reply: "[0]hola[/0]\n[1]mundo[/1]"}
	source := &stubSource{blocks: []string{"hello", "world"}, block: make(chan struct{})}
	f := newFixture(t, source, provider)
	f.bus.SetCredentialHandler(&scriptedCredentials{reply: message.CredentialReply{Success: true, APIKey: "k-9"}})

	ack := f.agent.Deliver(context.Background(), message.TranslateRequest{
		Action:         message.ActionTranslate,
		TargetLanguage: "es",
		PromptTemplate: "Translate to Spanish",
	})
	if !ack.Received {
		t.Fatalf("expected positive ack")
	}
	// Ack came back while extraction is still parked.
	if len(f.provider.requests()) != 0 {
		t.Fatalf("work started before the ack window closed")
	}
	close(source.block)

	outcome := awaitOutcome(t, f.sink)
	if !outcome.Succeeded() {
		t.Fatalf("expected success outcome, got %+v", outcome)
	}
	if !strings.Contains(outcome.DisplayText(), "2 text blocks") {
		t.Fatalf("unexpected outcome text: %q", outcome.DisplayText())
	}

	reqs := f.provider.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one provider call, got %d", len(reqs))
	}
	if reqs[0].APIKey != "k-9" {
		t.Fatalf("credential not passed to provider: %+v", reqs[0])
	}
	if !strings.Contains(reqs[0].Text, "[0]hello[/0]") {
		t.Fatalf("blocks not index-tagged: %q", reqs[0].Text)
	}
	if reqs[0].Prompt != "Translate to Spanish" {
		t.Fatalf("prompt not forwarded: %q", reqs[0].Prompt)
	}

	result, ok := f.agent.LastResult()
	if !ok || result.Blocks[0] != "hola" || result.Blocks[1] != "mundo" {
		t.Fatalf("translated blocks not stored: %+v", result)
	}

	select {
	case extra := <-f.sink.outcomes:
		t.Fatalf("second outcome emitted: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeliver_RefusesWhileBusy(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub", reply: "[0]x[/0]"}
	source := &stubSource{blocks: []string{"text"}, block: make(chan struct{})}
	f := newFixture(t, source, provider)

	req := message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "es"}
	if ack := f.agent.Deliver(context.Background(), req); !ack.Received {
		t.Fatalf("first deliver must be accepted")
	}
	if ack := f.agent.Deliver(context.Background(), req); ack.Received {
		t.Fatalf("second deliver during a run must be refused")
	}

	close(source.block)
	awaitOutcome(t, f.sink)

	// After the run finishes the agent accepts work again.
	if ack := f.agent.Deliver(context.Background(), req); !ack.Received {
		t.Fatalf("agent must accept work after the run finished")
	}
	awaitOutcome(t, f.sink)
}

func TestDeliver_RefusesWrongAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubSource{blocks: []string{"text"}}, &stubProvider{name: "stub"})

	if ack := f.agent.Deliver(context.Background(), message.TranslateRequest{Action: "reload"}); ack.Received {
		t.Fatalf("unknown action must be refused")
	}
}

func TestRun_NotConfiguredCredentialBecomesErrorOutcome(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub", needsKey: true}
	f := newFixture(t, &stubSource{blocks: []string{"text"}}, provider)
	f.bus.SetCredentialHandler(&scriptedCredentials{reply: message.CredentialReply{
		Success: false,
		Message: "API key not found. Please add your Gemini API key in the skim settings.",
	}})

	f.agent.Deliver(context.Background(), message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "es"})

	outcome := awaitOutcome(t, f.sink)
	if outcome.Succeeded() {
		t.Fatalf("expected error outcome")
	}
	if !strings.Contains(outcome.DisplayText(), "API key not found") {
		t.Fatalf("instruction text not relayed: %q", outcome.DisplayText())
	}
	if len(provider.requests()) != 0 {
		t.Fatalf("provider must not be called without a credential")
	}
}

func TestRun_KeylessProviderSkipsCredentialRequest(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub", needsKey: false, reply: "[0]done[/0]"}
	f := newFixture(t, &stubSource{blocks: []string{"text"}}, provider)
	// No credential handler registered at all.

	f.agent.Deliver(context.Background(), message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "es"})

	outcome := awaitOutcome(t, f.sink)
	if !outcome.Succeeded() {
		t.Fatalf("keyless provider run failed: %+v", outcome)
	}
	reqs := provider.requests()
	if len(reqs) != 1 || reqs[0].APIKey != "" {
		t.Fatalf("keyless provider must be called without a key: %+v", reqs)
	}
}

func TestRun_SameLanguagePageSkipsProvider(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub", reply: "[0]x[/0]"}
	f := newFixture(t, &stubSource{blocks: []string{"already english"}}, provider)

	// Fixture detector always reports "en"; target matches it.
	f.agent.Deliver(context.Background(), message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "en"})

	outcome := awaitOutcome(t, f.sink)
	if !outcome.Succeeded() {
		t.Fatalf("expected success outcome, got %+v", outcome)
	}
	if !strings.Contains(outcome.DisplayText(), "already in English") {
		t.Fatalf("unexpected text: %q", outcome.DisplayText())
	}
	if len(provider.requests()) != 0 {
		t.Fatalf("provider must not run for a same-language page")
	}
}

func TestRun_ExtractionFailureBecomesErrorOutcome(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "stub"}
	f := newFixture(t, &stubSource{err: fmt.Errorf("fetch status 500")}, provider)

	f.agent.Deliver(context.Background(), message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "es"})

	outcome := awaitOutcome(t, f.sink)
	if outcome.Succeeded() {
		t.Fatalf("expected error outcome")
	}
	if !strings.Contains(outcome.DisplayText(), "fetch status 500") {
		t.Fatalf("cause missing from outcome: %q", outcome.DisplayText())
	}
}

func TestRun_EmptyPageBecomesErrorOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubSource{blocks: nil}, &stubProvider{name: "stub"})

	f.agent.Deliver(context.Background(), message.TranslateRequest{Action: message.ActionTranslate, TargetLanguage: "es"})

	outcome := awaitOutcome(t, f.sink)
	if outcome.Succeeded() || !strings.Contains(outcome.DisplayText(), "No translatable text") {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
