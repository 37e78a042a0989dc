package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/skim/internal/agent"
	"horse.fit/skim/internal/bus"
	"horse.fit/skim/internal/coordinator"
	"horse.fit/skim/internal/translation"
)

// AgentPool creates page agents on demand and keeps them addressable by page
// id. It is the injector behind coordinator activation and the directory
// behind the pages API.
type AgentPool struct {
	bus          *bus.Bus
	registry     *translation.Registry
	providerName string
	source       agent.BlockSource
	logger       zerolog.Logger

	mu     sync.Mutex
	sink   agent.OutcomeSink
	agents map[string]*agent.Agent
}

func NewAgentPool(b *bus.Bus, registry *translation.Registry, providerName string, source agent.BlockSource, logger zerolog.Logger) *AgentPool {
	return &AgentPool{
		bus:          b,
		registry:     registry,
		providerName: providerName,
		source:       source,
		logger:       logger,
		agents:       make(map[string]*agent.Agent),
	}
}

// SetSink wires the outcome relay. The coordinator is constructed after the
// pool, so the sink arrives late.
func (p *AgentPool) SetSink(sink agent.OutcomeSink) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Inject builds a fresh agent for the page and attaches it to the bus,
// replacing any previous agent for that page id.
func (p *AgentPool) Inject(_ context.Context, pg coordinator.Page) error {
	if p == nil {
		return fmt.Errorf("agent pool is not initialized")
	}

	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return fmt.Errorf("outcome sink is not wired")
	}

	a, err := agent.New(agent.Options{
		PageID:       pg.ID,
		PageURL:      pg.URL,
		Bus:          p.bus,
		Registry:     p.registry,
		ProviderName: p.providerName,
		Source:       p.source,
		Sink:         sink,
		Logger:       p.logger,
	})
	if err != nil {
		return fmt.Errorf("build page agent: %w", err)
	}

	p.mu.Lock()
	p.agents[pg.ID] = a
	p.mu.Unlock()

	p.bus.AttachAgent(pg.ID, a)
	p.logger.Debug().Str("page_id", pg.ID).Str("url", pg.URL).Msg("page agent attached")
	return nil
}

// Lookup resolves the agent attached to a page.
func (p *AgentPool) Lookup(pageID string) (*agent.Agent, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.agents[pageID]
	return a, ok
}

// Remove detaches and forgets the agent for a page.
func (p *AgentPool) Remove(pageID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.agents, pageID)
	p.mu.Unlock()
	p.bus.DetachAgent(pageID)
}
