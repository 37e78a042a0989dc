// Package bus is the asynchronous channel between the three execution
// contexts: trigger surfaces, the coordinator, and page agents. Nothing here
// guarantees delivery. A translate send fails explicitly when no agent is
// attached, a broadcast fails explicitly when no surface is listening, and a
// deferred credential reply that never arrives expires instead of hanging the
// caller.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"horse.fit/skim/internal/message"
)

var (
	// ErrNoReceiver reports a translate send to a page with no attached agent.
	ErrNoReceiver = errors.New("no page agent is attached")
	// ErrNoListener reports a broadcast with no registered trigger surface.
	ErrNoListener = errors.New("no trigger surface is listening")
	// ErrNoReply reports a deferred credential reply that expired unanswered.
	ErrNoReply = errors.New("credential reply never arrived")
)

// DefaultReplyTTL bounds how long a credential request waits for its deferred
// reply before the pending slot expires.
const DefaultReplyTTL = 15 * time.Second

// CredentialResponder delivers one deferred credential reply. It is valid
// after the handler returns; only the first call wins, later calls and calls
// after expiry are dropped.
type CredentialResponder func(message.CredentialReply)

// CredentialHandler is implemented by the coordinator. The handler must not
// block: it hands the responder to whatever asynchronous read it starts.
type CredentialHandler interface {
	HandleCredentialRequest(req message.CredentialRequest, respond CredentialResponder)
}

// TranslateReceiver is the page-agent side of a translate send. Deliver must
// return its Ack before starting any translation work.
type TranslateReceiver interface {
	Deliver(ctx context.Context, req message.TranslateRequest) message.Ack
}

// OutcomeListener observes relayed translation outcomes.
type OutcomeListener func(message.Outcome)

// Bus wires the contexts together. All methods are safe for concurrent use.
type Bus struct {
	logger   zerolog.Logger
	replyTTL time.Duration
	pending  *ttlcache.Cache[string, chan message.CredentialReply]

	mu        sync.Mutex
	handler   CredentialHandler
	listeners map[string]OutcomeListener
	agents    map[string]TranslateReceiver
}

// New creates a Bus. replyTTL <= 0 uses DefaultReplyTTL.
func New(logger zerolog.Logger, replyTTL time.Duration) *Bus {
	if replyTTL <= 0 {
		replyTTL = DefaultReplyTTL
	}
	pending := ttlcache.New[string, chan message.CredentialReply](
		ttlcache.WithTTL[string, chan message.CredentialReply](replyTTL),
		ttlcache.WithDisableTouchOnHit[string, chan message.CredentialReply](),
	)
	go pending.Start()

	return &Bus{
		logger:    logger,
		replyTTL:  replyTTL,
		pending:   pending,
		listeners: make(map[string]OutcomeListener),
		agents:    make(map[string]TranslateReceiver),
	}
}

// Close stops the pending-reply expiration loop.
func (b *Bus) Close() {
	if b == nil || b.pending == nil {
		return
	}
	b.pending.Stop()
}

// SetCredentialHandler registers the resident coordinator endpoint.
func (b *Bus) SetCredentialHandler(handler CredentialHandler) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// RequestCredential sends a getApiKey request and suspends until the deferred
// reply arrives, the context ends, or the pending slot expires. The reply
// channel stays open across the coordinator's asynchronous store read.
func (b *Bus) RequestCredential(ctx context.Context) (message.CredentialReply, error) {
	if b == nil {
		return message.CredentialReply{}, fmt.Errorf("bus is nil")
	}

	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		return message.CredentialReply{}, fmt.Errorf("no coordinator is registered: %w", ErrNoReceiver)
	}

	id := xid.New().String()
	ch := make(chan message.CredentialReply, 1)
	b.pending.Set(id, ch, ttlcache.DefaultTTL)

	respond := func(reply message.CredentialReply) {
		// Claim the pending slot under the lock so only one delivery wins.
		b.mu.Lock()
		item := b.pending.Get(id)
		if item != nil {
			b.pending.Delete(id)
		}
		b.mu.Unlock()
		if item == nil {
			b.logger.Debug().Str("request_id", id).Msg("late credential reply dropped")
			return
		}
		ch <- reply
	}

	go handler.HandleCredentialRequest(message.CredentialRequest{Action: message.ActionGetAPIKey}, respond)

	expire := time.NewTimer(b.replyTTL)
	defer expire.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		b.discardPending(id)
		return message.CredentialReply{}, ctx.Err()
	case <-expire.C:
		b.discardPending(id)
		return message.CredentialReply{}, ErrNoReply
	}
}

func (b *Bus) discardPending(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.Delete(id)
}

// AttachAgent binds a page agent to a page id, replacing any previous agent
// for that page (navigation destroys the old context).
func (b *Bus) AttachAgent(pageID string, receiver TranslateReceiver) {
	if b == nil || receiver == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.agents[pageID] = receiver
}

// DetachAgent removes the agent bound to pageID, if any.
func (b *Bus) DetachAgent(pageID string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.agents, pageID)
}

// AgentAttached reports whether a page currently has an agent.
func (b *Bus) AgentAttached(pageID string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.agents[pageID]
	return ok
}

// SendTranslate delivers a translate request to the agent on pageID and
// returns its synchronous acknowledgement. ErrNoReceiver when none is
// attached.
func (b *Bus) SendTranslate(ctx context.Context, pageID string, req message.TranslateRequest) (message.Ack, error) {
	if b == nil {
		return message.Ack{}, fmt.Errorf("bus is nil")
	}

	b.mu.Lock()
	receiver, ok := b.agents[pageID]
	b.mu.Unlock()
	if !ok {
		return message.Ack{}, fmt.Errorf("page %s: %w", pageID, ErrNoReceiver)
	}

	return receiver.Deliver(ctx, req), nil
}

// AddListener registers a trigger surface for outcome broadcasts and returns
// the id to remove it with.
func (b *Bus) AddListener(listener OutcomeListener) string {
	if b == nil || listener == nil {
		return ""
	}
	id := xid.New().String()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[id] = listener
	return id
}

// RemoveListener drops a registered listener. Unknown ids are ignored.
func (b *Bus) RemoveListener(id string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// ListenerCount reports how many surfaces are currently registered.
func (b *Bus) ListenerCount() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Broadcast relays an outcome to every registered listener. It returns
// ErrNoListener when nobody is registered so callers can observe the dropped
// path instead of a silent no-op. Delivery itself is fire-and-forget.
func (b *Bus) Broadcast(outcome message.Outcome) error {
	if b == nil {
		return fmt.Errorf("bus is nil")
	}

	b.mu.Lock()
	targets := make([]OutcomeListener, 0, len(b.listeners))
	for _, listener := range b.listeners {
		targets = append(targets, listener)
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		return ErrNoListener
	}
	for _, listener := range targets {
		go listener(outcome)
	}
	return nil
}
