package session

import (
	"sync"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
	"github.com/entrepeneur4lyf/chatgate/internal/llm/providers"
)

// BuildFunc constructs a chat handler for a provider. It exists so
// tests can substitute fakes for the real adapter factory.
type BuildFunc func(provider llm.ProviderType, options llm.HandlerOptions) (llm.ChatHandler, error)

// entry binds one conversation id to a live adapter instance and the
// mirrored history last pushed back by the orchestrator.
type entry struct {
	provider llm.ProviderType
	handler  llm.ChatHandler
	history  []llm.Turn
}

// Pool is the keyed registry of active conversations. Each entry holds
// a live adapter (and therefore its outbound credential) for the
// lifetime of the entry. The pool is shared across all conversation
// turns in the process, so every mutation takes the lock.
type Pool struct {
	build   BuildFunc
	mu      sync.RWMutex
	entries map[int64]*entry
}

// NewPool creates a pool using the given handler factory.
func NewPool(build BuildFunc) *Pool {
	return &Pool{
		build:   build,
		entries: make(map[int64]*entry),
	}
}

// NewDefaultPool creates a pool backed by the real provider adapters.
func NewDefaultPool() *Pool {
	return NewPool(providers.BuildChatHandler)
}

// GetOrCreate returns the adapter bound to id. An existing entry with
// the same provider is returned unchanged; a provider change discards
// the old adapter and builds a fresh one, replaying history into it.
// Unknown provider identifiers are the factory's problem and surface as
// an UnsupportedProviderError from it.
func (p *Pool) GetOrCreate(id int64, provider llm.ProviderType, apiKey string, history []llm.Turn) (llm.ChatHandler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[id]; ok && e.provider == provider {
		return e.handler, nil
	}

	handler, err := p.build(provider, llm.HandlerOptions{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	handler.StartSession(history)

	p.entries[id] = &entry{
		provider: provider,
		handler:  handler,
		history:  llm.CloneHistory(history),
	}

	return handler, nil
}

// UpdateHistory overwrites the mirrored history for an existing entry.
// No-op if the id is unknown.
func (p *Pool) UpdateHistory(id int64, history []llm.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[id]; ok {
		e.history = llm.CloneHistory(history)
	}
}

// History returns a copy of the mirrored history for an entry.
func (p *Pool) History(id int64) ([]llm.Turn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	return llm.CloneHistory(e.history), true
}

// Remove evicts one entry.
func (p *Pool) Remove(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, id)
}

// Clear evicts all entries.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[int64]*entry)
}

// Len reports the number of active entries.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
