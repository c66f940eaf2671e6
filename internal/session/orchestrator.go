package session

import (
	"context"
	"sync"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
	"github.com/google/uuid"
)

// Message is one entry of the externally visible conversation record.
// Roles here follow the presentation convention ("user" / "assistant"),
// not the adapters' mirrored-history convention.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the externally visible record of one exchange.
type Conversation struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Provider    llm.ProviderType `json:"provider"`
	Messages    []Message        `json:"messages"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// SendRequest describes one turn to drive.
type SendRequest struct {
	ConversationID int64
	Provider       llm.ProviderType
	APIKey         string
	Text           string
	SystemPrompt   string

	// History replays prior turns when the request targets a
	// conversation loaded from the presentation layer's local snapshot.
	History []llm.Turn

	// Attachment routes the turn through the provider's multimodal
	// capability; providers without one reject it before any network
	// call.
	Attachment *llm.FileInput
}

// Orchestrator drives send-message turns. It is the only place that
// ties the visible conversation records to adapter-internal state: a
// turn is appended to the record only after the adapter call succeeds,
// and the adapter's mirrored history is pushed back into the pool in
// the same step.
type Orchestrator struct {
	pool *Pool

	mu            sync.Mutex
	conversations map[int64]*Conversation
	sendLocks     map[int64]*sync.Mutex
}

// NewOrchestrator creates an orchestrator over an explicitly supplied
// pool. The pool owns adapter lifetimes; the orchestrator owns the
// visible records.
func NewOrchestrator(pool *Pool) *Orchestrator {
	return &Orchestrator{
		pool:          pool,
		conversations: make(map[int64]*Conversation),
		sendLocks:     make(map[int64]*sync.Mutex),
	}
}

// SendTurn resolves or creates the session for the request and performs
// one send. Sends are serialized per conversation id; turns on
// different conversations proceed concurrently.
func (o *Orchestrator) SendTurn(ctx context.Context, req SendRequest) (string, error) {
	lock := o.sendLock(req.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	handler, err := o.pool.GetOrCreate(req.ConversationID, req.Provider, req.APIKey, req.History)
	if err != nil {
		return "", err
	}

	var reply string
	if req.Attachment != nil {
		multimodal, ok := handler.(llm.MultimodalHandler)
		if !ok {
			return "", &llm.UnsupportedMediaError{
				Reason: "provider " + string(req.Provider) + " does not support file attachments",
			}
		}
		reply, err = multimodal.ProcessFile(ctx, *req.Attachment, req.Text)
	} else {
		reply, err = handler.SendMessage(ctx, req.Text, req.SystemPrompt)
	}
	if err != nil {
		// The visible record must not change on failure.
		return "", err
	}

	now := time.Now()
	o.mu.Lock()
	conv, ok := o.conversations[req.ConversationID]
	if !ok {
		conv = &Conversation{
			ID:       req.ConversationID,
			Title:    deriveTitle(req.Text),
			Provider: req.Provider,
		}
		o.conversations[req.ConversationID] = conv
	}
	conv.Provider = req.Provider
	conv.Messages = append(conv.Messages,
		Message{ID: uuid.NewString(), Role: "user", Content: req.Text, Timestamp: now},
		Message{ID: uuid.NewString(), Role: "assistant", Content: reply, Timestamp: now},
	)
	conv.LastUpdated = now
	o.mu.Unlock()

	o.pool.UpdateHistory(req.ConversationID, handler.History())

	return reply, nil
}

// Conversation returns a copy of the visible record for id.
func (o *Orchestrator) Conversation(id int64) (Conversation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	conv, ok := o.conversations[id]
	if !ok {
		return Conversation{}, false
	}

	out := *conv
	out.Messages = make([]Message, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out, true
}

// Conversations returns copies of all visible records.
func (o *Orchestrator) Conversations() []Conversation {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Conversation, 0, len(o.conversations))
	for _, conv := range o.conversations {
		c := *conv
		c.Messages = make([]Message, len(conv.Messages))
		copy(c.Messages, conv.Messages)
		out = append(out, c)
	}
	return out
}

// Load installs a conversation restored from the presentation layer's
// local snapshot and primes the pool with its replayed history.
func (o *Orchestrator) Load(conv Conversation, apiKey string, history []llm.Turn) error {
	if _, err := o.pool.GetOrCreate(conv.ID, conv.Provider, apiKey, history); err != nil {
		return err
	}

	o.mu.Lock()
	stored := conv
	stored.Messages = make([]Message, len(conv.Messages))
	copy(stored.Messages, conv.Messages)
	o.conversations[conv.ID] = &stored
	o.mu.Unlock()

	return nil
}

// Delete discards the visible record and evicts the pool entry. The
// send lock stays in place: dropping it here would let a send started
// after the delete run unserialized against one still in flight on the
// same id.
func (o *Orchestrator) Delete(id int64) {
	o.mu.Lock()
	delete(o.conversations, id)
	o.mu.Unlock()

	o.pool.Remove(id)
}

// sendLock returns the per-conversation mutex, creating it on first
// use. Locks are never removed so a reused id always serializes against
// earlier sends.
func (o *Orchestrator) sendLock(id int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.sendLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.sendLocks[id] = lock
	}
	return lock
}

// deriveTitle trims the first user message into a record title.
func deriveTitle(text string) string {
	const maxTitle = 30
	runes := []rune(text)
	if len(runes) <= maxTitle {
		return text
	}
	return string(runes[:maxTitle]) + "…"
}
