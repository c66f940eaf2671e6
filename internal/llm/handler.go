package llm

import "context"

// Turn represents one entry of a conversation's mirrored history.
// Roles follow the Gemini convention ("user" / "model"); adapters that
// speak OpenAI-style protocols translate "model" to "assistant" on the
// wire.
type Turn struct {
	Role  string     `json:"role"` // "user" or "model"
	Parts []TurnPart `json:"parts"`
}

// TurnPart represents one content part of a turn.
type TurnPart struct {
	Text string `json:"text"`
}

// NewTurn builds a single-part text turn.
func NewTurn(role, text string) Turn {
	return Turn{Role: role, Parts: []TurnPart{{Text: text}}}
}

// Text returns the text of the turn's first part, or "" for an empty turn.
func (t Turn) Text() string {
	if len(t.Parts) == 0 {
		return ""
	}
	return t.Parts[0].Text
}

// CloneHistory returns a defensive copy of a turn slice. The mirrored
// history is replayed on every request, so callers must never share the
// backing array with an adapter.
func CloneHistory(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ChatHandler is the uniform capability surface over one backend's chat
// protocol. The backends themselves are stateless; each adapter keeps a
// mirrored turn history and replays it on every call.
type ChatHandler interface {
	// StartSession initializes backend-specific state. A non-nil history
	// is replayed as prior turns so subsequent calls have conversational
	// context.
	StartSession(history []Turn)

	// SendMessage sends one user message and returns the model's reply.
	// A non-empty systemPrompt is delivered in the adapter's
	// protocol-specific way before the user message. The underlying
	// network call is retried per DefaultRetryPolicy; on success the
	// user turn and the model turn are appended to the mirrored history.
	SendMessage(ctx context.Context, text, systemPrompt string) (string, error)

	// TestConnection issues a minimal real request against the backend
	// and reports whether it answered with an HTTP success. Failure
	// handling is deliberately asymmetric across adapters: see each
	// implementation.
	TestConnection(ctx context.Context) (bool, error)

	// History returns a copy of the adapter's mirrored turn history.
	History() []Turn
}

// FileInput is an in-memory attachment for multimodal submission.
type FileInput struct {
	Name     string
	MimeType string
	Data     []byte
}

// MultimodalHandler is the optional capability of adapters that accept
// file attachments alongside a prompt. Callers must check for it at
// dispatch time rather than assume it.
type MultimodalHandler interface {
	ChatHandler

	// ProcessFile submits the file inline (base64) with the prompt text
	// in a single request and returns the generated text.
	ProcessFile(ctx context.Context, file FileInput, prompt string) (string, error)
}

// HandlerOptions represents configuration options for chat handlers.
type HandlerOptions struct {
	APIKey  string `json:"apiKey"`
	ModelID string `json:"modelId,omitempty"`

	// BaseURL overrides the provider's default endpoint, mainly for tests.
	BaseURL string `json:"baseUrl,omitempty"`

	RequestTimeoutMs int `json:"requestTimeoutMs,omitempty"`
}

// ProviderType identifies one of the supported backends.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderGroq   ProviderType = "groq"
	ProviderQwen   ProviderType = "qwen"
)

// Roles used in mirrored histories.
const (
	RoleUser  = "user"
	RoleModel = "model"
)
