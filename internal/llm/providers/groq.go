package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

// GroqHandler implements the ChatHandler interface over Groq's
// OpenAI-compatible chat completions API.
type GroqHandler struct {
	options llm.HandlerOptions
	client  *http.Client
	baseURL string
	modelID string
	policy  llm.RetryPolicy
	history []llm.Turn
}

// groqContextReminder is appended to every outgoing user message so the
// model keeps prior context and emits Markdown, matching the behavior
// the presentation layer renders against.
const groqContextReminder = "\n\nPlease keep the prior conversation context in mind and format the response as Markdown."

// OpenAIMessage is the role-tagged message shape shared by the
// OpenAI-compatible backends (Groq, Qwen).
type OpenAIMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// OpenAIChatRequest is the request body for chat completion endpoints.
type OpenAIChatRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []OpenAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream"`
}

// OpenAIChatResponse is the non-streaming chat completion response.
type OpenAIChatResponse struct {
	Choices []OpenAIChoice `json:"choices"`
}

// OpenAIChoice represents one response choice.
type OpenAIChoice struct {
	Index   int           `json:"index"`
	Message OpenAIMessage `json:"message"`
}

// NewGroqHandler creates a new Groq handler.
func NewGroqHandler(options llm.HandlerOptions) *GroqHandler {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	modelID := options.ModelID
	if modelID == "" {
		modelID = "llama-3.1-70b-versatile"
	}

	// Groq inference is fast; a short timeout is appropriate.
	timeout := 30 * time.Second
	if options.RequestTimeoutMs > 0 {
		timeout = time.Duration(options.RequestTimeoutMs) * time.Millisecond
	}

	return &GroqHandler{
		options: options,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		modelID: modelID,
		policy:  llm.DefaultRetryPolicy(),
	}
}

// StartSession implements the ChatHandler interface.
func (h *GroqHandler) StartSession(history []llm.Turn) {
	h.history = llm.CloneHistory(history)
}

// History implements the ChatHandler interface.
func (h *GroqHandler) History() []llm.Turn {
	return llm.CloneHistory(h.history)
}

// SendMessage implements the ChatHandler interface. Unlike the Gemini
// adapter, the system prompt rides as a protocol-level system role.
func (h *GroqHandler) SendMessage(ctx context.Context, text, systemPrompt string) (string, error) {
	messages := make([]OpenAIMessage, 0, len(h.history)+2)
	if systemPrompt != "" {
		messages = append(messages, OpenAIMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openAIHistory(h.history)...)
	messages = append(messages, OpenAIMessage{
		Role:    "user",
		Content: text + groqContextReminder,
	})

	temperature := 0.7
	maxTokens := 2048
	request := OpenAIChatRequest{
		Model:       h.modelID,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Stream:      false,
	}

	reply, err := llm.Retry(ctx, h.policy, func(ctx context.Context) (string, error) {
		return h.chatCompletion(ctx, request)
	})
	if err != nil {
		return "", err
	}

	h.history = append(h.history,
		llm.NewTurn(llm.RoleUser, text),
		llm.NewTurn(llm.RoleModel, reply),
	)

	return reply, nil
}

// TestConnection implements the ChatHandler interface. The test call is
// a real completion, so a backend-authored error body is meaningful:
// this variant logs the failure and returns it instead of collapsing it
// to false.
func (h *GroqHandler) TestConnection(ctx context.Context) (bool, error) {
	request := OpenAIChatRequest{
		Model:    h.modelID,
		Messages: []OpenAIMessage{{Role: "user", Content: "Hello"}},
	}

	if _, err := h.chatCompletion(ctx, request); err != nil {
		log.Printf("Groq connection test failed: %v", err)
		return false, err
	}
	return true, nil
}

// chatCompletion POSTs one request to the chat completions endpoint and
// extracts the first choice's content.
func (h *GroqHandler) chatCompletion(ctx context.Context, request OpenAIChatRequest) (string, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.options.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &llm.UpstreamError{Provider: llm.ProviderGroq, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &llm.UpstreamError{
			Provider:   llm.ProviderGroq,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var response OpenAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("groq response contained no choices")
	}

	return response.Choices[0].Message.Content, nil
}

// openAIHistory translates a mirrored history into OpenAI roles:
// "model" turns become "assistant", everything else stays "user".
func openAIHistory(history []llm.Turn) []OpenAIMessage {
	messages := make([]OpenAIMessage, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == llm.RoleModel {
			role = "assistant"
		}
		messages = append(messages, OpenAIMessage{Role: role, Content: turn.Text()})
	}
	return messages
}
