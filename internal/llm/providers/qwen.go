package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

// QwenHandler implements the ChatHandler interface over the Hugging
// Face serverless inference endpoint for Qwen, which speaks the
// OpenAI-compatible chat completions shape.
type QwenHandler struct {
	options llm.HandlerOptions
	client  *http.Client
	baseURL string
	modelID string
	policy  llm.RetryPolicy
	history []llm.Turn
}

// NewQwenHandler creates a new Qwen handler.
func NewQwenHandler(options llm.HandlerOptions) *QwenHandler {
	modelID := options.ModelID
	if modelID == "" {
		modelID = "Qwen/Qwen2.5-72B-Instruct"
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/" + modelID + "/v1"
	}

	timeout := 60 * time.Second
	if options.RequestTimeoutMs > 0 {
		timeout = time.Duration(options.RequestTimeoutMs) * time.Millisecond
	}

	return &QwenHandler{
		options: options,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		modelID: modelID,
		policy:  llm.DefaultRetryPolicy(),
	}
}

// StartSession implements the ChatHandler interface.
func (h *QwenHandler) StartSession(history []llm.Turn) {
	h.history = llm.CloneHistory(history)
}

// History implements the ChatHandler interface.
func (h *QwenHandler) History() []llm.Turn {
	return llm.CloneHistory(h.history)
}

// SendMessage implements the ChatHandler interface.
func (h *QwenHandler) SendMessage(ctx context.Context, text, systemPrompt string) (string, error) {
	messages := make([]OpenAIMessage, 0, len(h.history)+2)
	if systemPrompt != "" {
		messages = append(messages, OpenAIMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, openAIHistory(h.history)...)
	messages = append(messages, OpenAIMessage{Role: "user", Content: text})

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

// TestConnection implements the ChatHandler interface. This variant
// collapses every failure to false.
func (h *QwenHandler) TestConnection(ctx context.Context) (bool, error) {
	maxTokens := 50
	request := OpenAIChatRequest{
		Messages:  []OpenAIMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: &maxTokens,
	}

	if _, err := h.chatCompletion(ctx, request); err != nil {
		return false, nil
	}
	return true, nil
}

// chatCompletion POSTs one request to the chat completions endpoint and
// extracts the first choice's content.
func (h *QwenHandler) chatCompletion(ctx context.Context, request OpenAIChatRequest) (string, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.options.APIKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &llm.UpstreamError{Provider: llm.ProviderQwen, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &llm.UpstreamError{
			Provider:   llm.ProviderQwen,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var response OpenAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("qwen response contained no choices")
	}

	return response.Choices[0].Message.Content, nil
}
