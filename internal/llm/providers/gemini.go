package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

// GeminiHandler implements the ChatHandler interface for Google's
// Gemini API. It is the only adapter with multimodal support.
type GeminiHandler struct {
	options llm.HandlerOptions
	client  *http.Client
	baseURL string
	modelID string
	policy  llm.RetryPolicy
	history []llm.Turn
}

// Multimodal submission limits enforced before any network call.
const (
	geminiMaxFileBytes     = 20 * 1024 * 1024 // 20 MiB inline payload ceiling
	geminiMaxAudioDuration = 34200 * time.Second
)

// supportedAudioTypes is the codec allowlist for audio submissions.
var supportedAudioTypes = []string{
	"audio/wav",
	"audio/mp3",
	"audio/aiff",
	"audio/aac",
	"audio/ogg",
	"audio/flac",
}

// GeminiRequest represents the request to the generateContent endpoint.
type GeminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent represents content in Gemini format.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents different types of content parts.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inline_data,omitempty"`
}

// GeminiInlineData represents inline base64 file data.
type GeminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GeminiGenerationConfig represents generation configuration.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// GeminiResponse represents a generateContent response.
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

// GeminiCandidate represents a response candidate.
type GeminiCandidate struct {
	Content      *GeminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
}

// NewGeminiHandler creates a new Gemini handler.
func NewGeminiHandler(options llm.HandlerOptions) *GeminiHandler {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	modelID := options.ModelID
	if modelID == "" {
		modelID = "gemini-1.5-flash"
	}

	timeout := 60 * time.Second
	if options.RequestTimeoutMs > 0 {
		timeout = time.Duration(options.RequestTimeoutMs) * time.Millisecond
	}

	return &GeminiHandler{
		options: options,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		modelID: modelID,
		policy:  llm.DefaultRetryPolicy(),
	}
}

// StartSession implements the ChatHandler interface.
func (h *GeminiHandler) StartSession(history []llm.Turn) {
	h.history = llm.CloneHistory(history)
}

// History implements the ChatHandler interface.
func (h *GeminiHandler) History() []llm.Turn {
	return llm.CloneHistory(h.history)
}

// SendMessage implements the ChatHandler interface.
//
// A system prompt is not a protocol-level system role here: it is
// injected as a prior turn from the model side, matching the behavior
// the presentation layer depends on.
func (h *GeminiHandler) SendMessage(ctx context.Context, text, systemPrompt string) (string, error) {
	contents := make([]GeminiContent, 0, len(h.history)+2)
	for _, turn := range h.history {
		contents = append(contents, GeminiContent{
			Role:  turn.Role,
			Parts: []GeminiPart{{Text: turn.Text()}},
		})
	}
	if systemPrompt != "" {
		contents = append(contents, GeminiContent{
			Role:  llm.RoleModel,
			Parts: []GeminiPart{{Text: systemPrompt}},
		})
	}
	contents = append(contents, GeminiContent{
		Role:  llm.RoleUser,
		Parts: []GeminiPart{{Text: text}},
	})

	temperature := 0.7
	maxTokens := 2048
	request := GeminiRequest{
		Contents: contents,
		GenerationConfig: &GeminiGenerationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: &maxTokens,
		},
	}

	reply, err := llm.Retry(ctx, h.policy, func(ctx context.Context) (string, error) {
		return h.generateContent(ctx, request)
	})
	if err != nil {
		return "", err
	}

	if systemPrompt != "" {
		h.history = append(h.history, llm.NewTurn(llm.RoleModel, systemPrompt))
	}
	h.history = append(h.history,
		llm.NewTurn(llm.RoleUser, text),
		llm.NewTurn(llm.RoleModel, reply),
	)

	return reply, nil
}

// TestConnection implements the ChatHandler interface. This variant
// collapses every failure to false; the model-info GET has no side
// effects, so there is nothing worth surfacing to the caller.
func (h *GeminiHandler) TestConnection(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/v1/models/%s?key=%s", h.baseURL, h.modelID, h.options.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, nil
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// ProcessFile implements the MultimodalHandler interface. The file is
// validated against the size ceiling (and, for audio, the codec
// allowlist and duration ceiling) before being submitted inline as a
// base64 payload alongside the prompt.
func (h *GeminiHandler) ProcessFile(ctx context.Context, file llm.FileInput, prompt string) (string, error) {
	if len(file.Data) > geminiMaxFileBytes {
		return "", &llm.UnsupportedMediaError{Reason: "file size exceeds 20 MiB limit"}
	}

	if strings.HasPrefix(file.MimeType, "audio/") {
		if err := h.validateAudio(file); err != nil {
			return "", err
		}
	}

	request := GeminiRequest{
		Contents: []GeminiContent{{
			Parts: []GeminiPart{
				{Text: prompt},
				{InlineData: &GeminiInlineData{
					MimeType: file.MimeType,
					Data:     base64.StdEncoding.EncodeToString(file.Data),
				}},
			},
		}},
	}

	return h.generateContent(ctx, request)
}

// validateAudio enforces the codec allowlist and the duration ceiling.
// The duration is decoded from the file's container metadata; a file
// whose metadata cannot be read is rejected rather than guessed at.
func (h *GeminiHandler) validateAudio(file llm.FileInput) error {
	supported := false
	for _, mimeType := range supportedAudioTypes {
		if file.MimeType == mimeType {
			supported = true
			break
		}
	}
	if !supported {
		return &llm.UnsupportedMediaError{
			Reason: "unsupported audio format; supported formats are WAV, MP3, AIFF, AAC, OGG, FLAC",
		}
	}

	duration, err := AudioDuration(file.MimeType, file.Data)
	if err != nil {
		return &llm.UnsupportedMediaError{Reason: fmt.Sprintf("failed to read audio metadata: %v", err)}
	}
	if duration > geminiMaxAudioDuration {
		return &llm.UnsupportedMediaError{Reason: "audio file is too long; maximum duration is 9.5 hours"}
	}

	return nil
}

// generateContent POSTs one request to the generateContent endpoint and
// extracts the first candidate's text.
func (h *GeminiHandler) generateContent(ctx context.Context, request GeminiRequest) (string, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", h.baseURL, h.modelID, h.options.APIKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &llm.UpstreamError{Provider: llm.ProviderGemini, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &llm.UpstreamError{
			Provider:   llm.ProviderGemini,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var response GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response contained no candidates")
	}

	return response.Candidates[0].Content.Parts[0].Text, nil
}
