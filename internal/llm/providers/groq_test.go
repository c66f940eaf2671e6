package providers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

func openAIReply(text string) OpenAIChatResponse {
	return OpenAIChatResponse{
		Choices: []OpenAIChoice{{Message: OpenAIMessage{Role: "assistant", Content: text}}},
	}
}

func TestGroqSendMessage(t *testing.T) {
	var captured OpenAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer groq-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(openAIReply("Sure."))
	}))
	defer server.Close()

	handler := NewGroqHandler(llm.HandlerOptions{APIKey: "groq-key", BaseURL: server.URL})
	handler.policy = fastPolicy()
	handler.StartSession([]llm.Turn{
		llm.NewTurn(llm.RoleUser, "first"),
		llm.NewTurn(llm.RoleModel, "second"),
	})

	reply, err := handler.SendMessage(t.Context(), "explain", "Be brief.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Sure." {
		t.Errorf("expected Sure., got %q", reply)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
	}
	// System prompt rides as a protocol-level system role.
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "Be brief." {
		t.Errorf("system message wrong: %+v", captured.Messages[0])
	}
	// Mirrored "model" turns go out as "assistant".
	if captured.Messages[2].Role != "assistant" || captured.Messages[2].Content != "second" {
		t.Errorf("role mapping wrong: %+v", captured.Messages[2])
	}
	// The outgoing user message carries the context reminder suffix.
	last := captured.Messages[3]
	if last.Role != "user" || !strings.HasPrefix(last.Content, "explain") {
		t.Errorf("user message wrong: %+v", last)
	}
	if !strings.HasSuffix(last.Content, groqContextReminder) {
		t.Errorf("context reminder missing from %q", last.Content)
	}

	if captured.Stream {
		t.Error("streaming must be disabled")
	}
	if *captured.Temperature != 0.7 || *captured.MaxTokens != 2048 {
		t.Errorf("unexpected sampling config: %v %v", *captured.Temperature, *captured.MaxTokens)
	}

	// The mirrored history stores the bare user text, not the reminder.
	history := handler.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 mirrored turns, got %d", len(history))
	}
	if history[2].Text() != "explain" {
		t.Errorf("mirrored user turn carries the reminder: %q", history[2].Text())
	}
}

func TestGroqSendMessageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	handler := NewGroqHandler(llm.HandlerOptions{APIKey: "k", BaseURL: server.URL})
	handler.policy = fastPolicy()

	_, err := handler.SendMessage(t.Context(), "hi", "")
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Provider != llm.ProviderGroq {
		t.Errorf("expected groq provider, got %s", upstream.Provider)
	}
	if len(handler.History()) != 0 {
		t.Error("history changed on failure")
	}
}

func TestGroqTestConnectionSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	handler := NewGroqHandler(llm.HandlerOptions{APIKey: "bad", BaseURL: server.URL})

	ok, err := handler.TestConnection(t.Context())
	if ok {
		t.Error("expected connected=false")
	}
	// Unlike the other adapters this variant returns the failure so the
	// caller can show the backend's detail.
	if err == nil {
		t.Fatal("expected the backend error to be surfaced")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("backend detail missing from %q", err.Error())
	}
}

func TestGroqTestConnectionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIReply("Hello!"))
	}))
	defer server.Close()

	handler := NewGroqHandler(llm.HandlerOptions{APIKey: "k", BaseURL: server.URL})
	ok, err := handler.TestConnection(t.Context())
	if err != nil || !ok {
		t.Errorf("expected (true, nil), got (%v, %v)", ok, err)
	}
}
