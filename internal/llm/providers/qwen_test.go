package providers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

func TestQwenSendMessage(t *testing.T) {
	var captured OpenAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(openAIReply("answer"))
	}))
	defer server.Close()

	handler := NewQwenHandler(llm.HandlerOptions{APIKey: "hf-key", BaseURL: server.URL})
	handler.policy = fastPolicy()
	handler.StartSession([]llm.Turn{
		llm.NewTurn(llm.RoleUser, "q"),
		llm.NewTurn(llm.RoleModel, "a"),
	})

	reply, err := handler.SendMessage(t.Context(), "next question", "System context.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "answer" {
		t.Errorf("expected answer, got %q", reply)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" {
		t.Errorf("system message missing: %+v", captured.Messages[0])
	}
	if captured.Messages[2].Role != "assistant" || captured.Messages[2].Content != "a" {
		t.Errorf("role mapping wrong: %+v", captured.Messages[2])
	}
	// No reminder suffix on this adapter.
	if captured.Messages[3].Content != "next question" {
		t.Errorf("user message altered: %q", captured.Messages[3].Content)
	}
}

func TestQwenDefaultEndpoint(t *testing.T) {
	handler := NewQwenHandler(llm.HandlerOptions{APIKey: "k"})
	if !strings.Contains(handler.baseURL, "Qwen/Qwen2.5-72B-Instruct") {
		t.Errorf("default endpoint missing model path: %s", handler.baseURL)
	}
}

func TestQwenTestConnectionCollapsesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	handler := NewQwenHandler(llm.HandlerOptions{APIKey: "k", BaseURL: server.URL})
	ok, err := handler.TestConnection(t.Context())
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestQwenTestConnectionSuccess(t *testing.T) {
	var captured OpenAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(openAIReply("Hi"))
	}))
	defer server.Close()

	handler := NewQwenHandler(llm.HandlerOptions{APIKey: "k", BaseURL: server.URL})
	ok, err := handler.TestConnection(t.Context())
	if err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
	}
	if captured.MaxTokens == nil || *captured.MaxTokens != 50 {
		t.Errorf("probe should cap tokens at 50: %+v", captured.MaxTokens)
	}
}
