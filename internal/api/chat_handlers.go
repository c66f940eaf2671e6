package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/entrepeneur4lyf/chatgate/internal/llm"
	"github.com/entrepeneur4lyf/chatgate/internal/session"
	"github.com/gorilla/mux"
)

// SendMessageRequest is the body of a send-turn request.
type SendMessageRequest struct {
	Provider     string     `json:"provider"`
	APIKey       string     `json:"apiKey,omitempty"`
	Message      string     `json:"message"`
	SystemPrompt string     `json:"systemPrompt,omitempty"`
	History      []llm.Turn `json:"history,omitempty"`

	Attachment *AttachmentPayload `json:"attachment,omitempty"`
}

// AttachmentPayload carries a base64-encoded file alongside the prompt.
type AttachmentPayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// TestConnectionRequest is the body of a provider probe.
type TestConnectionRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey,omitempty"`
}

// handleSendMessage drives one conversation turn through the
// orchestrator.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeFailure(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeFailure(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		s.writeFailure(w, "provider is required", http.StatusBadRequest)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.config.ProviderKey(req.Provider)
	}

	sendReq := session.SendRequest{
		ConversationID: id,
		Provider:       llm.ProviderType(req.Provider),
		APIKey:         apiKey,
		Text:           req.Message,
		SystemPrompt:   req.SystemPrompt,
		History:        req.History,
	}

	if req.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Data)
		if err != nil {
			s.writeFailure(w, "attachment data is not valid base64", http.StatusBadRequest)
			return
		}
		sendReq.Attachment = &llm.FileInput{
			Name:     req.Attachment.Name,
			MimeType: req.Attachment.MimeType,
			Data:     data,
		}
	}

	reply, err := s.app.Orchestrator.SendTurn(r.Context(), sendReq)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	conv, _ := s.app.Orchestrator.Conversation(id)
	s.writeJSON(w, map[string]interface{}{
		"reply":        reply,
		"conversation": conv,
	})
}

// LoadConversationRequest restores a conversation from the caller's
// local snapshot: the visible record plus the turn history to replay
// into a fresh adapter.
type LoadConversationRequest struct {
	Provider string            `json:"provider"`
	APIKey   string            `json:"apiKey,omitempty"`
	Title    string            `json:"title"`
	Messages []session.Message `json:"messages"`
	History  []llm.Turn        `json:"history,omitempty"`
}

// handleLoadConversation installs a restored conversation and primes
// its session with the replayed history.
func (s *Server) handleLoadConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeFailure(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	var req LoadConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		s.writeFailure(w, "provider is required", http.StatusBadRequest)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.config.ProviderKey(req.Provider)
	}

	conv := session.Conversation{
		ID:       id,
		Title:    req.Title,
		Provider: llm.ProviderType(req.Provider),
		Messages: req.Messages,
	}
	if err := s.app.Orchestrator.Load(conv, apiKey, req.History); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{"success": true})
}

// handleConversations lists the visible conversation records.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.app.Orchestrator.Conversations())
}

// handleConversation returns or deletes one conversation record.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeFailure(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case "GET":
		conv, ok := s.app.Orchestrator.Conversation(id)
		if !ok {
			s.writeFailure(w, "conversation not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, conv)
	case "DELETE":
		s.app.Orchestrator.Delete(id)
		s.writeJSON(w, map[string]interface{}{"success": true})
	}
}

// handleTestConnection probes one provider with the supplied
// credential. A Groq failure carries the backend's error detail; the
// other variants collapse failures to connected=false.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req TestConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.config.ProviderKey(req.Provider)
	}

	handler, err := s.app.BuildHandler(llm.ProviderType(req.Provider), llm.HandlerOptions{APIKey: apiKey})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	connected, err := handler.TestConnection(r.Context())
	response := map[string]interface{}{"connected": connected}
	if err != nil {
		response["message"] = err.Error()
	}
	s.writeJSON(w, response)
}

// writeChatError maps the error taxonomy onto status codes: caller
// misuse is 4xx, exhausted backends are 502, everything else 500.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	var providerErr *llm.UnsupportedProviderError
	var mediaErr *llm.UnsupportedMediaError
	var upstreamErr *llm.UpstreamError

	switch {
	case errors.As(err, &providerErr), errors.As(err, &mediaErr):
		s.writeFailure(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &upstreamErr):
		s.logger.Error("backend call failed", "error", err)
		s.writeFailure(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error("chat turn failed", "error", err)
		s.writeFailure(w, err.Error(), http.StatusInternalServerError)
	}
}
