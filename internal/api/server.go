package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/chatgate/internal/app"
	"github.com/entrepeneur4lyf/chatgate/internal/config"
	"github.com/gorilla/mux"
)

// Server represents the API server.
type Server struct {
	config     *config.Config
	app        *app.App
	logger     *log.Logger
	httpServer *http.Server
}

// NewServer creates a new API server over an explicitly wired app.
func NewServer(cfg *config.Config, chatgateApp *app.App) *Server {
	return &Server{
		config: cfg,
		app:    chatgateApp,
		logger: chatgateApp.Logger,
	}
}

// Start starts the API server.
func (s *Server) Start(port int) error {
	router := s.setupRoutes()

	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("starting API server", "addr", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.corsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Verification endpoints
	api.HandleFunc("/verify", s.handleVerify).Methods("POST")
	api.HandleFunc("/admin/codes", s.handleAdminCodes).Methods("GET")

	// Chat endpoints
	api.HandleFunc("/chat/conversations", s.handleConversations).Methods("GET")
	api.HandleFunc("/chat/conversations/{id}", s.handleConversation).Methods("GET", "DELETE")
	api.HandleFunc("/chat/conversations/{id}", s.handleLoadConversation).Methods("PUT")
	api.HandleFunc("/chat/conversations/{id}/messages", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/chat/test-connection", s.handleTestConnection).Methods("POST")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	return router
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getRealIP gets the real client IP from the request, honoring proxy
// headers the way the deployment sets them.
func getRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"services": map[string]bool{
			"verification": s.app.Verifier != nil,
			"chat":         true,
		},
	}
	s.writeJSON(w, health)
}
