package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// VerifyRequest is the body of the verification endpoint.
type VerifyRequest struct {
	Code string `json:"code"`
}

// handleVerify consumes a verification code. The endpoint is
// rate-limited per client IP, short-circuits clients whose code was
// already consumed by an earlier verification, and otherwise delegates
// to the consumption service.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ip := getRealIP(r)
	if !s.app.Limiter.Admit(ip) {
		s.writeFailure(w, "too many verification attempts, try again later", http.StatusTooManyRequests)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeFailure(w, "invalid request body", http.StatusBadRequest)
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		s.writeFailure(w, "verification code is required", http.StatusBadRequest)
		return
	}

	if s.app.Verifier == nil {
		s.writeFailure(w, "verification store not configured", http.StatusInternalServerError)
		return
	}

	// A client re-submitting an already consumed code has verified
	// before; let it through without spending another token.
	if s.app.Verifier.CheckStatus(r.Context(), code) {
		s.writeJSON(w, map[string]interface{}{
			"success": true,
			"message": "verification successful",
			"code":    code,
		})
		return
	}

	result, err := s.app.Verifier.Verify(r.Context(), code)
	if err != nil {
		s.logger.Error("verification failed", "error", err)
		s.writeFailure(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !result.Success {
		s.writeFailure(w, result.Message, http.StatusBadRequest)
		return
	}

	s.writeJSON(w, result)
}

// handleAdminCodes returns the full code list. Requires the server-held
// admin secret as a bearer credential.
func (s *Server) handleAdminCodes(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if s.config.AdminSecret == "" || authHeader != "Bearer "+s.config.AdminSecret {
		s.writeFailure(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if s.app.Verifier == nil {
		s.writeFailure(w, "verification store not configured", http.StatusInternalServerError)
		return
	}

	codes, err := s.app.Verifier.AllCodes(r.Context())
	if err != nil {
		s.logger.Error("failed to list codes", "error", err)
		s.writeFailure(w, "failed to load verification codes", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success": true,
		"codes":   codes,
	})
}
