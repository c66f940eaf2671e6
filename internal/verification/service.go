package verification

import (
	"context"
	"fmt"
)

// Result is the structured outcome of a verification attempt. Token
// misses (NotFound, AlreadyUsed) are reported here, not as errors;
// errors are reserved for store failures.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Failure messages surfaced to the presentation layer.
const (
	MessageNotFound    = "verification code not found"
	MessageAlreadyUsed = "verification code already used"
	MessageVerified    = "verification successful"
)

// Service enforces single-use semantics over the shared code list.
//
// Verification is read-entire-list, mutate-entry, write-entire-list
// with no compare-and-swap: two concurrent verifications of the same
// code can both observe IsValid=true before either writes, consuming
// the code twice and letting the last writer's snapshot drop the
// other's bookkeeping. That race is part of the store contract today;
// closing it would take a conditional update at the store.
type Service struct {
	store Store
}

// NewService creates a verification service over a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Verify consumes a code. On first successful verification the entry's
// usage count is incremented, the entry is invalidated, and the whole
// list is written back; success is reported only after the write lands.
// A write failure surfaces as an error and leaves the durable state
// unchanged.
func (s *Service) Verify(ctx context.Context, code string) (Result, error) {
	codes, err := s.store.GetCodes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load verification codes: %w", err)
	}

	idx := -1
	for i := range codes {
		if codes[i].Code == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{Success: false, Message: MessageNotFound}, nil
	}

	if !codes[idx].IsValid {
		return Result{Success: false, Message: MessageAlreadyUsed}, nil
	}

	codes[idx].UsageCount++
	codes[idx].IsValid = false

	if err := s.store.PutCodes(ctx, codes); err != nil {
		return Result{}, fmt.Errorf("failed to update code status: %w", err)
	}

	return Result{Success: true, Message: MessageVerified, Code: code}, nil
}

// CheckStatus reports whether a code has already been consumed by an
// earlier verification. It is a best-effort pre-check for callers that
// want to short-circuit an already-verified client without spending a
// token; store failures collapse to false.
func (s *Service) CheckStatus(ctx context.Context, code string) bool {
	codes, err := s.store.GetCodes(ctx)
	if err != nil {
		return false
	}

	for i := range codes {
		if codes[i].Code == code {
			return !codes[i].IsValid
		}
	}
	return false
}

// AllCodes returns the full code list for the admin listing endpoint.
func (s *Service) AllCodes(ctx context.Context) ([]Code, error) {
	codes, err := s.store.GetCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification codes: %w", err)
	}
	return codes, nil
}
