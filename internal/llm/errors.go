package llm

import "fmt"

// UpstreamError represents a backend call that failed after exhausting
// adapter-level retries. The backend-provided detail is preserved for
// diagnosis.
type UpstreamError struct {
	Provider   ProviderType
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: API error %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// UnsupportedProviderError is returned by the handler factory for
// provider identifiers outside the supported set.
type UnsupportedProviderError struct {
	Provider ProviderType
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider type: %s", e.Provider)
}

// UnsupportedMediaError rejects a multimodal submission before any
// network call: either the provider has no multimodal capability or the
// file violates a size, format, or duration constraint.
type UnsupportedMediaError struct {
	Reason string
}

func (e *UnsupportedMediaError) Error() string {
	return e.Reason
}
