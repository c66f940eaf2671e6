package providers

import (
	"github.com/entrepeneur4lyf/chatgate/internal/llm"
)

// BuildChatHandler creates a chat handler for one of the supported
// provider types. The provider set is closed; unrecognized identifiers
// fail with an UnsupportedProviderError before any network call.
func BuildChatHandler(provider llm.ProviderType, options llm.HandlerOptions) (llm.ChatHandler, error) {
	switch provider {
	case llm.ProviderGemini:
		return NewGeminiHandler(options), nil
	case llm.ProviderGroq:
		return NewGroqHandler(options), nil
	case llm.ProviderQwen:
		return NewQwenHandler(options), nil
	default:
		return nil, &llm.UnsupportedProviderError{Provider: provider}
	}
}
