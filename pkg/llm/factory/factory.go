package factory

import (
	"fmt"

	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/llm"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/llm/gemini"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/llm/ollama"
)

// NewLLMProvider wires the configured backend. A missing gemini key returns
// (nil, nil): the caller treats a nil provider as "assistant unavailable"
// rather than refusing to start.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "gemini":
		if apiKey == "" {
			return nil, nil
		}
		return gemini.NewGeminiProvider(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
