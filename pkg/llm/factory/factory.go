package factory

import (
	"fmt"

	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm/ollama"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm/openai"
)

// NewLLMProvider builds a provider from config values. It returns (nil, nil)
// when no backend is configured; the pipeline then runs in degraded mode
// instead of failing at startup.
func NewLLMProvider(providerName, model, ollamaBaseURL, openAIKey string) (llm.LLMProvider, error) {
	switch providerName {
	case "openai":
		if openAIKey == "" {
			return nil, nil
		}
		return openai.NewOpenAIProvider(openAIKey, model)
	case "ollama":
		return ollama.NewOllamaProvider(ollamaBaseURL, model), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", providerName)
	}
}
