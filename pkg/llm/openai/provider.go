package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm"
)

// OpenAIProvider talks to the OpenAI chat completions API through the
// official SDK.
type OpenAIProvider struct {
	client    openai.Client
	ModelName string
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, modelName string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai provider requires an API key")
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		ModelName: modelName,
	}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{
		Temperature: 0.7,
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant", "model":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(options.Temperature),
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(options.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// classifyError maps SDK failures onto the shared sentinel errors. A 429 is a
// rate limit unless the body says the request itself is over the token budget,
// which no amount of retrying can fix.
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if strings.Contains(msg, "tokens per min") || strings.Contains(msg, "maximum context length") {
			return fmt.Errorf("openai error: %s: %w", msg, llm.ErrTokenLimit)
		}
		if apiErr.StatusCode == 429 {
			return fmt.Errorf("openai error: status 429: %w", llm.ErrRateLimited)
		}
	}
	return fmt.Errorf("openai request failed: %w", err)
}
