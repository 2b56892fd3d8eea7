package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/constant"
	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/pkg/logger"
	"github.com/tarabaramaksym/jira-to-bulletpoints/pkg/llm"
)

const maxRequestAttempts = 3

// AIService wraps the LLM backend with the pipeline's three summarization
// operations and a shared retry policy: rate limits back off exponentially,
// token-limit failures fail fast (retrying cannot shrink the payload), and
// everything else gets a linear backoff until the attempt budget runs out.
type AIService struct {
	provider llm.LLMProvider
	logger   logger.ILogger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

func NewAIService(provider llm.LLMProvider, log logger.ILogger) *AIService {
	return &AIService{
		provider: provider,
		logger:   log,
		sleep:    time.Sleep,
	}
}

// SummarizeBatch turns one formatted batch of work items into achievement
// lines. The user's extra instruction is spliced into the prompt when given.
func (s *AIService) SummarizeBatch(ctx context.Context, formattedBatch, userPrompt string) (string, error) {
	prompt := buildChunkPrompt(formattedBatch, userPrompt)
	return s.call(ctx, "SummarizeBatch", prompt)
}

// DeduplicateMerged merges the concatenated per-batch outputs and removes
// duplicate or near-duplicate items in a single call.
func (s *AIService) DeduplicateMerged(ctx context.Context, merged string) (string, error) {
	prompt := strings.ReplaceAll(constant.DeduplicationPrompt, "{{BULLETPOINTS}}", merged)
	return s.call(ctx, "DeduplicateMerged", prompt)
}

// RefineSelection reworks a user-curated subset of achievements per the
// given free-text instruction.
func (s *AIService) RefineSelection(ctx context.Context, achievementsText, additionalPrompt string) (string, error) {
	prompt := strings.ReplaceAll(constant.ReprocessPrompt, "{{ACHIEVEMENTS}}", achievementsText)
	prompt = strings.ReplaceAll(prompt, "{{ADDITIONAL_PROMPT}}", additionalPrompt)
	return s.call(ctx, "RefineSelection", prompt)
}

// TestConnection performs a minimal round trip. It reports false instead of
// returning an error so status probes stay cheap for callers.
func (s *AIService) TestConnection(ctx context.Context) bool {
	response, err := s.provider.Generate(ctx, constant.ConnectivityProbe, llm.WithMaxTokens(10))
	if err != nil {
		return false
	}
	return strings.Contains(response, constant.ConnectivityProbeExpected)
}

func (s *AIService) call(ctx context.Context, operation, userPrompt string) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: constant.SystemPrompt},
		{Role: "user", Content: userPrompt},
	}

	var lastErr error
	for attempt := 1; attempt <= maxRequestAttempts; attempt++ {
		result, err := s.provider.Chat(ctx, history,
			llm.WithTemperature(0.3),
			llm.WithMaxTokens(4000),
		)
		if err == nil {
			return strings.TrimSpace(result), nil
		}
		lastErr = err

		if llm.IsTokenLimit(err) {
			return "", fmt.Errorf("request too large: token limit exceeded, try processing smaller chunks: %w", err)
		}
		if attempt == maxRequestAttempts {
			break
		}

		var delay time.Duration
		if llm.IsRateLimited(err) {
			delay = time.Duration(1<<attempt) * time.Second
		} else {
			delay = time.Duration(attempt) * time.Second
		}

		s.logger.Warn("AIService", "Remote call failed, retrying", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay.String(),
			"error":     err.Error(),
		})
		s.sleep(delay)
	}

	return "", lastErr
}

func buildChunkPrompt(formattedBatch, userPrompt string) string {
	prompt := strings.ReplaceAll(constant.ChunkProcessingPrompt, "{{JIRA_DATA}}", formattedBatch)

	if strings.TrimSpace(userPrompt) != "" {
		instructions := strings.ReplaceAll(constant.UserPromptTemplate, "{{USER_PROMPT}}", userPrompt)
		prompt = strings.ReplaceAll(prompt, "{{USER_PROMPT}}", "\n"+instructions+"\n")
	} else {
		prompt = strings.ReplaceAll(prompt, "{{USER_PROMPT}}", "")
	}

	return prompt
}

// ParseAchievementLines splits free-text model output into clean achievement
// items: one per line, leading bullet markers stripped, blanks dropped.
func ParseAchievementLines(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
