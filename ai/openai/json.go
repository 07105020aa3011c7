package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/tmc/langchaingo/llms"
)

// maxJSONAttempts bounds regeneration when a structured response does not parse.
const maxJSONAttempts = 3

// generateJSON sends content in JSON mode and decodes the answer into out.
// Transport errors are returned immediately; parse failures are retried.
func generateJSON(ctx context.Context, client llms.Model, limiter *limiter, logger *slog.Logger, content []llms.MessageContent, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxJSONAttempts; attempt++ {
		if err := limiter.wait(ctx); err != nil {
			return err
		}

		response, err := client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}

		if len(response.Choices) < 1 {
			return ai.ErrEmptyResponse
		}

		responseText := cleanJSON(response.Choices[0].Content)
		if err := json.Unmarshal([]byte(responseText), out); err != nil {
			lastErr = err
			logger.Warn("error parsing structured response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}
		return nil
	}

	logger.Error("failed to parse structured response after retries", "err", lastErr)
	return fmt.Errorf("%w: %w", ai.ErrMalformedJSON, lastErr)
}

// cleanJSON strips markdown code fences and any prose around the outermost
// object, then repairs unquoted keys.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return repairJSON(s)
}
