package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
)

const (
	DefaultBudget           = 16000
	DefaultSummaryAllowance = 200

	summaryPrefix = "[Earlier in conversation: "
	summarySuffix = "]\n\n"
)

// Compactor builds conversation transcripts within a token budget.
type Compactor struct {
	messages  storage.MessageRepository
	summaries storage.SummaryRepository
	generator ai.Generator
	estimator *tokens.Estimator
	budget    int
	allowance int
	logger    *slog.Logger
}

// Option configures a Compactor.
type Option func(*Compactor) error

// WithBudget sets the transcript budget and the share reserved for the
// summary line. Defaults are 16000 and 200 tokens.
func WithBudget(budget, allowance int) Option {
	return func(c *Compactor) error {
		if budget < 1 || allowance < 0 || allowance >= budget {
			return fmt.Errorf("invalid history budget %d with allowance %d", budget, allowance)
		}
		c.budget = budget
		c.allowance = allowance
		return nil
	}
}

// WithEstimator caches per-message token counts. Messages never change
// once stored, so estimates are keyed by message ID.
func WithEstimator(estimator *tokens.Estimator) Option {
	return func(c *Compactor) error {
		c.estimator = estimator
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compactor) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCompactor creates a Compactor that summarizes with the provider's generator.
func NewCompactor(messages storage.MessageRepository, summaries storage.SummaryRepository, provider ai.AIProvider, opts ...Option) (*Compactor, error) {
	if messages == nil {
		return nil, ErrMessageRepositoryRequired
	}
	if summaries == nil {
		return nil, ErrSummaryRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	c := &Compactor{
		messages:  messages,
		summaries: summaries,
		generator: provider.Generator(),
		budget:    DefaultBudget,
		allowance: DefaultSummaryAllowance,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "history")
	return c, nil
}

// BuildHistory returns the transcript of scope. Messages are rendered one
// per line as "User: ..." or "Assistant: ...", oldest first.
//
// When the transcript exceeds the budget, the newest messages that fit in
// the budget minus the summary allowance stay verbatim and the rest are
// replaced by a single "[Earlier in conversation: ...]" line. The newest
// message is always kept and at least one message is always summarized.
func (c *Compactor) BuildHistory(ctx context.Context, scope core.Scope) (string, error) {
	messages, err := c.messages.GetMessages(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("failed to load messages: %w", err)
	}
	if len(messages) == 0 {
		return "", nil
	}

	lines := make([]string, len(messages))
	costs := make([]int, len(messages))
	total := 0
	for i, message := range messages {
		lines[i] = formatMessage(message)
		costs[i] = c.estimate(message.Id, lines[i])
		total += costs[i]
	}

	if total <= c.budget {
		return strings.Join(lines, "\n"), nil
	}
	if len(messages) == 1 {
		// Nothing older to summarize.
		return lines[0], nil
	}

	limit := c.budget - c.allowance
	boundary := len(messages) - 1
	recent := costs[boundary]
	for boundary > 1 && recent+costs[boundary-1] <= limit {
		boundary--
		recent += costs[boundary]
	}

	summary, err := c.summarize(ctx, scope, messages[:boundary], lines[:boundary])
	if err != nil {
		return "", err
	}

	c.logger.Debug("compacted history",
		"documentId", scope.DocumentId,
		"chapterId", scope.ChapterId,
		"summarized", boundary,
		"verbatim", len(messages)-boundary)

	return summaryPrefix + summary + summarySuffix + strings.Join(lines[boundary:], "\n"), nil
}

// summarize returns the summary of older, reusing the cached one when it
// ends at the same message.
func (c *Compactor) summarize(ctx context.Context, scope core.Scope, older []*core.Message, lines []string) (string, error) {
	last := older[len(older)-1].Id

	cached, err := c.summaries.GetSummary(ctx, scope)
	switch {
	case err == nil && cached.LastSummarizedMessageId == last:
		return cached.SummaryText, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", fmt.Errorf("failed to load conversation summary: %w", err)
	}

	text, err := c.generator.GenerateText(ctx, summarySystemPrompt, c.transcriptTail(lines), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizeFailed, err)
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrSummarizeFailed, ai.ErrEmptyResponse)
	}

	err = c.summaries.UpsertSummary(ctx, &core.ConversationSummary{
		DocumentId:              scope.DocumentId,
		ChapterId:               scope.ChapterId,
		SummaryText:             text,
		LastSummarizedMessageId: last,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store conversation summary: %w", err)
	}
	return text, nil
}

// transcriptTail joins the newest lines that fit in the budget. The
// summarizer sees at most one budget's worth of older conversation.
func (c *Compactor) transcriptTail(lines []string) string {
	start := len(lines) - 1
	used := tokens.Estimate(lines[start])
	for start > 0 {
		cost := tokens.Estimate(lines[start-1])
		if used+cost > c.budget {
			break
		}
		used += cost
		start--
	}
	return strings.Join(lines[start:], "\n")
}

func (c *Compactor) estimate(id core.ID, line string) int {
	if c.estimator == nil {
		return tokens.Estimate(line)
	}
	return c.estimator.EstimateKey("message:"+strconv.FormatUint(uint64(id), 10), line)
}

func formatMessage(message *core.Message) string {
	return message.Role.String() + ": " + message.Content
}
