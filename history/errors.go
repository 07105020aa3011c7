package history

import "errors"

var (
	// ErrMessageRepositoryRequired indicates that a message repository is required.
	ErrMessageRepositoryRequired = errors.New("message repository is required")

	// ErrSummaryRepositoryRequired indicates that a summary repository is required.
	ErrSummaryRepositoryRequired = errors.New("summary repository is required")

	// ErrAIProviderRequired indicates that an AI provider is required.
	ErrAIProviderRequired = errors.New("AI provider is required")

	// ErrSummarizeFailed wraps failures of the summary generation call.
	ErrSummarizeFailed = errors.New("failed to summarize conversation")
)
