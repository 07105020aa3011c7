package retrieval

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrIndexRequired is returned when a vector or lexical index is not provided.
	ErrIndexRequired = errors.New("vector and lexical indexes required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrSearchFailed is returned when both the vector and lexical searches fail.
	ErrSearchFailed = errors.New("vector and lexical search both failed")

	// ErrInvalidRerank is returned when a rerank response is not a permutation
	// of the candidates.
	ErrInvalidRerank = errors.New("invalid rerank order")
)
