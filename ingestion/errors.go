package ingestion

import (
	"errors"
	"fmt"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrConceptRepositoryRequired is returned when a concept repository is not provided.
	ErrConceptRepositoryRequired = errors.New("concept repository required")

	// ErrIndexRequired is returned when a vector or lexical index is not provided.
	ErrIndexRequired = errors.New("vector and lexical indexes required")

	// ErrIngesterRequired is returned when a watcher has no ingester.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrInsufficientText is returned when a document has too little extractable text.
	ErrInsufficientText = fmt.Errorf("%w: insufficient text", core.ErrUnrecoverable)

	// ErrUnsupportedFormat is returned when no source can read a file.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", core.ErrUnrecoverable)

	// ErrNoChunks is returned when a job needs chunks its chapter does not have.
	ErrNoChunks = fmt.Errorf("%w: chapter has no chunks", core.ErrMissingPrecondition)
)
