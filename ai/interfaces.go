package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConceptExtractor extracts semantic concepts from text.
// Implementations must be thread-safe for concurrent use.
type ConceptExtractor interface {
	// ExtractConcepts analyzes text and extracts key concepts with their types
	// and importance scores.
	// Returns an empty slice if no concepts are found.
	ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error)
}

// Generator produces free text and structured output from a language model.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateText answers prompt under the system instructions. When onChunk
	// is non-nil it receives the answer incrementally as it streams; returning
	// an error from onChunk aborts generation. The full text is returned.
	GenerateText(ctx context.Context, system, prompt string, onChunk func(chunk string) error) (string, error)

	// GenerateJSON asks for a JSON object and decodes it into out.
	// Malformed responses are repaired where possible and retried.
	GenerateJSON(ctx context.Context, system, prompt string, out any) error
}

// ExtractedConcept represents a semantic concept identified in text.
type ExtractedConcept struct {
	// Name is the concept identifier in lowercase, 1-3 words, singular form.
	// Example: "tidal force", "moon"
	Name string

	// Type categorizes the concept (e.g., "phenomenon", "person", "place").
	Type string

	// Importance is a score from 1-10 indicating how central this concept
	// is to understanding the text. Higher scores = more important.
	Importance int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ConceptExtractor returns the concept extraction service.
	ConceptExtractor() ConceptExtractor

	// Generator returns the text generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
