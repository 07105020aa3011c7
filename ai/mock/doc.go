// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ConceptExtractor,
// ai.Generator and ai.AIProvider for use in unit tests. The mocks allow tests to
// run without external AI service dependencies and enable controlled,
// deterministic behavior. All mocks are safe for concurrent use.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewMockProvider()
//	embeddings, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	generator := mock.NewMockGenerator()
//	generator.GenerateTextFunc = func(ctx context.Context, system, prompt string) (string, error) {
//	    return "The tide rises twice a day.", nil
//	}
//
//	// Check call counts
//	count := generator.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockConceptExtractor: Extracts simple concepts from words in text
//   - MockGenerator: Streams DefaultResponse word by word; GenerateJSON leaves out untouched
//   - MockProvider: Aggregates the three services
package mock
