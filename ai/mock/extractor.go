package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
)

// MockConceptExtractor is a test double for ai.ConceptExtractor.
// It allows custom behavior injection via function fields.
type MockConceptExtractor struct {
	// ExtractConceptsFunc is called by ExtractConcepts if set.
	// If nil, uses default simple word extraction.
	ExtractConceptsFunc func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)

	mu        sync.Mutex
	callCount int
}

// NewMockConceptExtractor creates a mock concept extractor with default behavior.
func NewMockConceptExtractor() *MockConceptExtractor {
	return &MockConceptExtractor{}
}

// ExtractConcepts extracts simple mock concepts from text.
// Default behavior: the first five distinct words become concepts with
// decreasing importance.
func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.ExtractConceptsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}

	words := strings.Fields(strings.ToLower(text))
	concepts := make([]ai.ExtractedConcept, 0, 5)
	seen := make(map[string]bool)
	importance := 10
	for _, word := range words {
		if len(concepts) >= 5 {
			break
		}

		word = strings.Trim(word, ".,!?;:\"'()[]{}—–-")
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true

		conceptType := "abstract_concept"
		if len(word) > 5 {
			conceptType = "thing"
		}

		concepts = append(concepts, ai.ExtractedConcept{
			Name:       word,
			Type:       conceptType,
			Importance: importance,
		})

		if importance > 1 {
			importance--
		}
	}

	return concepts, nil
}

// CallCount returns the number of times ExtractConcepts was called.
func (m *MockConceptExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockConceptExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractConceptsFunc = nil
}
