package mock

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// DefaultResponse is returned by MockGenerator.GenerateText when no function is set.
const DefaultResponse = "This is a mock answer."

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateTextFunc is called by GenerateText if set.
	GenerateTextFunc func(ctx context.Context, system, prompt string) (string, error)

	// GenerateJSONFunc is called by GenerateJSON if set. Its result is
	// marshalled and decoded into out, mirroring a real structured response.
	GenerateJSONFunc func(ctx context.Context, system, prompt string) (any, error)

	mu        sync.Mutex
	textCalls int
	jsonCalls int
	prompts   []string
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateText returns the configured answer, streaming it word by word to onChunk.
func (m *MockGenerator) GenerateText(ctx context.Context, system, prompt string, onChunk func(chunk string) error) (string, error) {
	m.mu.Lock()
	m.textCalls++
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateTextFunc
	m.mu.Unlock()

	text := DefaultResponse
	if fn != nil {
		var err error
		text, err = fn(ctx, system, prompt)
		if err != nil {
			return "", err
		}
	}

	if onChunk != nil {
		words := strings.SplitAfter(text, " ")
		for _, word := range words {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if err := onChunk(word); err != nil {
				return "", err
			}
		}
	}
	return text, nil
}

// GenerateJSON decodes the configured value into out. With no function set,
// out is left untouched.
func (m *MockGenerator) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	m.mu.Lock()
	m.jsonCalls++
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateJSONFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}

	value, err := fn(ctx, system, prompt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// TextCallCount returns the number of GenerateText calls.
func (m *MockGenerator) TextCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textCalls
}

// JSONCallCount returns the number of GenerateJSON calls.
func (m *MockGenerator) JSONCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jsonCalls
}

// CallCount returns the number of calls to either method.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.textCalls + m.jsonCalls
}

// Prompts returns every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears the call counts, recorded prompts and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textCalls = 0
	m.jsonCalls = 0
	m.prompts = nil
	m.GenerateTextFunc = nil
	m.GenerateJSONFunc = nil
}
