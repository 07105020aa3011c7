package openai

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// scriptedModel replays canned responses in order.
type scriptedModel struct {
	responses []string
	err       error
	calls     int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	content := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: `{"a":1}`, expected: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", expected: `{"a":1}`},
		{name: "surrounding prose", input: `Sure! Here it is: {"a":1} Hope this helps.`, expected: `{"a":1}`},
		{name: "array", input: `[0, 2, 1]`, expected: `[0, 2, 1]`},
		{name: "missing opening quote", input: `{concept":"tide"}`, expected: `{"concept":"tide"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanJSON(tt.input))
		})
	}
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "valid input unchanged", input: `{"order":[2,0,1]}`, expected: `{"order":[2,0,1]}`},
		{name: "bare rerank key", input: `{order: [2, 0, 1]}`, expected: `{"order": [2, 0, 1]}`},
		{name: "trailing comma in order", input: `{"order":[2,0,]}`, expected: `{"order":[2,0]}`},
		{name: "metadata key missing opening quote", input: `{"title":"Tides", author":"Ann Ruiz"}`, expected: `{"title":"Tides", "author":"Ann Ruiz"}`},
		{name: "guardrail verdict", input: "{on_topic: true,\n reason: \"about tides\",\n}", expected: "{\"on_topic\": true,\n \"reason\": \"about tides\"\n}"},
		{name: "literals in arrays", input: `{"flags":[true, false, null]}`, expected: `{"flags":[true, false, null]}`},
		{name: "string contents untouched", input: `{"summary":"moon, sun: tides,}", "keywords":["a\",b"]}`, expected: `{"summary":"moon, sun: tides,}", "keywords":["a\",b"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, repairJSON(tt.input))
		})
	}
}

func TestGenerateJSON_RepairsResponses(t *testing.T) {
	model := &scriptedModel{responses: []string{"```json\n{order: [1, 0,]}\n```"}}
	var out struct {
		Order []int `json:"order"`
	}

	require.NoError(t, generateJSON(context.Background(), model, nil, discardLogger(), buildMessages("system", "prompt"), &out))
	assert.Equal(t, []int{1, 0}, out.Order)
	assert.Equal(t, 1, model.calls)
}

func TestGenerateJSON(t *testing.T) {
	ctx := context.Background()
	content := buildMessages("system", "prompt")

	t.Run("decodes first valid response", func(t *testing.T) {
		model := &scriptedModel{responses: []string{`{"title":"Tides","keywords":["moon"]}`}}
		var out struct {
			Title    string   `json:"title"`
			Keywords []string `json:"keywords"`
		}

		require.NoError(t, generateJSON(ctx, model, nil, discardLogger(), content, &out))
		assert.Equal(t, "Tides", out.Title)
		assert.Equal(t, []string{"moon"}, out.Keywords)
		assert.Equal(t, 1, model.calls)
	})

	t.Run("retries malformed responses", func(t *testing.T) {
		model := &scriptedModel{responses: []string{`not json`, `{"title":"Second"}`}}
		var out struct {
			Title string `json:"title"`
		}

		require.NoError(t, generateJSON(ctx, model, nil, discardLogger(), content, &out))
		assert.Equal(t, "Second", out.Title)
		assert.Equal(t, 2, model.calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		model := &scriptedModel{responses: []string{`still not json`}}
		var out map[string]any

		err := generateJSON(ctx, model, nil, discardLogger(), content, &out)
		assert.ErrorIs(t, err, ai.ErrMalformedJSON)
		assert.Equal(t, maxJSONAttempts, model.calls)
	})

	t.Run("empty response", func(t *testing.T) {
		model := &scriptedModel{}
		var out map[string]any

		err := generateJSON(ctx, model, nil, discardLogger(), content, &out)
		assert.ErrorIs(t, err, ai.ErrEmptyResponse)
	})

	t.Run("transport errors are not retried", func(t *testing.T) {
		model := &scriptedModel{err: assert.AnError}
		var out map[string]any

		err := generateJSON(ctx, model, nil, discardLogger(), content, &out)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, model.calls)
	})
}

func TestFilterConcepts(t *testing.T) {
	concepts := []concept{
		{Concept: "Moon", Type: "natural object", Importance: 7},
		{Concept: "tide", Type: "phenomenon", Importance: 9},
		{Concept: "weather", Type: "", Importance: 6},
		{Concept: "trivia", Type: "abstract_concept", Importance: 2},
		{Concept: "  ", Type: "place", Importance: 10},
	}

	extracted := filterConcepts(concepts, 6)
	require.Len(t, extracted, 3)
	assert.Equal(t, ai.ExtractedConcept{Name: "tide", Type: "phenomenon", Importance: 9}, extracted[0])
	assert.Equal(t, ai.ExtractedConcept{Name: "moon", Type: "natural_object", Importance: 7}, extracted[1])
	assert.Equal(t, "abstract_concept", extracted[2].Type)
}

func TestBuildMessages(t *testing.T) {
	messages := buildMessages("", "question")
	require.Len(t, messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[0].Role)

	messages = buildMessages("rules", "question")
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var l *limiter
	assert.NoError(t, l.wait(context.Background()))

	cfg := ai.NewConfig(ai.WithRateLimit(100, 1))
	require.NoError(t, cfg.Validate())
	l = newLimiter(cfg)
	require.NotNil(t, l)
	assert.NoError(t, l.wait(context.Background()))
}
