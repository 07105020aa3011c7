package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/ai/mock"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage/badger"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorIndex struct {
	mu     sync.Mutex
	ids    []core.ID
	err    error
	calls  int
	scopes []core.Scope
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, entries ...*core.VectorEntry) error {
	return nil
}

func (f *fakeVectorIndex) Search(ctx context.Context, vector []float32, k int, scope core.Scope) ([]core.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	matches := make([]core.VectorMatch, 0, len(f.ids))
	for i, id := range f.ids {
		if i >= k {
			break
		}
		matches = append(matches, core.VectorMatch{ChunkId: id, Distance: float32(i) / 10})
	}
	return matches, nil
}

func (f *fakeVectorIndex) DeleteScope(ctx context.Context, scope core.Scope) error {
	return nil
}

type fakeLexicalIndex struct {
	mu     sync.Mutex
	ids    []core.ID
	err    error
	calls  int
	scopes []core.Scope
}

func (f *fakeLexicalIndex) Index(ctx context.Context, chunks ...*core.Chunk) error {
	return nil
}

func (f *fakeLexicalIndex) Search(ctx context.Context, query string, limit int, scope core.Scope) ([]core.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func (f *fakeLexicalIndex) Remove(ctx context.Context, chunks ...*core.Chunk) error {
	return nil
}

type engineFixture struct {
	store     *badger.Store
	chunks    []*core.Chunk
	vectors   *fakeVectorIndex
	lexical   *fakeLexicalIndex
	provider  *mock.MockProvider
	generator *mock.MockGenerator
	engine    *Engine
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEngineFixture stores one chunk per content. Chunk i is addressed in
// tests as f.id(i).
func newEngineFixture(t *testing.T, contents []string, opts ...Option) *engineFixture {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	chunks := make([]*core.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = &core.Chunk{
			DocumentId: 1,
			ChapterId:  2,
			Index:      i,
			Content:    content,
			Heading:    "Tides",
			PageStart:  i + 1,
			PageEnd:    i + 1,
			TokenCount: tokens.Estimate(content),
		}
	}
	if len(chunks) > 0 {
		chunks, err = store.Chunks.AddChunks(context.Background(), chunks...)
		require.NoError(t, err)
	}

	provider := mock.NewMockProvider().(*mock.MockProvider)
	f := &engineFixture{
		store:     store,
		chunks:    chunks,
		vectors:   &fakeVectorIndex{},
		lexical:   &fakeLexicalIndex{},
		provider:  provider,
		generator: provider.GetMockGenerator(),
	}

	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	f.engine, err = NewEngine(store.Chunks, f.vectors, f.lexical, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *engineFixture) id(i int) core.ID {
	return f.chunks[i].Id
}

func (f *engineFixture) idList(indexes ...int) []core.ID {
	out := make([]core.ID, len(indexes))
	for i, idx := range indexes {
		out[i] = f.id(idx)
	}
	return out
}

func numbered(n int) []string {
	contents := make([]string, n)
	for i := range contents {
		contents[i] = "Passage about the tides number " + strings.Repeat("x", i+1)
	}
	return contents
}

func TestNewEngine_Validation(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	provider := mock.NewMockProvider()

	_, err = NewEngine(nil, store.Vectors, store.Lexical, provider)
	assert.Equal(t, ErrChunkRepositoryRequired, err)

	_, err = NewEngine(store.Chunks, nil, store.Lexical, provider)
	assert.Equal(t, ErrIndexRequired, err)

	_, err = NewEngine(store.Chunks, store.Vectors, nil, provider)
	assert.Equal(t, ErrIndexRequired, err)

	_, err = NewEngine(store.Chunks, store.Vectors, store.Lexical, nil)
	assert.Equal(t, ErrAIProviderRequired, err)

	_, err = NewEngine(store.Chunks, store.Vectors, store.Lexical, provider, WithContextBudget(0, 5))
	assert.Error(t, err)

	engine, err := NewEngine(store.Chunks, store.Vectors, store.Lexical, provider, WithLogger(nil))
	require.NoError(t, err)
	engine.Close()
}

func TestRetrieve_WorkedExample(t *testing.T) {
	f := newEngineFixture(t, numbered(9))
	// Chunk "n" of the example is f.id(n-1).
	f.vectors.ids = f.idList(4, 1, 8)
	f.lexical.ids = f.idList(1, 4, 0)

	ranked, err := f.engine.Retrieve(context.Background(), "What is X?", core.DocumentScope(1))
	require.NoError(t, err)

	assert.Equal(t, f.idList(4, 1, 8, 0), ids(ranked))
	assert.InDelta(t, 1.0/61+1.0/62, ranked[0].Score, 1e-12)
	assert.Equal(t, f.chunks[4].Content, ranked[0].Content)
	assert.Equal(t, "Tides", ranked[0].Heading)
	assert.Equal(t, 5, ranked[0].PageStart)

	// Chunks 5 and 2 tie below the confidence threshold, so the generator is
	// asked to rerank. It returns no order and the fused ranking stands.
	assert.Equal(t, 1, f.generator.JSONCallCount())
}

func TestRetrieve_PassesScope(t *testing.T) {
	f := newEngineFixture(t, numbered(2))
	f.vectors.ids = f.idList(0)

	scope := core.ChapterScope(1, 2)
	_, err := f.engine.Retrieve(context.Background(), "tides", scope)
	require.NoError(t, err)

	assert.Equal(t, []core.Scope{scope}, f.vectors.scopes)
	assert.Equal(t, []core.Scope{scope}, f.lexical.scopes)
}

func TestRetrieve_Rerank(t *testing.T) {
	t.Run("applies generator order", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.vectors.ids = f.idList(0, 1, 2)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return map[string]any{"order": []int{2, 0}}, nil
		}

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(2, 0, 1), ids(ranked))
		assert.Equal(t, 1, f.generator.JSONCallCount())

		prompts := f.generator.Prompts()
		require.Len(t, prompts, 1)
		assert.Contains(t, prompts[0], "Question: tides")
		assert.Contains(t, prompts[0], "[2] ")
	})

	t.Run("falls back on provider error", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.vectors.ids = f.idList(0, 1, 2)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return nil, errors.New("provider down")
		}

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(0, 1, 2), ids(ranked))
	})

	t.Run("falls back on invalid order", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.vectors.ids = f.idList(0, 1, 2)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return map[string]any{"order": []int{7}}, nil
		}

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(0, 1, 2), ids(ranked))
	})

	t.Run("skipped when first in both lists", func(t *testing.T) {
		f := newEngineFixture(t, numbered(2))
		f.vectors.ids = f.idList(0, 1)
		f.lexical.ids = f.idList(0, 1)

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(0, 1), ids(ranked))
		assert.InDelta(t, 2.0/61, ranked[0].Score, 1e-12)
		assert.Zero(t, f.generator.JSONCallCount())
	})

	t.Run("runs when first and second across lists", func(t *testing.T) {
		f := newEngineFixture(t, numbered(2))
		f.vectors.ids = f.idList(0, 1)
		f.lexical.ids = f.idList(1, 0)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return map[string]any{"order": []int{1, 0}}, nil
		}

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(1, 0), ids(ranked))
		assert.Equal(t, 1, f.generator.JSONCallCount())
	})

	t.Run("skipped on a clear winner", func(t *testing.T) {
		f := newEngineFixture(t, numbered(2), WithHighConfidence(1))
		f.vectors.ids = f.idList(0, 1)
		f.lexical.ids = f.idList(0)

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(0, 1), ids(ranked))
		assert.Zero(t, f.generator.JSONCallCount())
	})
}

func TestRetrieve_Degradation(t *testing.T) {
	t.Run("vector failure uses lexical results", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.vectors.err = errors.New("index offline")
		f.lexical.ids = f.idList(2)

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(2), ids(ranked))
	})

	t.Run("embedding failure uses lexical results", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.provider.GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("rate limited")
		}
		f.lexical.ids = f.idList(1)

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(1), ids(ranked))
		assert.Zero(t, f.vectors.calls)
	})

	t.Run("lexical failure uses vector results", func(t *testing.T) {
		f := newEngineFixture(t, numbered(3))
		f.vectors.ids = f.idList(0)
		f.lexical.err = errors.New("corrupt postings")

		ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		assert.Equal(t, f.idList(0), ids(ranked))
	})

	t.Run("both failing is an error", func(t *testing.T) {
		f := newEngineFixture(t, numbered(1))
		f.vectors.err = errors.New("a")
		f.lexical.err = errors.New("b")

		_, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
		assert.ErrorIs(t, err, ErrSearchFailed)
	})
}

func TestRetrieve_TopNAndMissingChunks(t *testing.T) {
	f := newEngineFixture(t, numbered(4), WithTopN(3), WithHighConfidence(0))
	missing := core.ID(999999)
	f.vectors.ids = []core.ID{f.id(0), missing, f.id(1), f.id(2), f.id(3)}

	ranked, err := f.engine.Retrieve(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.Equal(t, f.idList(0, 1), ids(ranked))
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	f := newEngineFixture(t, nil)
	_, err := f.engine.Retrieve(context.Background(), "   ", core.DocumentScope(1))
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, f.vectors.calls)
}

type recordingMonitor struct {
	stages []string
}

func (m *recordingMonitor) Start(string, core.Scope)           { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterVectorSearch([]core.ID, error)  { m.stages = append(m.stages, "vector") }
func (m *recordingMonitor) AfterLexicalSearch([]core.ID, error) { m.stages = append(m.stages, "lexical") }
func (m *recordingMonitor) AfterFusion([]Fused)                 { m.stages = append(m.stages, "fusion") }
func (m *recordingMonitor) AfterRerank(_ []core.ID, outcome string) {
	m.stages = append(m.stages, "rerank:"+outcome)
}
func (m *recordingMonitor) Finish([]core.RankedChunk) { m.stages = append(m.stages, "finish") }

func TestRetrieveWithMonitor(t *testing.T) {
	f := newEngineFixture(t, numbered(1))
	f.vectors.ids = f.idList(0)

	monitor := &recordingMonitor{}
	_, err := f.engine.RetrieveWithMonitor(context.Background(), "tides", core.DocumentScope(1), monitor)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "vector", "lexical", "fusion", "rerank:skipped", "finish"}, monitor.stages)
}

func TestAnswerContext_NoCandidates(t *testing.T) {
	f := newEngineFixture(t, numbered(2))

	result, err := f.engine.AnswerContext(context.Background(), "anything?", core.DocumentScope(1))
	require.NoError(t, err)
	assert.True(t, result.NoContext)
	assert.Equal(t, NoContextMessage, result.Text)
	assert.Empty(t, result.Chunks)
	assert.Zero(t, f.generator.CallCount())
}

func TestAnswerContext_SearchFailureAnswersWithoutContext(t *testing.T) {
	f := newEngineFixture(t, numbered(1))
	f.vectors.err = errors.New("a")
	f.lexical.err = errors.New("b")

	result, err := f.engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.True(t, result.NoContext)
}

func TestAnswerContext_Formatting(t *testing.T) {
	f := newEngineFixture(t, []string{"The moon raises tides."})
	f.vectors.ids = f.idList(0)

	result, err := f.engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.False(t, result.NoContext)
	assert.Equal(t, "[Tides, page 1]\nThe moon raises tides.", result.Text)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, tokens.Estimate(result.Text+contextSeparator), result.Tokens)
}

func TestAnswerContext_ChunkCap(t *testing.T) {
	f := newEngineFixture(t, numbered(8), WithHighConfidence(0))
	f.vectors.ids = f.idList(0, 1, 2, 3, 4, 5, 6, 7)

	result, err := f.engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.Equal(t, f.idList(0, 1, 2, 3, 4), ids(result.Chunks))
}

func TestAnswerContext_GreedyStop(t *testing.T) {
	contents := []string{
		strings.Repeat("a", 100),
		strings.Repeat("b", 4000),
		strings.Repeat("c", 100),
	}
	f := newEngineFixture(t, contents, WithContextBudget(200, 5), WithHighConfidence(0))
	f.vectors.ids = f.idList(0, 1, 2)

	result, err := f.engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.Equal(t, f.idList(0), ids(result.Chunks))
	assert.NotContains(t, result.Text, "ccc")
}

func TestAnswerContext_FirstChunkTooLarge(t *testing.T) {
	f := newEngineFixture(t, []string{strings.Repeat("z", 4000)}, WithContextBudget(100, 5))
	f.vectors.ids = f.idList(0)

	result, err := f.engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
	require.NoError(t, err)
	assert.True(t, result.NoContext)
}

func TestAnswerContext_RespectsBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	contents := make([]string, 10)
	for i := range contents {
		contents[i] = strings.Repeat("w ", 1+rng.Intn(600))
	}
	f := newEngineFixture(t, contents, WithHighConfidence(0))
	f.vectors.ids = f.idList(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	for _, budget := range []int{1, 50, 120, 300, 800, 2000} {
		engine, err := NewEngine(f.store.Chunks, f.vectors, f.lexical, f.provider,
			WithLogger(discardLogger()),
			WithHighConfidence(0),
			WithContextBudget(budget, DefaultMaxChunks))
		require.NoError(t, err)

		result, err := engine.AnswerContext(context.Background(), "tides", core.DocumentScope(1))
		require.NoError(t, err)
		if !result.NoContext {
			assert.LessOrEqual(t, result.Tokens, budget)
			assert.LessOrEqual(t, tokens.Estimate(result.Text), budget)
			assert.LessOrEqual(t, len(result.Chunks), DefaultMaxChunks)
		}
		engine.Close()
	}
}

func TestAnswerContext_Guardrail(t *testing.T) {
	t.Run("refuses off-topic queries", func(t *testing.T) {
		f := newEngineFixture(t, numbered(1), WithGuardrail(true))
		f.vectors.ids = f.idList(0)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return map[string]any{"on_topic": false, "reason": "asks for code"}, nil
		}

		result, err := f.engine.AnswerContext(context.Background(), "write me a web server", core.DocumentScope(1))
		require.NoError(t, err)
		assert.True(t, result.Refused)
		assert.Equal(t, RefusalMessage, result.Text)
		assert.Zero(t, f.vectors.calls)
		assert.Zero(t, f.lexical.calls)
	})

	t.Run("admits on-topic queries", func(t *testing.T) {
		f := newEngineFixture(t, numbered(1), WithGuardrail(true))
		f.vectors.ids = f.idList(0)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return map[string]any{"on_topic": true}, nil
		}

		result, err := f.engine.AnswerContext(context.Background(), "what raises tides?", core.DocumentScope(1))
		require.NoError(t, err)
		assert.False(t, result.Refused)
		assert.Len(t, result.Chunks, 1)
	})

	t.Run("classification errors admit the query", func(t *testing.T) {
		f := newEngineFixture(t, numbered(1), WithGuardrail(true))
		f.vectors.ids = f.idList(0)
		f.generator.GenerateJSONFunc = func(ctx context.Context, system, prompt string) (any, error) {
			return nil, errors.New("timeout")
		}

		result, err := f.engine.AnswerContext(context.Background(), "what raises tides?", core.DocumentScope(1))
		require.NoError(t, err)
		assert.False(t, result.Refused)
		assert.Equal(t, 1, f.lexical.calls)
	})

	t.Run("missing verdict admits the query", func(t *testing.T) {
		f := newEngineFixture(t, numbered(1), WithGuardrail(true))
		f.vectors.ids = f.idList(0)

		result, err := f.engine.AnswerContext(context.Background(), "what raises tides?", core.DocumentScope(1))
		require.NoError(t, err)
		assert.False(t, result.Refused)
	})
}
