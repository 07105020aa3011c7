// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
)

const (
	DefaultCandidates     = 20
	DefaultTopN           = 10
	DefaultHighConfidence = 0.0327
	DefaultGapRatio       = 0.4
	DefaultContextBudget  = 8000
	DefaultMaxChunks      = 5
)

// Engine retrieves ranked chunks and assembles answer context.
type Engine struct {
	chunks    storage.ChunkRepository
	vectors   storage.VectorIndex
	lexical   storage.LexicalIndex
	embedder  ai.Embedder
	generator ai.Generator
	estimator *tokens.Estimator
	ownsCache bool
	metrics   *metrics.Collector
	logger    *slog.Logger

	candidates     int
	topN           int
	rrfConstant    int
	highConfidence float64
	gapRatio       float64
	budget         int
	maxChunks      int
	guardrail      bool
}

// Option configures an Engine.
type Option func(*Engine) error

// WithCandidates sets how many results each search leg returns. Default is 20.
func WithCandidates(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("candidates must be positive, got %d", n)
		}
		e.candidates = n
		return nil
	}
}

// WithTopN sets how many fused candidates are kept. Default is 10.
func WithTopN(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("top N must be positive, got %d", n)
		}
		e.topN = n
		return nil
	}
}

// WithHighConfidence sets the fused score above which reranking is skipped.
// Default is 0.0327, exceeded only by a chunk ranked first in both searches (2/61).
func WithHighConfidence(threshold float64) Option {
	return func(e *Engine) error {
		e.highConfidence = threshold
		return nil
	}
}

// WithContextBudget sets the token budget and chunk cap for AnswerContext.
// Defaults are 8000 tokens and 5 chunks.
func WithContextBudget(budget, maxChunks int) Option {
	return func(e *Engine) error {
		if budget < 1 || maxChunks < 1 {
			return fmt.Errorf("context budget and chunk cap must be positive, got %d and %d", budget, maxChunks)
		}
		e.budget = budget
		e.maxChunks = maxChunks
		return nil
	}
}

// WithGuardrail enables the off-topic query check in AnswerContext.
func WithGuardrail(enabled bool) Option {
	return func(e *Engine) error {
		e.guardrail = enabled
		return nil
	}
}

// WithEstimator shares a token estimator. By default the engine creates its own.
func WithEstimator(estimator *tokens.Estimator) Option {
	return func(e *Engine) error {
		e.estimator = estimator
		return nil
	}
}

// WithMetrics records query metrics on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(
	chunks storage.ChunkRepository,
	vectors storage.VectorIndex,
	lexical storage.LexicalIndex,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if vectors == nil || lexical == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		chunks:         chunks,
		vectors:        vectors,
		lexical:        lexical,
		embedder:       provider.Embedder(),
		generator:      provider.Generator(),
		logger:         slog.Default(),
		candidates:     DefaultCandidates,
		topN:           DefaultTopN,
		rrfConstant:    DefaultRRFConstant,
		highConfidence: DefaultHighConfidence,
		gapRatio:       DefaultGapRatio,
		budget:         DefaultContextBudget,
		maxChunks:      DefaultMaxChunks,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "retrieval")

	if e.estimator == nil {
		estimator, err := tokens.NewEstimator(tokens.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.estimator = estimator
		e.ownsCache = true
	}
	return e, nil
}

// Close releases the engine's own token cache.
func (e *Engine) Close() {
	if e.ownsCache {
		e.estimator.Close()
	}
}

// Retrieve returns up to the top N chunks for query within scope, best first.
func (e *Engine) Retrieve(ctx context.Context, query string, scope core.Scope) ([]core.RankedChunk, error) {
	return e.RetrieveWithMonitor(ctx, query, scope, nil)
}

// RetrieveWithMonitor is Retrieve with hooks called at each stage.
func (e *Engine) RetrieveWithMonitor(ctx context.Context, query string, scope core.Scope, monitor Monitor) ([]core.RankedChunk, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	e.metrics.QueryStarted()
	monitor.Start(query, scope)

	var vectorIDs, lexicalIDs []core.ID
	var vectorErr, lexicalErr error

	var g errgroup.Group
	g.Go(func() error {
		legStart := time.Now()
		vectorIDs, vectorErr = e.vectorSearch(ctx, query, scope)
		e.metrics.ObserveStage("vector", time.Since(legStart))
		return nil
	})
	g.Go(func() error {
		legStart := time.Now()
		lexicalIDs, lexicalErr = e.lexical.Search(ctx, query, e.candidates, scope)
		e.metrics.ObserveStage("lexical", time.Since(legStart))
		return nil
	})
	_ = g.Wait()

	monitor.AfterVectorSearch(vectorIDs, vectorErr)
	monitor.AfterLexicalSearch(lexicalIDs, lexicalErr)

	switch {
	case vectorErr != nil && lexicalErr != nil:
		e.logger.Error("both searches failed", "vectorErr", vectorErr, "lexicalErr", lexicalErr)
		return nil, fmt.Errorf("%w: vector: %w, lexical: %w", ErrSearchFailed, vectorErr, lexicalErr)
	case vectorErr != nil:
		e.logger.Warn("vector search failed, using lexical results only", "err", vectorErr)
	case lexicalErr != nil:
		e.logger.Warn("lexical search failed, using vector results only", "err", lexicalErr)
	}

	fused := Fuse(e.rrfConstant, vectorIDs, lexicalIDs)
	if len(fused) > e.topN {
		fused = fused[:e.topN]
	}
	monitor.AfterFusion(fused)

	ranked, err := e.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}

	ranked = e.rerank(ctx, query, ranked, monitor)

	e.metrics.ObserveStage("retrieve", time.Since(start))
	monitor.Finish(ranked)
	e.logger.Debug("retrieved chunks",
		"vector", len(vectorIDs),
		"lexical", len(lexicalIDs),
		"fused", len(fused),
		"returned", len(ranked))
	return ranked, nil
}

func (e *Engine) vectorSearch(ctx context.Context, query string, scope core.Scope) ([]core.ID, error) {
	embedding, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := e.vectors.Search(ctx, embedding, e.candidates, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]core.ID, len(matches))
	for i, match := range matches {
		ids[i] = match.ChunkId
	}
	return ids, nil
}

// hydrate loads the fused chunks in fused order. Chunks deleted since they
// were indexed are dropped.
func (e *Engine) hydrate(ctx context.Context, fused []Fused) ([]core.RankedChunk, error) {
	if len(fused) == 0 {
		return []core.RankedChunk{}, nil
	}

	ids := make([]core.ID, len(fused))
	for i, f := range fused {
		ids[i] = f.Id
	}
	chunks, err := e.chunks.GetChunks(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	byID := make(map[core.ID]*core.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.Id] = chunk
	}

	ranked := make([]core.RankedChunk, 0, len(fused))
	for _, f := range fused {
		chunk, ok := byID[f.Id]
		if !ok {
			continue
		}
		ranked = append(ranked, core.RankedChunk{
			Id:         chunk.Id,
			Content:    chunk.Content,
			Heading:    chunk.Heading,
			PageStart:  chunk.PageStart,
			PageEnd:    chunk.PageEnd,
			TokenCount: chunk.TokenCount,
			Score:      f.Score,
		})
	}
	return ranked, nil
}

// Context is the retrieved text handed to the answer prompt.
type Context struct {
	Text      string
	Chunks    []core.RankedChunk
	Tokens    int
	NoContext bool // Nothing relevant was found; Text is NoContextMessage
	Refused   bool // The guardrail rejected the query; Text is RefusalMessage
}

// AnswerContext retrieves chunks for query and packs them into the context
// budget. It never calls the generator for an answer; when nothing is found
// the result carries the NoContextMessage sentinel instead.
func (e *Engine) AnswerContext(ctx context.Context, query string, scope core.Scope) (*Context, error) {
	if e.guardrail {
		if allowed := e.admit(ctx, query); !allowed {
			return &Context{Text: RefusalMessage, Refused: true}, nil
		}
	}

	ranked, err := e.Retrieve(ctx, query, scope)
	if err != nil {
		if errors.Is(err, ErrEmptyQuery) || ctx.Err() != nil {
			return nil, err
		}
		e.logger.Warn("retrieval failed, answering without context", "err", err)
		ranked = nil
	}
	if len(ranked) == 0 {
		e.metrics.ContextChunks(0)
		return &Context{Text: NoContextMessage, NoContext: true}, nil
	}

	result := e.assemble(ranked)
	e.metrics.ContextChunks(len(result.Chunks))
	if len(result.Chunks) == 0 {
		return &Context{Text: NoContextMessage, NoContext: true}, nil
	}
	return result, nil
}
