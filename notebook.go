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


package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/pedrocostadev/ai-notebook-sub000/ai/openai"
	"github.com/pedrocostadev/ai-notebook-sub000/config"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/history"
	"github.com/pedrocostadev/ai-notebook-sub000/ingestion"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
	"github.com/pedrocostadev/ai-notebook-sub000/retrieval"
	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
	"github.com/pedrocostadev/ai-notebook-sub000/storage/badger"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
)

// drainInterval is how often DeleteDocument checks for workers still
// running on a cancelled document.
const drainInterval = 50 * time.Millisecond

// Notebook ties storage, the job scheduler, retrieval and conversation
// history together over one database.
type Notebook struct {
	store     *badger.Store
	provider  ai.AIProvider
	metrics   *metrics.Collector
	estimator *tokens.Estimator
	scheduler *scheduler.Scheduler
	ingester  *ingestion.Ingester
	engine    *retrieval.Engine
	compactor *history.Compactor
	events    *broker
	logger    *slog.Logger
}

// Option configures a Notebook.
type Option func(*options)

type options struct {
	aiConfig   *ai.Config
	provider   ai.AIProvider
	inMemory   bool
	registerer prometheus.Registerer
	logger     *slog.Logger

	schedulerOpts []scheduler.Option
	ingesterOpts  []ingestion.Option
	handlerOpts   []ingestion.HandlerOption
	retrievalOpts []retrieval.Option
	historyOpts   []history.Option
}

// WithAIConfig sets the OpenAI-compatible provider settings.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building one from the AI config.
// The notebook closes it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory. The path passed to Open is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithRegisterer registers scheduler and retrieval metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger sets a custom logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSchedulerOptions passes options through to the job scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *options) {
		o.schedulerOpts = append(o.schedulerOpts, opts...)
	}
}

// WithIngesterOptions passes options through to the document ingester.
func WithIngesterOptions(opts ...ingestion.Option) Option {
	return func(o *options) {
		o.ingesterOpts = append(o.ingesterOpts, opts...)
	}
}

// WithHandlerOptions passes options through to the pipeline job handlers.
func WithHandlerOptions(opts ...ingestion.HandlerOption) Option {
	return func(o *options) {
		o.handlerOpts = append(o.handlerOpts, opts...)
	}
}

// WithRetrievalOptions passes options through to the retrieval engine.
func WithRetrievalOptions(opts ...retrieval.Option) Option {
	return func(o *options) {
		o.retrievalOpts = append(o.retrievalOpts, opts...)
	}
}

// WithHistoryOptions passes options through to the history compactor.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(o *options) {
		o.historyOpts = append(o.historyOpts, opts...)
	}
}

// WithConfig applies every setting of a loaded configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.aiConfig = cfg.AIConfig()
		o.schedulerOpts = append(o.schedulerOpts,
			scheduler.WithMaxConcurrency(cfg.Scheduler.Concurrency),
			scheduler.WithMaxAttempts(cfg.Scheduler.MaxAttempts),
			scheduler.WithPollInterval(cfg.Scheduler.PollInterval, scheduler.DefaultPollJitter))
		o.ingesterOpts = append(o.ingesterOpts,
			ingestion.WithMinTextLength(cfg.Ingestion.MinTextLength),
			ingestion.WithWindowPages(cfg.Ingestion.WindowPages))
		o.handlerOpts = append(o.handlerOpts,
			ingestion.WithEmbedBatchSize(cfg.Ingestion.EmbedBatchSize))
		o.retrievalOpts = append(o.retrievalOpts,
			retrieval.WithCandidates(cfg.Retrieval.Candidates),
			retrieval.WithTopN(cfg.Retrieval.TopN),
			retrieval.WithHighConfidence(cfg.Retrieval.HighConfidence),
			retrieval.WithContextBudget(cfg.Retrieval.ContextBudget, cfg.Retrieval.MaxChunks),
			retrieval.WithGuardrail(cfg.Retrieval.Guardrail))
		o.historyOpts = append(o.historyOpts,
			history.WithBudget(cfg.History.Budget, cfg.History.SummaryAllowance))
	}
}

// Open opens or creates the notebook database at path. The scheduler is
// not started; call Start to begin processing queued jobs.
func Open(path string, opts ...Option) (*Notebook, error) {
	o := &options{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	store, err := badger.OpenStore(path, o.inMemory)
	if err != nil {
		return nil, err
	}

	n := &Notebook{
		store:    store,
		provider: o.provider,
		metrics:  metrics.NewCollector(o.registerer),
		events:   newBroker(),
		logger:   o.logger.With("component", "notebook"),
	}
	if err := n.wire(o); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (n *Notebook) wire(o *options) error {
	var err error
	if n.provider == nil {
		if n.provider, err = openai.NewProvider(o.aiConfig); err != nil {
			return fmt.Errorf("failed to create AI provider: %w", err)
		}
	}

	if n.estimator, err = tokens.NewEstimator(tokens.WithLogger(o.logger)); err != nil {
		return err
	}

	ingesterOpts := append([]ingestion.Option{ingestion.WithLogger(o.logger)}, o.ingesterOpts...)
	if n.ingester, err = ingestion.NewIngester(n.store.Documents, n.store.Jobs, ingesterOpts...); err != nil {
		return err
	}

	handlers, err := ingestion.NewHandlers(ingestion.Repositories{
		Documents: n.store.Documents,
		Chunks:    n.store.Chunks,
		Vectors:   n.store.Vectors,
		Lexical:   n.store.Lexical,
		Concepts:  n.store.Concepts,
	}, n.provider, o.handlerOpts...)
	if err != nil {
		return err
	}

	schedulerOpts := append([]scheduler.Option{
		scheduler.WithLogger(o.logger),
		scheduler.WithMetrics(n.metrics),
		scheduler.WithProgressListener(n.events.publish),
	}, o.schedulerOpts...)
	if n.scheduler, err = scheduler.New(n.store.Jobs, n.store.Documents, handlers.Map(), schedulerOpts...); err != nil {
		return err
	}

	retrievalOpts := append([]retrieval.Option{
		retrieval.WithLogger(o.logger),
		retrieval.WithMetrics(n.metrics),
		retrieval.WithEstimator(n.estimator),
	}, o.retrievalOpts...)
	if n.engine, err = retrieval.NewEngine(n.store.Chunks, n.store.Vectors, n.store.Lexical, n.provider, retrievalOpts...); err != nil {
		return err
	}

	historyOpts := append([]history.Option{
		history.WithLogger(o.logger),
		history.WithEstimator(n.estimator),
	}, o.historyOpts...)
	if n.compactor, err = history.NewCompactor(n.store.Messages, n.store.Summaries, n.provider, historyOpts...); err != nil {
		return err
	}
	return nil
}

// Start begins processing queued jobs in the background.
func (n *Notebook) Start(ctx context.Context) error {
	return n.scheduler.Start(ctx)
}

// Stop halts the scheduler and waits for active jobs to return.
func (n *Notebook) Stop() {
	n.scheduler.Stop()
}

// Close stops the scheduler and releases every resource.
func (n *Notebook) Close() error {
	if n.scheduler != nil {
		n.scheduler.Stop()
	}
	n.events.close()

	var errs []error
	if n.engine != nil {
		n.engine.Close()
	}
	if n.estimator != nil {
		n.estimator.Close()
	}
	if n.provider != nil {
		if err := n.provider.Close(); err != nil {
			n.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if err := n.store.Close(); err != nil {
		n.logger.Error("error closing storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ingester exposes the ingester, e.g. for a folder Watcher.
func (n *Notebook) Ingester() *ingestion.Ingester {
	return n.ingester
}

// Ingest loads the file at path and queues its processing jobs.
func (n *Notebook) Ingest(ctx context.Context, path string) (*core.Document, error) {
	return n.ingester.Ingest(ctx, path)
}

// Cancel stops processing a document. Queued jobs are removed and running
// jobs stop at their next checkpoint.
func (n *Notebook) Cancel(ctx context.Context, documentID core.ID) error {
	if _, err := n.store.Documents.GetDocument(ctx, documentID); err != nil {
		return err
	}
	return n.scheduler.Cancel(ctx, documentID)
}

// DeleteDocument cancels a document, waits for its workers to return and
// removes everything stored for it.
func (n *Notebook) DeleteDocument(ctx context.Context, documentID core.ID) error {
	if err := n.Cancel(ctx, documentID); err != nil {
		return err
	}
	if err := n.drain(ctx, documentID); err != nil {
		return err
	}

	chunks, err := n.store.Chunks.DeleteChunks(ctx, core.DocumentScope(documentID))
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := n.store.Lexical.Remove(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to delete lexical postings: %w", err)
	}
	if err := n.store.Vectors.DeleteScope(ctx, core.DocumentScope(documentID)); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if _, err := n.store.Jobs.DeleteJobs(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete jobs: %w", err)
	}
	if err := n.store.Messages.DeleteMessages(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := n.store.Summaries.DeleteSummaries(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete summaries: %w", err)
	}
	if err := n.store.Documents.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	n.logger.Info("deleted document", "documentId", documentID, "chunks", len(chunks))
	return nil
}

// drain waits until no worker holds a slot for the document.
func (n *Notebook) drain(ctx context.Context, documentID core.ID) error {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for n.scheduler.Registry().CountForDocument(documentID) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Documents returns every document ordered by ID.
func (n *Notebook) Documents(ctx context.Context) ([]*core.Document, error) {
	return n.store.Documents.ListDocuments(ctx)
}

// Document returns one document, or storage.ErrNotFound.
func (n *Notebook) Document(ctx context.Context, documentID core.ID) (*core.Document, error) {
	return n.store.Documents.GetDocument(ctx, documentID)
}

// Chapters returns the chapters of a document ordered by index.
func (n *Notebook) Chapters(ctx context.Context, documentID core.ID) ([]*core.Chapter, error) {
	if _, err := n.store.Documents.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return n.store.Documents.GetChapters(ctx, documentID)
}

// Jobs returns the jobs of a document ordered by ID.
func (n *Notebook) Jobs(ctx context.Context, documentID core.ID) ([]*core.Job, error) {
	return n.store.Jobs.GetJobsByDocument(ctx, documentID)
}

// Messages returns the conversation of a scope in order.
func (n *Notebook) Messages(ctx context.Context, scope core.Scope) ([]*core.Message, error) {
	return n.store.Messages.GetMessages(ctx, scope)
}

// Subscribe returns a channel of ingestion progress events and a function
// that unsubscribes and closes it. Slow subscribers miss events.
func (n *Notebook) Subscribe() (<-chan scheduler.Progress, func()) {
	return n.events.subscribe()
}

// Answer is the reply to a question.
type Answer struct {
	Text      string
	Sources   []core.RankedChunk
	NoContext bool
	Refused   bool
}

// Ask answers question within scope. The question and the answer are
// appended to the scope's conversation. When onToken is non-nil it
// receives the answer as it is generated.
func (n *Notebook) Ask(ctx context.Context, scope core.Scope, question string, onToken func(token string) error) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, retrieval.ErrEmptyQuery
	}
	if err := n.checkScope(ctx, scope); err != nil {
		return nil, err
	}

	_, err := n.store.Messages.AddMessages(ctx, &core.Message{
		DocumentId: scope.DocumentId,
		ChapterId:  scope.ChapterId,
		Role:       core.RoleUser,
		Content:    question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store question: %w", err)
	}

	transcript, err := n.compactor.BuildHistory(ctx, scope)
	if err != nil {
		return nil, err
	}

	retrieved, err := n.engine.AnswerContext(ctx, question, scope)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Sources:   retrieved.Chunks,
		NoContext: retrieved.NoContext,
		Refused:   retrieved.Refused,
	}
	if retrieved.NoContext || retrieved.Refused {
		answer.Text = retrieved.Text
		if onToken != nil {
			if err := onToken(answer.Text); err != nil {
				return nil, err
			}
		}
	} else {
		text, err := n.provider.Generator().GenerateText(ctx, answerSystemPrompt, answerPrompt(retrieved.Text, transcript), onToken)
		if err != nil {
			return nil, fmt.Errorf("failed to generate answer: %w", err)
		}
		answer.Text = strings.TrimSpace(text)
		if answer.Text == "" {
			return nil, fmt.Errorf("failed to generate answer: %w", ai.ErrEmptyResponse)
		}
	}

	_, err = n.store.Messages.AddMessages(ctx, &core.Message{
		DocumentId: scope.DocumentId,
		ChapterId:  scope.ChapterId,
		Role:       core.RoleAssistant,
		Content:    answer.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	return answer, nil
}

func (n *Notebook) checkScope(ctx context.Context, scope core.Scope) error {
	if _, err := n.store.Documents.GetDocument(ctx, scope.DocumentId); err != nil {
		return err
	}
	if !scope.HasChapter() {
		return nil
	}
	chapter, err := n.store.Documents.GetChapter(ctx, scope.ChapterId)
	if err != nil {
		return err
	}
	if chapter.DocumentId != scope.DocumentId {
		return fmt.Errorf("chapter %d: %w", scope.ChapterId, storage.ErrNotFound)
	}
	return nil
}
