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


package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

const (
	DefaultMaxConcurrency = 3
	DefaultMaxAttempts    = 3
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultPollJitter     = 30 * time.Millisecond
)

// Scheduler claims pending jobs and runs them on a bounded worker pool.
type Scheduler struct {
	jobs      storage.JobRepository
	documents storage.DocumentRepository
	handlers  map[core.JobType]Handler

	registry *Registry
	cancels  *cancelFlags
	pool     *ants.Pool

	maxConcurrency int
	maxAttempts    int
	backoff        Backoff
	pollInterval   time.Duration
	pollJitter     time.Duration
	progressWindow time.Duration
	listener       ProgressListener
	metrics        *metrics.Collector
	logger         *slog.Logger
	now            func() time.Time

	// pollMu serializes claiming with cancellation.
	pollMu  sync.Mutex
	workers sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopped bool
	stop    context.CancelFunc
	done    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithMaxConcurrency sets the number of concurrent workers.
// Default is 3.
func WithMaxConcurrency(n int) Option {
	return func(s *Scheduler) error {
		if n < 1 {
			return ErrInvalidConcurrency
		}
		s.maxConcurrency = n
		return nil
	}
}

// WithMaxAttempts sets how many failed attempts exhaust a job.
// Default is 3.
func WithMaxAttempts(n int) Option {
	return func(s *Scheduler) error {
		if n < 1 {
			return ErrInvalidAttempts
		}
		s.maxAttempts = n
		return nil
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(b Backoff) Option {
	return func(s *Scheduler) error {
		s.backoff = b
		return nil
	}
}

// WithPollInterval sets the mean polling interval and its normal jitter.
func WithPollInterval(interval, jitter time.Duration) Option {
	return func(s *Scheduler) error {
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		if jitter < 0 {
			jitter = 0
		}
		s.pollInterval = interval
		s.pollJitter = jitter
		return nil
	}
}

// WithProgressListener registers the receiver of progress events.
func WithProgressListener(listener ProgressListener) Option {
	return func(s *Scheduler) error {
		s.listener = listener
		return nil
	}
}

// WithProgressWindow sets the debounce window for progress events.
// Default is 100ms.
func WithProgressWindow(window time.Duration) Option {
	return func(s *Scheduler) error {
		if window < 0 {
			window = 0
		}
		s.progressWindow = window
		return nil
	}
}

// WithMetrics records scheduler activity in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Scheduler) error {
		s.metrics = c
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithClock replaces time.Now, for tests that control backoff windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) error {
		if now == nil {
			now = time.Now
		}
		s.now = now
		return nil
	}
}

// New creates a scheduler. Handlers are looked up by job type; a claimed
// job without a handler fails immediately.
func New(
	jobs storage.JobRepository,
	documents storage.DocumentRepository,
	handlers map[core.JobType]Handler,
	opts ...Option,
) (*Scheduler, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	s := &Scheduler{
		jobs:           jobs,
		documents:      documents,
		handlers:       make(map[core.JobType]Handler, len(handlers)),
		registry:       NewRegistry(),
		cancels:        newCancelFlags(),
		maxConcurrency: DefaultMaxConcurrency,
		maxAttempts:    DefaultMaxAttempts,
		backoff:        DefaultBackoff,
		pollInterval:   DefaultPollInterval,
		pollJitter:     DefaultPollJitter,
		progressWindow: DefaultProgressWindow,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for jobType, handler := range handlers {
		s.handlers[jobType] = handler
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")

	pool, err := ants.NewPool(s.maxConcurrency)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Registry exposes the active worker slots.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start recovers jobs left running by a previous process and starts the
// polling loop. The loop runs until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return ErrAlreadyRunning
	}

	reset, err := s.jobs.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover running jobs: %w", err)
	}
	if reset > 0 {
		s.logger.Info("recovered interrupted jobs", "count", reset)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, s.done)

	s.logger.Info("scheduler started",
		"maxConcurrency", s.maxConcurrency,
		"pollInterval", s.pollInterval)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := jitterbug.New(s.pollInterval, &jitterbug.Norm{Stdev: s.pollJitter, Mean: 0})
	defer ticker.Stop()

	for {
		if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("error claiming jobs", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the polling loop, waits for active workers to return and
// releases the pool. Jobs interrupted by Stop return to pending.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	s.workers.Wait()
	s.pool.Release()
	s.logger.Info("scheduler stopped")
}

// Poll runs one scheduling pass: it claims up to the number of free slots
// and dispatches a worker per claimed job without waiting for it.
// It returns the number of jobs dispatched.
func (s *Scheduler) Poll(ctx context.Context) (int, error) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	available := s.maxConcurrency - s.registry.Len()
	if available <= 0 {
		return 0, nil
	}

	now := s.now()
	filter := newClaimFilter(now, s.registry.Slots(), s.cancels)
	claimed, err := s.jobs.ClaimJobs(ctx, now, available, uuid.NewString(), filter.accept)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range claimed {
		if s.dispatch(ctx, job) {
			dispatched++
		}
	}
	return dispatched, nil
}

// Cancel tears down all work for a document: pending jobs are deleted, the
// document is marked cancelled and active workers are asked to stop at
// their next safe point. Cancelling a document with no active workers only
// removes its pending jobs.
func (s *Scheduler) Cancel(ctx context.Context, documentID core.ID) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	s.cancels.set(documentID)

	removed, err := s.jobs.DeleteJobs(ctx, documentID, core.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to remove pending jobs: %w", err)
	}

	_, err = s.documents.UpdateDocument(ctx, documentID, func(document *core.Document) error {
		if document.Status == core.DocumentStatusProcessing {
			document.Status = core.DocumentStatusCancelled
		}
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to mark document cancelled: %w", err)
	}

	active := s.registry.CountForDocument(documentID)
	if active == 0 {
		s.cancels.clear(documentID)
	}

	s.logger.Info("cancelled document",
		"documentId", documentID,
		"removedJobs", removed,
		"activeWorkers", active)
	return nil
}

// IsCancelling reports whether a cancellation of the document is still in progress.
func (s *Scheduler) IsCancelling(documentID core.ID) bool {
	return s.cancels.isSet(documentID)
}

// IsActive reports whether any worker or pending or running job still
// targets the document.
func (s *Scheduler) IsActive(ctx context.Context, documentID core.ID) (bool, error) {
	if s.registry.CountForDocument(documentID) > 0 {
		return true, nil
	}
	count, err := s.jobs.CountJobs(ctx, documentID, core.JobStatusPending, core.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// claimFilter holds the state of one scheduling pass. Jobs are offered in
// claim order, so every embed job is seen before the summarize and
// extract-concepts jobs of its chapter, and chapter jobs before consolidate.
type claimFilter struct {
	now     time.Time
	cancels *cancelFlags

	active         map[core.ID]bool // job IDs holding a slot
	docWorkers     map[core.ID]int  // active or accepted jobs per document
	docScopedBusy  map[core.ID]bool // documents with an active or accepted document-scoped job
	embedBusy      map[core.ID]bool // chapters whose embed job is active, accepted or pending
	chapterPending map[core.ID]bool // documents with pending chapter-scoped jobs
}

func newClaimFilter(now time.Time, slots []Slot, cancels *cancelFlags) *claimFilter {
	f := &claimFilter{
		now:            now,
		cancels:        cancels,
		active:         make(map[core.ID]bool, len(slots)),
		docWorkers:     make(map[core.ID]int),
		docScopedBusy:  make(map[core.ID]bool),
		embedBusy:      make(map[core.ID]bool),
		chapterPending: make(map[core.ID]bool),
	}
	for _, slot := range slots {
		f.active[slot.JobId] = true
		f.hold(slot.DocumentId, slot.ChapterId, slot.Type)
	}
	return f
}

func (f *claimFilter) hold(documentID, chapterID core.ID, jobType core.JobType) {
	f.docWorkers[documentID]++
	if jobType.IsDocumentScoped() {
		f.docScopedBusy[documentID] = true
	}
	if jobType == core.JobTypeEmbed {
		f.embedBusy[chapterID] = true
	}
}

func (f *claimFilter) accept(job *core.Job) bool {
	// Record pending dependencies before deciding, so later jobs in the
	// scan see them even when this one is rejected.
	if !job.Type.IsDocumentScoped() {
		defer func() { f.chapterPending[job.DocumentId] = true }()
	}
	if job.Type == core.JobTypeEmbed {
		defer func() { f.embedBusy[job.ChapterId] = true }()
	}

	switch {
	case f.active[job.Id]:
		return false
	case f.cancels.isSet(job.DocumentId):
		return false
	case job.RetryAfter.After(f.now):
		return false
	case f.docScopedBusy[job.DocumentId]:
		return false
	case job.Type.IsDocumentScoped() && f.docWorkers[job.DocumentId] > 0:
		return false
	case job.Type.DependsOnEmbed() && f.embedBusy[job.ChapterId]:
		return false
	case job.Type == core.JobTypeConsolidate && f.chapterPending[job.DocumentId]:
		return false
	}

	f.hold(job.DocumentId, job.ChapterId, job.Type)
	return true
}
