package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// dispatch reserves a slot for a claimed job and submits it to the pool.
func (s *Scheduler) dispatch(ctx context.Context, job *core.Job) bool {
	slot := Slot{
		JobId:      job.Id,
		DocumentId: job.DocumentId,
		ChapterId:  job.ChapterId,
		Type:       job.Type,
		StartedAt:  s.now(),
	}
	if !s.registry.Add(slot) {
		return false
	}
	s.metrics.JobClaimed(job.Type.String())
	s.metrics.SetActiveWorkers(s.registry.Len())

	s.workers.Add(1)
	err := s.pool.Submit(func() {
		defer s.workers.Done()
		s.execute(ctx, job)
	})
	if err != nil {
		s.workers.Done()
		s.logger.Error("failed to submit job", "jobId", job.Id, "err", err)
		storeCtx := context.WithoutCancel(ctx)
		s.requeue(storeCtx, job)
		s.finish(storeCtx, job)
		return false
	}
	return true
}

// execute runs the handler for a job and records the outcome.
func (s *Scheduler) execute(ctx context.Context, job *core.Job) {
	start := time.Now()
	logger := s.logger.With("jobId", job.Id, "type", job.Type.String(), "documentId", job.DocumentId)

	task := &Task{
		Job:       job,
		Logger:    logger,
		progress:  newDebouncer(s.progressWindow, s.listener),
		cancelled: func() bool { return s.cancels.isSet(job.DocumentId) },
	}

	logger.Debug("job started", "attempt", job.Attempts+1)
	err := s.runHandler(ctx, task)
	task.progress.close()

	// Outcomes are persisted even when the scheduler is stopping.
	storeCtx := context.WithoutCancel(ctx)

	var outcome string
	switch {
	case s.cancels.isSet(job.DocumentId):
		outcome = metrics.OutcomeCancelled
		s.requeue(storeCtx, job)
		logger.Info("job cancelled with its document")
	case errors.Is(err, core.ErrCancelled) || (err != nil && ctx.Err() != nil):
		outcome = metrics.OutcomeCancelled
		s.requeue(storeCtx, job)
		logger.Info("job interrupted, returned to pending")
	case err == nil:
		outcome = metrics.OutcomeDone
		s.complete(storeCtx, job)
		logger.Info("job done", "elapsed", time.Since(start))
	default:
		outcome = s.fail(storeCtx, job, err)
	}

	s.finish(storeCtx, job)
	s.metrics.JobFinished(job.Type.String(), outcome, time.Since(start))
}

// runHandler invokes the registered handler, converting panics into errors.
func (s *Scheduler) runHandler(ctx context.Context, task *Task) (err error) {
	handler, ok := s.handlers[task.Job.Type]
	if !ok {
		return fmt.Errorf("%w: %w: %s", core.ErrUnrecoverable, ErrNoHandler, task.Job.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			task.Logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}
	return handler.Handle(ctx, task)
}

// finish releases the slot. When the last worker of a cancelled document
// returns, jobs its outcome put back in the queue are removed and the
// cancellation ends.
func (s *Scheduler) finish(ctx context.Context, job *core.Job) {
	s.registry.Remove(job.Id)
	s.metrics.SetActiveWorkers(s.registry.Len())

	if !s.cancels.isSet(job.DocumentId) || s.registry.CountForDocument(job.DocumentId) > 0 {
		return
	}
	removed, err := s.jobs.DeleteJobs(ctx, job.DocumentId, core.JobStatusPending)
	if err != nil {
		// Keep the flag so the filter still rejects the document's jobs.
		s.logger.Error("failed to remove cancelled jobs", "documentId", job.DocumentId, "err", err)
		return
	}
	if removed > 0 {
		s.logger.Debug("removed jobs requeued during cancellation", "documentId", job.DocumentId, "count", removed)
	}
	s.cancels.clear(job.DocumentId)
}

// leaseLost reports whether an outcome write was rejected because the job
// left this worker's claim. Such jobs belong to someone else now.
func (s *Scheduler) leaseLost(job *core.Job, err error) bool {
	if errors.Is(err, storage.ErrLeaseLost) || errors.Is(err, storage.ErrNotFound) {
		s.logger.Info("job claim no longer held, outcome discarded", "jobId", job.Id, "err", err)
		return true
	}
	return false
}

// requeue returns a job to pending without charging an attempt. Jobs of a
// document being cancelled are removed instead.
func (s *Scheduler) requeue(ctx context.Context, job *core.Job) {
	_, err := s.jobs.FinishJob(ctx, job.Id, job.Lease, func(j *core.Job) error {
		j.Status = core.JobStatusPending
		return nil
	})
	if err != nil && !s.leaseLost(job, err) {
		s.logger.Error("failed to requeue job", "jobId", job.Id, "err", err)
		return
	}

	if s.cancels.isSet(job.DocumentId) {
		if _, err := s.jobs.DeleteJobs(ctx, job.DocumentId, core.JobStatusPending); err != nil {
			s.logger.Error("failed to remove cancelled jobs", "documentId", job.DocumentId, "err", err)
		}
	}
}

// complete marks a job done. A finished embed job makes its chapter ready.
func (s *Scheduler) complete(ctx context.Context, job *core.Job) {
	_, err := s.jobs.FinishJob(ctx, job.Id, job.Lease, func(j *core.Job) error {
		j.Status = core.JobStatusDone
		j.LastError = ""
		j.RetryAfter = time.Time{}
		return nil
	})
	if err != nil {
		if !s.leaseLost(job, err) {
			s.logger.Error("failed to mark job done", "jobId", job.Id, "err", err)
		}
		return
	}

	if job.Type != core.JobTypeEmbed {
		return
	}

	_, err = s.documents.UpdateChapter(ctx, job.ChapterId, func(chapter *core.Chapter) error {
		if chapter.Status == core.ChapterStatusPending {
			chapter.Status = core.ChapterStatusReady
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to mark chapter ready", "chapterId", job.ChapterId, "err", err)
		return
	}
	s.promote(ctx, job.DocumentId)
}

// fail charges an attempt. The job is retried after a backoff unless the
// error is a hard failure or the attempts are exhausted, in which case the
// error is surfaced on the chapter or document.
func (s *Scheduler) fail(ctx context.Context, job *core.Job, cause error) string {
	now := s.now()
	hard := core.IsHardFailure(cause)

	updated, err := s.jobs.FinishJob(ctx, job.Id, job.Lease, func(j *core.Job) error {
		j.Attempts++
		j.LastError = cause.Error()
		if hard || j.Attempts >= s.maxAttempts {
			j.Status = core.JobStatusFailed
			j.RetryAfter = time.Time{}
			return nil
		}
		j.Status = core.JobStatusPending
		j.RetryAfter = now.Add(s.backoff.Delay(j.Attempts)).UTC()
		return nil
	})
	if err != nil {
		if s.leaseLost(job, err) {
			return metrics.OutcomeCancelled
		}
		s.logger.Error("failed to record job failure", "jobId", job.Id, "cause", cause, "err", err)
		return metrics.OutcomeFailed
	}

	if updated.Status == core.JobStatusPending {
		s.logger.Warn("job failed, will retry",
			"jobId", job.Id,
			"type", job.Type.String(),
			"attempts", updated.Attempts,
			"retryAfter", updated.RetryAfter,
			"err", cause)
		return metrics.OutcomeRetry
	}

	s.logger.Error("job failed permanently",
		"jobId", job.Id,
		"type", job.Type.String(),
		"attempts", updated.Attempts,
		"hard", hard,
		"err", cause)

	message := fmt.Sprintf("%s failed: %s", job.Type, cause)
	if job.Type.IsDocumentScoped() {
		_, err = s.documents.UpdateDocument(ctx, job.DocumentId, func(document *core.Document) error {
			if document.Status == core.DocumentStatusCancelled {
				return nil
			}
			document.Status = core.DocumentStatusError
			document.Error = message
			return nil
		})
		if err != nil {
			s.logger.Error("failed to record document error", "documentId", job.DocumentId, "err", err)
		}
		return metrics.OutcomeFailed
	}

	_, err = s.documents.UpdateChapter(ctx, job.ChapterId, func(chapter *core.Chapter) error {
		if chapter.Status != core.ChapterStatusError {
			chapter.Error = message
		}
		chapter.Status = core.ChapterStatusError
		return nil
	})
	if err != nil {
		s.logger.Error("failed to record chapter error", "chapterId", job.ChapterId, "err", err)
		return metrics.OutcomeFailed
	}
	s.promote(ctx, job.DocumentId)
	return metrics.OutcomeFailed
}

// promote recomputes a processing document's status from its chapters:
// ready once every chapter is ready, error once any chapter failed and
// none is pending. Error and cancelled states are never cleared.
func (s *Scheduler) promote(ctx context.Context, documentID core.ID) {
	chapters, err := s.documents.GetChapters(ctx, documentID)
	if err != nil {
		s.logger.Error("failed to load chapters", "documentId", documentID, "err", err)
		return
	}

	pending, failed := 0, 0
	var firstError string
	for _, chapter := range chapters {
		switch chapter.Status {
		case core.ChapterStatusPending:
			pending++
		case core.ChapterStatusError:
			if failed == 0 {
				firstError = chapter.Error
			}
			failed++
		}
	}
	if pending > 0 || len(chapters) == 0 {
		return
	}

	_, err = s.documents.UpdateDocument(ctx, documentID, func(document *core.Document) error {
		if document.Status != core.DocumentStatusProcessing {
			return nil
		}
		if failed > 0 {
			document.Status = core.DocumentStatusError
			document.Error = firstError
			return nil
		}
		document.Status = core.DocumentStatusReady
		return nil
	})
	if err != nil {
		s.logger.Error("failed to promote document", "documentId", documentID, "err", err)
		return
	}
	s.logger.Debug("document promoted", "documentId", documentID, "chapters", len(chapters), "failed", failed)
}
