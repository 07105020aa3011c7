package scheduler

import (
	"context"
	"log/slog"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// Handler executes one job type.
//
// Handlers return nil on success and core.ErrCancelled when they observe
// cancellation. Errors wrapping core.ErrMissingPrecondition or
// core.ErrUnrecoverable fail the job without further attempts; any other
// error is retried with backoff.
type Handler interface {
	Handle(ctx context.Context, task *Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *Task) error

func (f HandlerFunc) Handle(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// Task is the view of a claimed job given to its handler.
type Task struct {
	Job    *core.Job
	Logger *slog.Logger

	progress  *debouncer
	cancelled func() bool
}

// Cancelled reports whether the job's document is being cancelled.
func (t *Task) Cancelled() bool {
	return t.cancelled != nil && t.cancelled()
}

// CheckCancelled returns core.ErrCancelled once the document is being
// cancelled or ctx is done. Handlers call it before and after external calls.
func (t *Task) CheckCancelled(ctx context.Context) error {
	if ctx.Err() != nil || t.Cancelled() {
		return core.ErrCancelled
	}
	return nil
}

// Progress reports processed out of total units of work for stage.
func (t *Task) Progress(stage string, processed, total int) {
	t.progress.update(Progress{
		DocumentId: t.Job.DocumentId,
		ChapterId:  t.Job.ChapterId,
		JobId:      t.Job.Id,
		Stage:      stage,
		Processed:  processed,
		Total:      total,
		Percent:    percentOf(processed, total),
	})
}

// NewTask builds a task outside the scheduler, for running a handler
// directly. cancelled may be nil; listener receives undebounced progress.
func NewTask(job *core.Job, logger *slog.Logger, cancelled func() bool, listener ProgressListener) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		Job:       job,
		Logger:    logger,
		progress:  newDebouncer(0, listener),
		cancelled: cancelled,
	}
}
