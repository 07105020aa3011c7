package scheduler

import "errors"

var (
	// ErrJobRepositoryRequired indicates that a job repository was not provided.
	ErrJobRepositoryRequired = errors.New("job repository is required")

	// ErrDocumentRepositoryRequired indicates that a document repository was not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrInvalidConcurrency indicates a non-positive concurrency limit.
	ErrInvalidConcurrency = errors.New("max concurrency must be positive")

	// ErrInvalidAttempts indicates a non-positive attempt limit.
	ErrInvalidAttempts = errors.New("max attempts must be positive")

	// ErrNoHandler indicates a job type without a registered handler.
	ErrNoHandler = errors.New("no handler registered for job type")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrStopped indicates the scheduler has been stopped and cannot be restarted.
	ErrStopped = errors.New("scheduler is stopped")
)
