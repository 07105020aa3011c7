package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidQuery is returned for search requests with an empty query or a non-positive limit.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed wraps codec failures on stored values.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrLeaseLost is returned when a worker records the outcome of a job it
	// no longer holds.
	ErrLeaseLost = errors.New("job lease lost")
)
