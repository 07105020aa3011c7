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


package core

import "errors"

var (
	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrInvalidJobType indicates an unknown JobType value.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrChapterRequired indicates a chapter-scoped job without a chapter.
	ErrChapterRequired = errors.New("chapter id is required for chapter-scoped jobs")

	// ErrChapterNotAllowed indicates a document-scoped job carrying a chapter.
	ErrChapterNotAllowed = errors.New("chapter id must be empty for document-scoped jobs")

	// ErrDocumentRequired indicates a record without an owning document.
	ErrDocumentRequired = errors.New("document id is required")

	// ErrEmptyContent indicates the content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyConceptName indicates the concept Name field is empty.
	ErrEmptyConceptName = errors.New("concept name cannot be empty")

	// ErrEmptyConceptType indicates the concept Type field is empty.
	ErrEmptyConceptType = errors.New("concept type cannot be empty")

	// ErrCancelled signals cooperative cancellation. It is a control-flow
	// outcome, never recorded as a job failure.
	ErrCancelled = errors.New("cancelled")

	// ErrMissingPrecondition marks work whose dependency never completed.
	// Retrying cannot fix it, so the job fails without further attempts.
	ErrMissingPrecondition = errors.New("missing precondition")

	// ErrUnrecoverable marks input errors that no retry can fix.
	ErrUnrecoverable = errors.New("unrecoverable")
)

// IsHardFailure reports whether err must fail a job immediately.
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrMissingPrecondition) || errors.Is(err, ErrUnrecoverable)
}
