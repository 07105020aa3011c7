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

import (
	"fmt"
)

func ValidateJob(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if job.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrDocumentRequired)
	}

	if err := ValidateJobType(job.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if job.Type.IsDocumentScoped() && job.ChapterId != 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, job.Type, ErrChapterNotAllowed)
	}

	if !job.Type.IsDocumentScoped() && job.ChapterId == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, job.Type, ErrChapterRequired)
	}

	return nil
}

func ValidateJobType(t JobType) error {
	if t < JobTypeEmbed || t > JobTypeConsolidate {
		return fmt.Errorf("%w: value %d", ErrInvalidJobType, t)
	}
	return nil
}

func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrDocumentRequired)
	}

	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	return nil
}

func ValidateMessage(message *Message) error {
	if message == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if message.DocumentId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrDocumentRequired)
	}

	if message.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}

	if message.Role != RoleUser && message.Role != RoleAssistant {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidMessage, ErrInvalidRole, message.Role)
	}

	return nil
}

func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}

	if concept.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptName)
	}

	if concept.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptType)
	}

	return nil
}
