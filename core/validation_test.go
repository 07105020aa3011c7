package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidateJob(t *testing.T) {
	tests := []struct {
		name    string
		job     *Job
		wantErr error
	}{
		{
			name:    "valid embed job",
			job:     &Job{DocumentId: 1, ChapterId: 2, Type: JobTypeEmbed},
			wantErr: nil,
		},
		{
			name:    "valid consolidate job",
			job:     &Job{DocumentId: 1, Type: JobTypeConsolidate},
			wantErr: nil,
		},
		{
			name:    "nil job",
			job:     nil,
			wantErr: ErrInvalidJob,
		},
		{
			name:    "missing document",
			job:     &Job{ChapterId: 2, Type: JobTypeEmbed},
			wantErr: ErrDocumentRequired,
		},
		{
			name:    "unknown type",
			job:     &Job{DocumentId: 1, ChapterId: 2, Type: JobType(42)},
			wantErr: ErrInvalidJobType,
		},
		{
			name:    "summarize without chapter",
			job:     &Job{DocumentId: 1, Type: JobTypeSummarize},
			wantErr: ErrChapterRequired,
		},
		{
			name:    "metadata with chapter",
			job:     &Job{DocumentId: 1, ChapterId: 3, Type: JobTypeExtractMetadata},
			wantErr: ErrChapterNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJob(tt.job)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateJob() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateJob() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidJob) {
				t.Errorf("ValidateJob() error = %v, want wrapped %v", err, ErrInvalidJob)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		message *Message
		wantErr error
	}{
		{
			name:    "valid user message",
			message: &Message{DocumentId: 1, Role: RoleUser, Content: "What is X?"},
		},
		{
			name:    "empty content",
			message: &Message{DocumentId: 1, Role: RoleUser},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "invalid role",
			message: &Message{DocumentId: 1, Role: Role(9), Content: "hi"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "missing document",
			message: &Message{Role: RoleAssistant, Content: "hi"},
			wantErr: ErrDocumentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.message)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateMessage() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChunkAndConcept(t *testing.T) {
	if err := ValidateChunk(&Chunk{DocumentId: 1, Content: "text"}); err != nil {
		t.Errorf("ValidateChunk() unexpected error = %v", err)
	}
	if err := ValidateChunk(&Chunk{DocumentId: 1}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("ValidateChunk() error = %v, want %v", err, ErrEmptyContent)
	}
	if err := ValidateConcept(&Concept{Name: "paris"}); !errors.Is(err, ErrEmptyConceptType) {
		t.Errorf("ValidateConcept() error = %v, want %v", err, ErrEmptyConceptType)
	}
}

func TestIsHardFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: fmt.Errorf("chapter 3: %w", ErrMissingPrecondition), want: true},
		{err: fmt.Errorf("bad input: %w", ErrUnrecoverable), want: true},
		{err: errors.New("rate limited"), want: false},
		{err: ErrCancelled, want: false},
	}

	for _, tt := range tests {
		if got := IsHardFailure(tt.err); got != tt.want {
			t.Errorf("IsHardFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
