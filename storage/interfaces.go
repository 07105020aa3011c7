package storage

import (
	"context"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// DocumentRepository provides operations for documents and their chapters.
type DocumentRepository interface {
	// AddDocument stores a new document, assigning its ID and timestamps.
	AddDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments returns all documents ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// UpdateDocument applies fn to the stored document inside a single write.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, id core.ID, fn func(document *core.Document) error) (*core.Document, error)

	// DeleteDocument removes a document and all of its chapters.
	DeleteDocument(ctx context.Context, id core.ID) error

	// AddChapters stores chapters, assigning IDs and timestamps.
	AddChapters(ctx context.Context, chapters ...*core.Chapter) ([]*core.Chapter, error)

	// GetChapter retrieves a chapter by ID.
	// Returns ErrNotFound if the chapter doesn't exist.
	GetChapter(ctx context.Context, id core.ID) (*core.Chapter, error)

	// GetChapters returns the chapters of a document ordered by index.
	GetChapters(ctx context.Context, documentID core.ID) ([]*core.Chapter, error)

	// UpdateChapter applies fn to the stored chapter inside a single write.
	// Returns ErrNotFound if the chapter doesn't exist.
	UpdateChapter(ctx context.Context, id core.ID, fn func(chapter *core.Chapter) error) (*core.Chapter, error)

	Close() error
}

// ChunkRepository provides operations for chunk records.
type ChunkRepository interface {
	// AddChunks stores chunks, assigning IDs.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunks retrieves chunks by ID in the order requested.
	// Missing IDs are skipped without error.
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksByChapter returns the chunks of a chapter ordered by index.
	GetChunksByChapter(ctx context.Context, chapterID core.ID) ([]*core.Chunk, error)

	// CountChunks counts chunks within a scope.
	CountChunks(ctx context.Context, scope core.Scope) (int, error)

	// DeleteChunks removes every chunk within a scope and returns the removed chunks.
	DeleteChunks(ctx context.Context, scope core.Scope) ([]*core.Chunk, error)

	Close() error
}

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries.
type VectorIndex interface {
	// Upsert stores or replaces embeddings.
	Upsert(ctx context.Context, entries ...*core.VectorEntry) error

	// Search returns up to k chunks closest to vector, nearest first,
	// restricted to scope. A zero scope searches everything.
	Search(ctx context.Context, vector []float32, k int, scope core.Scope) ([]core.VectorMatch, error)

	// DeleteScope removes every embedding within a scope.
	DeleteScope(ctx context.Context, scope core.Scope) error
}

// LexicalIndex is a tokenized, stemmed full-text index over chunks.
type LexicalIndex interface {
	// Index adds chunks to the index.
	Index(ctx context.Context, chunks ...*core.Chunk) error

	// Search returns up to limit chunk IDs ordered by relevance, restricted to scope.
	Search(ctx context.Context, query string, limit int, scope core.Scope) ([]core.ID, error)

	// Remove drops chunks from the index.
	Remove(ctx context.Context, chunks ...*core.Chunk) error
}

// ClaimFilter decides whether a pending job should be claimed.
// It is called for every pending job in claim order, including jobs
// still inside their backoff window.
type ClaimFilter func(job *core.Job) bool

// JobRepository provides job persistence and the atomic claim query.
type JobRepository interface {
	// AddJobs validates and stores jobs as pending.
	AddJobs(ctx context.Context, jobs ...*core.Job) ([]*core.Job, error)

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)

	// GetJobsByDocument returns all jobs for a document ordered by ID.
	GetJobsByDocument(ctx context.Context, documentID core.ID) ([]*core.Job, error)

	// ClaimJobs walks pending jobs ordered by type priority, creation time and ID,
	// and atomically marks up to limit accepted jobs as running with the given lease.
	ClaimJobs(ctx context.Context, now time.Time, limit int, lease string, accept ClaimFilter) ([]*core.Job, error)

	// UpdateJob applies fn to the stored job inside a single write, keeping
	// the claim queue consistent with the resulting status.
	UpdateJob(ctx context.Context, id core.ID, fn func(job *core.Job) error) (*core.Job, error)

	// FinishJob is UpdateJob for the worker holding a claim. It returns
	// ErrLeaseLost when the job is no longer running under lease.
	FinishJob(ctx context.Context, id core.ID, lease string, fn func(job *core.Job) error) (*core.Job, error)

	// ResetRunning returns every running job to pending and reports how many were reset.
	ResetRunning(ctx context.Context) (int, error)

	// DeleteJobs removes the jobs of a document whose status is in statuses.
	// With no statuses, every job of the document is removed.
	DeleteJobs(ctx context.Context, documentID core.ID, statuses ...core.JobStatus) (int, error)

	// CountJobs counts the jobs of a document whose status is in statuses.
	CountJobs(ctx context.Context, documentID core.ID, statuses ...core.JobStatus) (int, error)
}

// MessageRepository stores conversation turns.
type MessageRepository interface {
	// AddMessages stores messages, assigning monotonically increasing IDs.
	AddMessages(ctx context.Context, messages ...*core.Message) ([]*core.Message, error)

	// GetMessages returns the messages of a scope in chronological order.
	// A document scope returns only document-level messages.
	GetMessages(ctx context.Context, scope core.Scope) ([]*core.Message, error)

	// DeleteMessages removes every message of a document, across all scopes.
	DeleteMessages(ctx context.Context, documentID core.ID) error
}

// SummaryRepository stores at most one conversation summary per scope.
type SummaryRepository interface {
	// GetSummary returns the summary of a scope.
	// Returns ErrNotFound if none exists.
	GetSummary(ctx context.Context, scope core.Scope) (*core.ConversationSummary, error)

	// UpsertSummary inserts or replaces the summary of its scope.
	UpsertSummary(ctx context.Context, summary *core.ConversationSummary) error

	// DeleteSummaries removes every summary of a document.
	DeleteSummaries(ctx context.Context, documentID core.ID) error
}

// ConceptRepository provides operations for managing concepts.
type ConceptRepository interface {
	// AddConcepts adds one or more concepts to storage.
	// Uses content-based IDs (IDFromContent of concept tuple).
	AddConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error)

	// GetConcept retrieves a single concept by ID.
	// Returns ErrNotFound if the concept doesn't exist.
	GetConcept(ctx context.Context, id core.ID) (*core.Concept, error)

	// GetConcepts retrieves multiple concepts by their IDs.
	// Returns only the concepts that exist (no error for missing concepts).
	GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error)

	// FindConceptByNameAndType finds a concept by its name and type tuple.
	// Returns ErrNotFound if no matching concept exists.
	FindConceptByNameAndType(ctx context.Context, name, conceptType string) (*core.Concept, error)

	// GetOrCreateConcept finds or creates a concept by name and type.
	// If the concept exists, returns it.
	// If not, creates it with the provided vector.
	GetOrCreateConcept(ctx context.Context, name, conceptType string, vector []float32) (*core.Concept, error)

	Close() error
}
