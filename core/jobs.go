package core

import "time"

// JobType selects the unit of work a job performs.
type JobType int

const (
	JobTypeEmbed JobType = iota + 1
	JobTypeSummarize
	JobTypeExtractMetadata
	JobTypeExtractConcepts
	JobTypeConsolidate
)

// AllJobTypes lists job types in declaration order.
var AllJobTypes = []JobType{
	JobTypeEmbed,
	JobTypeSummarize,
	JobTypeExtractMetadata,
	JobTypeExtractConcepts,
	JobTypeConsolidate,
}

func (t JobType) String() string {
	switch t {
	case JobTypeEmbed:
		return "embed"
	case JobTypeSummarize:
		return "summarize"
	case JobTypeExtractMetadata:
		return "extract-metadata"
	case JobTypeExtractConcepts:
		return "extract-concepts"
	case JobTypeConsolidate:
		return "consolidate"
	default:
		return "unknown"
	}
}

// Priority orders claimable work. Lower values are claimed first.
func (t JobType) Priority() int {
	switch t {
	case JobTypeEmbed:
		return 0
	case JobTypeSummarize, JobTypeExtractConcepts:
		return 1
	case JobTypeExtractMetadata:
		return 2
	default:
		return 3
	}
}

// IsDocumentScoped reports whether jobs of this type target a whole document
// rather than a single chapter.
func (t JobType) IsDocumentScoped() bool {
	return t == JobTypeExtractMetadata || t == JobTypeConsolidate
}

// DependsOnEmbed reports whether the job reads chunks written by the chapter's embed job.
func (t JobType) DependsOnEmbed() bool {
	return t == JobTypeSummarize || t == JobTypeExtractConcepts
}

// JobStatus is the lifecycle state of a job.
type JobStatus int

const (
	JobStatusPending JobStatus = iota + 1
	JobStatusRunning
	JobStatusDone
	JobStatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "pending"
	case JobStatusRunning:
		return "running"
	case JobStatusDone:
		return "done"
	case JobStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job is one unit of asynchronous ingestion work.
type Job struct {
	Id         ID
	DocumentId ID
	ChapterId  ID // Zero for document-scoped jobs
	Type       JobType
	Status     JobStatus
	Attempts   int
	LastError  string
	Lease      string    // Claim token stamped when the job moves to running
	RetryAfter time.Time // Not claimable before this instant
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Claimable reports whether the job may be claimed at now.
func (j *Job) Claimable(now time.Time) bool {
	return j.Status == JobStatusPending && !j.RetryAfter.After(now)
}

// NewChapterJobs returns the embed, summarize and extract-concepts triple for a chapter.
func NewChapterJobs(documentID, chapterID ID) []*Job {
	return []*Job{
		{DocumentId: documentID, ChapterId: chapterID, Type: JobTypeEmbed, Status: JobStatusPending},
		{DocumentId: documentID, ChapterId: chapterID, Type: JobTypeSummarize, Status: JobStatusPending},
		{DocumentId: documentID, ChapterId: chapterID, Type: JobTypeExtractConcepts, Status: JobStatusPending},
	}
}

// NewDocumentJobs returns the document-scoped jobs created once per document.
func NewDocumentJobs(documentID ID) []*Job {
	return []*Job{
		{DocumentId: documentID, Type: JobTypeExtractMetadata, Status: JobStatusPending},
		{DocumentId: documentID, Type: JobTypeConsolidate, Status: JobStatusPending},
	}
}
