package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
//
// Pending jobs are mirrored in a queue index ordered by type priority,
// creation time and ID. Every status transition goes through a single
// write transaction that keeps the record and the queue entry in step.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// AddJobs validates and stores jobs as pending.
func (r *JobRepository) AddJobs(ctx context.Context, jobs ...*core.Job) ([]*core.Job, error) {
	for _, job := range jobs {
		if err := core.ValidateJob(job); err != nil {
			return nil, err
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, job := range jobs {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			job.Id = core.ID(id)
			job.Status = core.JobStatusPending
			job.Attempts = 0
			job.Lease = ""
			job.CreatedAt = now
			job.UpdatedAt = now

			if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
				return err
			}
			if err := tx.Set(makeJobQueueKey(job), storage.MarshalID(job.Id)); err != nil {
				return err
			}
			if err := tx.Set(makeJobDocumentKey(job.DocumentId, job.Id), storage.MarshalID(job.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	var result *core.Job
	err := r.backend.View(func(tx *badger.Txn) error {
		job, found, err := getValue(tx, makeJobKey(id), storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = job
		return nil
	})
	return result, err
}

// GetJobsByDocument returns all jobs for a document ordered by ID.
func (r *JobRepository) GetJobsByDocument(ctx context.Context, documentID core.ID) ([]*core.Job, error) {
	var results []*core.Job
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		results, err = documentJobs(tx, documentID)
		return err
	})
	return results, err
}

// ClaimJobs walks the pending queue in claim order and marks up to limit
// accepted jobs as running. The walk and the status change happen in one
// write transaction, so a job is never handed out twice.
func (r *JobRepository) ClaimJobs(ctx context.Context, now time.Time, limit int, lease string, accept storage.ClaimFilter) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*core.Job
	err := r.backend.Update(func(tx *badger.Txn) error {
		claimed = nil
		var queueKeys [][]byte

		err := scanPrefix(tx, newKey(jobQueuePrefix).bytes(), func(item *badger.Item) error {
			if len(claimed) >= limit {
				return nil
			}
			id, err := itemValue(item, storage.UnmarshalID)
			if err != nil {
				return err
			}
			job, found, err := getValue(tx, makeJobKey(id), storage.UnmarshalJob)
			if err != nil {
				return err
			}
			if !found || job.Status != core.JobStatusPending {
				return nil
			}
			if accept != nil && !accept(job) {
				return nil
			}
			if !job.Claimable(now) {
				return nil
			}
			claimed = append(claimed, job)
			queueKeys = append(queueKeys, item.KeyCopy(nil))
			return nil
		})
		if err != nil {
			return err
		}

		for i, job := range claimed {
			job.Status = core.JobStatusRunning
			job.Lease = lease
			job.UpdatedAt = now.UTC()
			if err := tx.Delete(queueKeys[i]); err != nil {
				return err
			}
			if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateJob applies fn to the stored job. Identity, scope, type and
// creation time are immutable.
func (r *JobRepository) UpdateJob(ctx context.Context, id core.ID, fn func(job *core.Job) error) (*core.Job, error) {
	var result *core.Job
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeJobKey(id)
		job, found, err := getValue(tx, key, storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}

		original := *job
		if err := fn(job); err != nil {
			return err
		}
		job.Id = original.Id
		job.DocumentId = original.DocumentId
		job.ChapterId = original.ChapterId
		job.Type = original.Type
		job.CreatedAt = original.CreatedAt
		job.UpdatedAt = time.Now().UTC()
		if job.Status != core.JobStatusRunning {
			job.Lease = ""
		}

		if err := syncQueue(tx, &original, job); err != nil {
			return err
		}
		result = job
		return tx.Set(key, storage.MarshalJob(job))
	})
	return result, err
}

// FinishJob applies fn to a running job only while it still carries lease.
// A job that was reset, re-claimed or finished under another lease is left
// untouched and storage.ErrLeaseLost is returned.
func (r *JobRepository) FinishJob(ctx context.Context, id core.ID, lease string, fn func(job *core.Job) error) (*core.Job, error) {
	return r.UpdateJob(ctx, id, func(job *core.Job) error {
		if job.Status != core.JobStatusRunning || job.Lease != lease {
			return storage.ErrLeaseLost
		}
		return fn(job)
	})
}

// ResetRunning returns every running job to pending without charging an attempt.
func (r *JobRepository) ResetRunning(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.Update(func(tx *badger.Txn) error {
		count = 0
		var running []*core.Job
		err := scanPrefix(tx, newKey(jobPrefix).bytes(), func(item *badger.Item) error {
			job, err := itemValue(item, storage.UnmarshalJob)
			if err != nil {
				return err
			}
			if job.Status == core.JobStatusRunning {
				running = append(running, job)
			}
			return nil
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, job := range running {
			job.Status = core.JobStatusPending
			job.Lease = ""
			job.UpdatedAt = now
			if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
				return err
			}
			if err := tx.Set(makeJobQueueKey(job), storage.MarshalID(job.Id)); err != nil {
				return err
			}
		}
		count = len(running)
		return nil
	})
	return count, err
}

// DeleteJobs removes the jobs of a document whose status is in statuses.
func (r *JobRepository) DeleteJobs(ctx context.Context, documentID core.ID, statuses ...core.JobStatus) (int, error) {
	count := 0
	err := r.backend.Update(func(tx *badger.Txn) error {
		count = 0
		jobs, err := documentJobs(tx, documentID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if !matchesStatus(job, statuses) {
				continue
			}
			if job.Status == core.JobStatusPending {
				if err := tx.Delete(makeJobQueueKey(job)); err != nil {
					return err
				}
			}
			if err := tx.Delete(makeJobKey(job.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeJobDocumentKey(documentID, job.Id)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// CountJobs counts the jobs of a document whose status is in statuses.
func (r *JobRepository) CountJobs(ctx context.Context, documentID core.ID, statuses ...core.JobStatus) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		jobs, err := documentJobs(tx, documentID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if matchesStatus(job, statuses) {
				count++
			}
		}
		return nil
	})
	return count, err
}

func documentJobs(tx *badger.Txn, documentID core.ID) ([]*core.Job, error) {
	var jobs []*core.Job
	err := scanPrefix(tx, makeJobDocumentPrefix(documentID), func(item *badger.Item) error {
		id, err := itemValue(item, storage.UnmarshalID)
		if err != nil {
			return err
		}
		job, found, err := getValue(tx, makeJobKey(id), storage.UnmarshalJob)
		if err != nil {
			return err
		}
		if found {
			jobs = append(jobs, job)
		}
		return nil
	})
	return jobs, err
}

// syncQueue keeps the pending queue entry consistent with a status change.
func syncQueue(tx *badger.Txn, before, after *core.Job) error {
	wasPending := before.Status == core.JobStatusPending
	isPending := after.Status == core.JobStatusPending
	switch {
	case wasPending && !isPending:
		return tx.Delete(makeJobQueueKey(before))
	case !wasPending && isPending:
		return tx.Set(makeJobQueueKey(after), storage.MarshalID(after.Id))
	}
	return nil
}

func matchesStatus(job *core.Job, statuses []core.JobStatus) bool {
	return len(statuses) == 0 || slices.Contains(statuses, job.Status)
}
