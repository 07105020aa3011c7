package scheduler

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// Slot records a job currently held by a worker.
type Slot struct {
	JobId      core.ID
	DocumentId core.ID
	ChapterId  core.ID
	Type       core.JobType
	StartedAt  time.Time
}

// Registry is the in-memory set of active worker slots.
// It is empty at startup and is never persisted.
type Registry struct {
	mu    sync.Mutex
	slots map[core.ID]Slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[core.ID]Slot)}
}

// Add records a slot. It returns false if the job already holds one.
func (r *Registry) Add(slot Slot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[slot.JobId]; ok {
		return false
	}
	r.slots[slot.JobId] = slot
	return true
}

// Remove releases the slot held by a job.
func (r *Registry) Remove(jobID core.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, jobID)
}

// Has reports whether a job holds a slot.
func (r *Registry) Has(jobID core.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[jobID]
	return ok
}

// Len returns the number of active slots.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// CountForDocument returns the number of active slots targeting a document.
func (r *Registry) CountForDocument(documentID core.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, slot := range r.slots {
		if slot.DocumentId == documentID {
			count++
		}
	}
	return count
}

// Slots returns a snapshot of the active slots ordered by job ID.
func (r *Registry) Slots() []Slot {
	r.mu.Lock()
	ids := slices.Sorted(maps.Keys(r.slots))
	snapshot := make([]Slot, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, r.slots[id])
	}
	r.mu.Unlock()
	return snapshot
}
