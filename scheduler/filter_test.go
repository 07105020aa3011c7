package scheduler

import (
	"testing"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/stretchr/testify/assert"
)

func pendingJob(id, documentID, chapterID core.ID, jobType core.JobType) *core.Job {
	return &core.Job{
		Id:         id,
		DocumentId: documentID,
		ChapterId:  chapterID,
		Type:       jobType,
		Status:     core.JobStatusPending,
	}
}

func TestClaimFilter_SummarizeWaitsForPendingEmbed(t *testing.T) {
	f := newClaimFilter(time.Now(), nil, newCancelFlags())

	assert.False(t, f.accept(retrying(pendingJob(1, 1, 10, core.JobTypeEmbed), time.Hour)))
	assert.False(t, f.accept(pendingJob(2, 1, 10, core.JobTypeSummarize)))
	assert.False(t, f.accept(pendingJob(3, 1, 10, core.JobTypeExtractConcepts)))
	assert.True(t, f.accept(pendingJob(4, 1, 11, core.JobTypeSummarize)), "other chapters are unaffected")
}

func TestClaimFilter_SummarizeWaitsForActiveEmbed(t *testing.T) {
	slots := []Slot{{JobId: 1, DocumentId: 1, ChapterId: 10, Type: core.JobTypeEmbed}}
	f := newClaimFilter(time.Now(), slots, newCancelFlags())

	assert.False(t, f.accept(pendingJob(1, 1, 10, core.JobTypeEmbed)), "active jobs are never claimed twice")
	assert.False(t, f.accept(pendingJob(2, 1, 10, core.JobTypeSummarize)))
}

func TestClaimFilter_SummarizeWaitsForEmbedAcceptedThisPass(t *testing.T) {
	f := newClaimFilter(time.Now(), nil, newCancelFlags())

	assert.True(t, f.accept(pendingJob(1, 1, 10, core.JobTypeEmbed)))
	assert.False(t, f.accept(pendingJob(2, 1, 10, core.JobTypeSummarize)))
}

func TestClaimFilter_DocumentScopedRunsAlone(t *testing.T) {
	t.Run("blocked by active chapter worker", func(t *testing.T) {
		slots := []Slot{{JobId: 9, DocumentId: 1, ChapterId: 10, Type: core.JobTypeSummarize}}
		f := newClaimFilter(time.Now(), slots, newCancelFlags())
		assert.False(t, f.accept(pendingJob(1, 1, 0, core.JobTypeExtractMetadata)))
		assert.True(t, f.accept(pendingJob(2, 2, 0, core.JobTypeExtractMetadata)))
	})

	t.Run("blocked by job accepted this pass", func(t *testing.T) {
		f := newClaimFilter(time.Now(), nil, newCancelFlags())
		assert.True(t, f.accept(pendingJob(1, 1, 10, core.JobTypeSummarize)))
		assert.False(t, f.accept(pendingJob(2, 1, 0, core.JobTypeExtractMetadata)))
	})

	t.Run("blocks chapter jobs while running", func(t *testing.T) {
		slots := []Slot{{JobId: 9, DocumentId: 1, Type: core.JobTypeExtractMetadata}}
		f := newClaimFilter(time.Now(), slots, newCancelFlags())
		assert.False(t, f.accept(pendingJob(1, 1, 10, core.JobTypeEmbed)))
	})
}

func TestClaimFilter_ConsolidateWaitsForChapterJobs(t *testing.T) {
	f := newClaimFilter(time.Now(), nil, newCancelFlags())

	// A chapter job inside its backoff window still holds consolidate back.
	assert.False(t, f.accept(retrying(pendingJob(1, 1, 10, core.JobTypeExtractConcepts), time.Hour)))
	assert.False(t, f.accept(pendingJob(2, 1, 0, core.JobTypeConsolidate)))

	g := newClaimFilter(time.Now(), nil, newCancelFlags())
	assert.True(t, g.accept(pendingJob(2, 1, 0, core.JobTypeConsolidate)))
}

func TestClaimFilter_Backoff(t *testing.T) {
	now := time.Now()
	f := newClaimFilter(now, nil, newCancelFlags())

	assert.False(t, f.accept(retrying(pendingJob(1, 1, 10, core.JobTypeEmbed), time.Second)))
	assert.True(t, f.accept(retrying(pendingJob(2, 1, 11, core.JobTypeEmbed), -time.Second)))
}

func TestClaimFilter_Cancelled(t *testing.T) {
	cancels := newCancelFlags()
	cancels.set(1)
	f := newClaimFilter(time.Now(), nil, cancels)

	assert.False(t, f.accept(pendingJob(1, 1, 10, core.JobTypeEmbed)))
	assert.True(t, f.accept(pendingJob(2, 2, 20, core.JobTypeEmbed)))
}

func retrying(job *core.Job, d time.Duration) *core.Job {
	job.RetryAfter = time.Now().Add(d)
	return job
}
