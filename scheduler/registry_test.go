package scheduler

import (
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Len())

	require.True(t, r.Add(Slot{JobId: 2, DocumentId: 10, ChapterId: 100, Type: core.JobTypeEmbed}))
	require.True(t, r.Add(Slot{JobId: 1, DocumentId: 10, ChapterId: 101, Type: core.JobTypeEmbed}))
	require.True(t, r.Add(Slot{JobId: 3, DocumentId: 11, Type: core.JobTypeExtractMetadata}))
	assert.False(t, r.Add(Slot{JobId: 1, DocumentId: 10}), "a job holds at most one slot")

	assert.Equal(t, 3, r.Len())
	assert.True(t, r.Has(1))
	assert.Equal(t, 2, r.CountForDocument(10))
	assert.Equal(t, 1, r.CountForDocument(11))
	assert.Zero(t, r.CountForDocument(12))

	slots := r.Slots()
	require.Len(t, slots, 3)
	assert.Equal(t, core.ID(1), slots[0].JobId)
	assert.Equal(t, core.ID(3), slots[2].JobId)

	r.Remove(1)
	r.Remove(1)
	assert.False(t, r.Has(1))
	assert.Equal(t, 1, r.CountForDocument(10))
}
