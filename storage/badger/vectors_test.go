package badger

import (
	"context"
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []*core.VectorEntry{
		{ChunkId: 1, DocumentId: 1, ChapterId: 10, Vector: []float32{1, 0, 0}},
		{ChunkId: 2, DocumentId: 1, ChapterId: 10, Vector: []float32{0.9, 0.1, 0}},
		{ChunkId: 3, DocumentId: 1, ChapterId: 11, Vector: []float32{0, 1, 0}},
		{ChunkId: 4, DocumentId: 2, ChapterId: 20, Vector: []float32{1, 0, 0}},
	}
	require.NoError(t, store.Vectors.Upsert(ctx, entries...))

	t.Run("nearest first within document", func(t *testing.T) {
		matches, err := store.Vectors.Search(ctx, []float32{1, 0, 0}, 10, core.DocumentScope(1))
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, core.ID(1), matches[0].ChunkId)
		assert.InDelta(t, 0, matches[0].Distance, 0.0001)
		assert.Equal(t, core.ID(2), matches[1].ChunkId)
		assert.Equal(t, core.ID(3), matches[2].ChunkId)
		assert.InDelta(t, 1, matches[2].Distance, 0.0001)
	})

	t.Run("chapter scope", func(t *testing.T) {
		matches, err := store.Vectors.Search(ctx, []float32{1, 0, 0}, 10, core.ChapterScope(1, 11))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, core.ID(3), matches[0].ChunkId)
	})

	t.Run("limit", func(t *testing.T) {
		matches, err := store.Vectors.Search(ctx, []float32{1, 0, 0}, 2, core.Scope{})
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := store.Vectors.Search(ctx, []float32{1, 0, 0}, 0, core.Scope{})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("zero query", func(t *testing.T) {
		matches, err := store.Vectors.Search(ctx, []float32{0, 0, 0}, 5, core.Scope{})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestVectorUpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Vectors.Upsert(ctx, &core.VectorEntry{ChunkId: 1, DocumentId: 1, ChapterId: 1, Vector: []float32{1, 0}}))
	require.NoError(t, store.Vectors.Upsert(ctx, &core.VectorEntry{ChunkId: 1, DocumentId: 1, ChapterId: 1, Vector: []float32{0, 1}}))

	matches, err := store.Vectors.Search(ctx, []float32{0, 1}, 5, core.Scope{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0, matches[0].Distance, 0.0001)

	err = store.Vectors.Upsert(ctx, &core.VectorEntry{ChunkId: 2, Vector: []float32{1}})
	assert.ErrorIs(t, err, core.ErrDocumentRequired)
}

func TestVectorDeleteScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Vectors.Upsert(ctx,
		&core.VectorEntry{ChunkId: 1, DocumentId: 1, ChapterId: 10, Vector: []float32{1, 0}},
		&core.VectorEntry{ChunkId: 2, DocumentId: 1, ChapterId: 11, Vector: []float32{1, 0}},
		&core.VectorEntry{ChunkId: 3, DocumentId: 2, ChapterId: 20, Vector: []float32{1, 0}},
	))

	require.NoError(t, store.Vectors.DeleteScope(ctx, core.ChapterScope(1, 10)))
	matches, err := store.Vectors.Search(ctx, []float32{1, 0}, 10, core.Scope{})
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	require.NoError(t, store.Vectors.DeleteScope(ctx, core.DocumentScope(1)))
	matches, err = store.Vectors.Search(ctx, []float32{1, 0}, 10, core.Scope{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.ID(3), matches[0].ChunkId)
}
