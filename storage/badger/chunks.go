package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// AddChunks stores chunks and their scope index entries.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.Update(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = core.ID(id)

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeChunkScopeKey(chunk), storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunks retrieves chunks by ID in the order requested.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	results := make([]*core.Chunk, 0, len(ids))
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, found, err := getValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
			if err != nil {
				return err
			}
			if found {
				results = append(results, chunk)
			}
		}
		return nil
	})
	return results, err
}

// GetChunksByChapter returns the chunks of a chapter ordered by index.
func (r *ChunkRepository) GetChunksByChapter(ctx context.Context, chapterID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		chapter, found, err := getValue(tx, makeChapterKey(chapterID), storage.UnmarshalChapter)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		results, err = r.scopeChunks(tx, core.ChapterScope(chapter.DocumentId, chapterID))
		return err
	})
	return results, err
}

// CountChunks counts chunks within a scope.
func (r *ChunkRepository) CountChunks(ctx context.Context, scope core.Scope) (int, error) {
	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		keys, err := collectKeys(tx, makeChunkScopePrefix(scope))
		count = len(keys)
		return err
	})
	return count, err
}

// DeleteChunks removes every chunk within a scope.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, scope core.Scope) ([]*core.Chunk, error) {
	var removed []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		removed, err = r.scopeChunks(tx, scope)
		return err
	})
	if err != nil || len(removed) == 0 {
		return removed, err
	}

	keys := make([][]byte, 0, 2*len(removed))
	for _, chunk := range removed {
		keys = append(keys, makeChunkKey(chunk.Id), makeChunkScopeKey(chunk))
	}
	if err := r.backend.deleteKeys(keys); err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *ChunkRepository) scopeChunks(tx *badger.Txn, scope core.Scope) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := scanPrefix(tx, makeChunkScopePrefix(scope), func(item *badger.Item) error {
		id, err := itemValue(item, storage.UnmarshalID)
		if err != nil {
			return err
		}
		chunk, found, err := getValue(tx, makeChunkKey(id), storage.UnmarshalChunk)
		if err != nil {
			return err
		}
		if found {
			results = append(results, chunk)
		}
		return nil
	})
	return results, err
}
