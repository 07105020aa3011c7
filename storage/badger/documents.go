package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend    *Backend
	documentID *badger.Sequence
	chapterID  *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	documentID, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}
	chapterID, err := backend.GetSequence(chapterIDSeq)
	if err != nil {
		documentID.Release()
		return nil, err
	}

	return &DocumentRepository{
		backend:    backend,
		documentID: documentID,
		chapterID:  chapterID,
	}, nil
}

// Close releases the ID sequences.
func (r *DocumentRepository) Close() error {
	err := r.documentID.Release()
	if chapterErr := r.chapterID.Release(); err == nil {
		err = chapterErr
	}
	return err
}

// AddDocument stores a new document.
func (r *DocumentRepository) AddDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	err := r.backend.Update(func(tx *badger.Txn) error {
		id, err := nextID(r.documentID)
		if err != nil {
			return err
		}
		document.Id = core.ID(id)
		document.CreatedAt = time.Now().UTC()
		document.UpdatedAt = document.CreatedAt
		if document.Status == 0 {
			document.Status = core.DocumentStatusProcessing
		}
		return tx.Set(makeDocumentKey(document.Id), storage.MarshalDocument(document))
	})
	if err != nil {
		return nil, err
	}
	return document, nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		document, found, err := getValue(tx, makeDocumentKey(id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = document
		return nil
	})
	return result, err
}

// ListDocuments returns all documents ordered by ID.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, newKey(documentPrefix).bytes(), func(item *badger.Item) error {
			document, err := itemValue(item, storage.UnmarshalDocument)
			if err != nil {
				return err
			}
			results = append(results, document)
			return nil
		})
	})
	return results, err
}

// UpdateDocument applies fn to the stored document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, id core.ID, fn func(document *core.Document) error) (*core.Document, error) {
	var result *core.Document
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		document, found, err := getValue(tx, key, storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		if err := fn(document); err != nil {
			return err
		}
		document.Id = id
		document.UpdatedAt = time.Now().UTC()
		result = document
		return tx.Set(key, storage.MarshalDocument(document))
	})
	return result, err
}

// DeleteDocument removes a document and its chapters.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	var keys [][]byte
	err := r.backend.View(func(tx *badger.Txn) error {
		if _, err := tx.Get(makeDocumentKey(id)); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		keys = append(keys, makeDocumentKey(id))
		return scanPrefix(tx, newKey(chapterDocumentPrefix).id(id).bytes(), func(item *badger.Item) error {
			chapterID, err := itemValue(item, storage.UnmarshalID)
			if err != nil {
				return err
			}
			keys = append(keys, item.KeyCopy(nil), makeChapterKey(chapterID))
			return nil
		})
	})
	if err != nil {
		return err
	}
	return r.backend.deleteKeys(keys)
}

// AddChapters stores chapters and indexes them by document and position.
func (r *DocumentRepository) AddChapters(ctx context.Context, chapters ...*core.Chapter) ([]*core.Chapter, error) {
	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chapter := range chapters {
			if chapter.DocumentId == 0 {
				return core.ErrDocumentRequired
			}
			id, err := nextID(r.chapterID)
			if err != nil {
				return err
			}
			chapter.Id = core.ID(id)
			chapter.CreatedAt = now
			chapter.UpdatedAt = now
			if chapter.Status == 0 {
				chapter.Status = core.ChapterStatusPending
			}

			if err := tx.Set(makeChapterKey(chapter.Id), storage.MarshalChapter(chapter)); err != nil {
				return err
			}
			indexKey := makeChapterDocumentKey(chapter.DocumentId, chapter.Index, chapter.Id)
			if err := tx.Set(indexKey, storage.MarshalID(chapter.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chapters, nil
}

// GetChapter retrieves a chapter by ID.
func (r *DocumentRepository) GetChapter(ctx context.Context, id core.ID) (*core.Chapter, error) {
	var result *core.Chapter
	err := r.backend.View(func(tx *badger.Txn) error {
		chapter, found, err := getValue(tx, makeChapterKey(id), storage.UnmarshalChapter)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = chapter
		return nil
	})
	return result, err
}

// GetChapters returns the chapters of a document ordered by index.
func (r *DocumentRepository) GetChapters(ctx context.Context, documentID core.ID) ([]*core.Chapter, error) {
	var results []*core.Chapter
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, newKey(chapterDocumentPrefix).id(documentID).bytes(), func(item *badger.Item) error {
			chapterID, err := itemValue(item, storage.UnmarshalID)
			if err != nil {
				return err
			}
			chapter, found, err := getValue(tx, makeChapterKey(chapterID), storage.UnmarshalChapter)
			if err != nil {
				return err
			}
			if found {
				results = append(results, chapter)
			}
			return nil
		})
	})
	return results, err
}

// UpdateChapter applies fn to the stored chapter.
func (r *DocumentRepository) UpdateChapter(ctx context.Context, id core.ID, fn func(chapter *core.Chapter) error) (*core.Chapter, error) {
	var result *core.Chapter
	err := r.backend.Update(func(tx *badger.Txn) error {
		key := makeChapterKey(id)
		chapter, found, err := getValue(tx, key, storage.UnmarshalChapter)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		documentID, index := chapter.DocumentId, chapter.Index
		if err := fn(chapter); err != nil {
			return err
		}
		// Identity and position are immutable.
		chapter.Id, chapter.DocumentId, chapter.Index = id, documentID, index
		chapter.UpdatedAt = time.Now().UTC()
		result = chapter
		return tx.Set(key, storage.MarshalChapter(chapter))
	})
	return result, err
}
