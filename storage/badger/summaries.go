package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// SummaryRepository implements storage.SummaryRepository for BadgerDB.
type SummaryRepository struct {
	backend *Backend
}

var _ storage.SummaryRepository = (*SummaryRepository)(nil)

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(backend *Backend) *SummaryRepository {
	return &SummaryRepository{backend: backend}
}

// GetSummary returns the summary of a scope.
func (r *SummaryRepository) GetSummary(ctx context.Context, scope core.Scope) (*core.ConversationSummary, error) {
	var result *core.ConversationSummary
	err := r.backend.View(func(tx *badger.Txn) error {
		summary, found, err := getValue(tx, makeSummaryKey(scope), storage.UnmarshalSummary)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = summary
		return nil
	})
	return result, err
}

// UpsertSummary inserts or replaces the summary of its scope.
func (r *SummaryRepository) UpsertSummary(ctx context.Context, summary *core.ConversationSummary) error {
	if summary.DocumentId == 0 {
		return core.ErrDocumentRequired
	}
	summary.UpdatedAt = time.Now().UTC()
	scope := core.Scope{DocumentId: summary.DocumentId, ChapterId: summary.ChapterId}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeSummaryKey(scope), storage.MarshalSummary(summary))
	})
}

// DeleteSummaries removes every summary of a document.
func (r *SummaryRepository) DeleteSummaries(ctx context.Context, documentID core.ID) error {
	var keys [][]byte
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		keys, err = collectKeys(tx, newKey(summaryPrefix).id(documentID).bytes())
		return err
	})
	if err != nil {
		return err
	}
	return r.backend.deleteKeys(keys)
}
