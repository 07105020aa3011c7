package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// MessageRepository implements storage.MessageRepository for BadgerDB.
type MessageRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(backend *Backend) (*MessageRepository, error) {
	idSeq, err := backend.GetSequence(messageIDSeq)
	if err != nil {
		return nil, err
	}

	return &MessageRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *MessageRepository) Close() error {
	return r.idSeq.Release()
}

// AddMessages stores messages. IDs come from a single sequence, so they
// increase with insertion order across every scope.
func (r *MessageRepository) AddMessages(ctx context.Context, messages ...*core.Message) ([]*core.Message, error) {
	for _, message := range messages {
		if err := core.ValidateMessage(message); err != nil {
			return nil, err
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, message := range messages {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			message.Id = core.ID(id)
			if message.CreatedAt.IsZero() {
				message.CreatedAt = now
			}
			if err := tx.Set(makeMessageKey(message), storage.MarshalMessage(message)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessages returns the messages of a scope ordered by ID.
func (r *MessageRepository) GetMessages(ctx context.Context, scope core.Scope) ([]*core.Message, error) {
	var results []*core.Message
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeMessageScopePrefix(scope), func(item *badger.Item) error {
			message, err := itemValue(item, storage.UnmarshalMessage)
			if err != nil {
				return err
			}
			results = append(results, message)
			return nil
		})
	})
	return results, err
}

// DeleteMessages removes every message of a document.
func (r *MessageRepository) DeleteMessages(ctx context.Context, documentID core.ID) error {
	var keys [][]byte
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		keys, err = collectKeys(tx, newKey(messagePrefix).id(documentID).bytes())
		return err
	})
	if err != nil {
		return err
	}
	return r.backend.deleteKeys(keys)
}
