package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// ConceptRepository implements storage.ConceptRepository for BadgerDB.
type ConceptRepository struct {
	backend *Backend
}

var _ storage.ConceptRepository = (*ConceptRepository)(nil)

// NewConceptRepository creates a new ConceptRepository.
func NewConceptRepository(backend *Backend) (*ConceptRepository, error) {
	return &ConceptRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ConceptRepository has no resources to release.
func (r *ConceptRepository) Close() error {
	return nil
}

// AddConcepts adds one or more concepts to storage.
func (r *ConceptRepository) AddConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error) {
	for _, concept := range concepts {
		if err := core.ValidateConcept(concept); err != nil {
			return nil, err
		}
	}

	err := r.backend.Update(func(tx *badger.Txn) error {
		for _, concept := range concepts {
			// Use content-based ID if not set
			if concept.Id == 0 {
				concept.Id = core.IDFromContent(concept.Tuple())
			}

			concept.InsertedAt = time.Now().UTC()
			concept.UpdatedAt = concept.InsertedAt

			if err := tx.Set(makeConceptKey(concept.Id), storage.MarshalConcept(concept)); err != nil {
				return err
			}

			// Store tuple index
			tupleKey := makeConceptTupleKey(concept.Name, concept.Type)
			if err := tx.Set(tupleKey, storage.MarshalID(concept.Id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return concepts, nil
}

// GetConcept retrieves a single concept by ID.
func (r *ConceptRepository) GetConcept(ctx context.Context, id core.ID) (*core.Concept, error) {
	var result *core.Concept
	err := r.backend.View(func(tx *badger.Txn) error {
		concept, found, err := getValue(tx, makeConceptKey(id), storage.UnmarshalConcept)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		result = concept
		return nil
	})
	return result, err
}

// GetConcepts retrieves multiple concepts by their IDs.
func (r *ConceptRepository) GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error) {
	var result []*core.Concept
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			concept, found, err := getValue(tx, makeConceptKey(id), storage.UnmarshalConcept)
			if err != nil {
				return err
			}
			if found {
				result = append(result, concept)
			}
		}
		return nil
	})
	return result, err
}

// FindConceptByNameAndType finds a concept by its name and type tuple.
func (r *ConceptRepository) FindConceptByNameAndType(ctx context.Context, name, conceptType string) (*core.Concept, error) {
	var result *core.Concept
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		result, err = findConcept(tx, name, conceptType)
		return err
	})
	return result, err
}

// GetOrCreateConcept finds or creates a concept by name and type.
// The lookup and the insert share one write so concurrent extractors
// converge on a single record.
func (r *ConceptRepository) GetOrCreateConcept(ctx context.Context, name, conceptType string, vector []float32) (*core.Concept, error) {
	candidate := &core.Concept{
		Name:   name,
		Type:   conceptType,
		Vector: vector,
	}
	if err := core.ValidateConcept(candidate); err != nil {
		return nil, err
	}

	var result *core.Concept
	err := r.backend.Update(func(tx *badger.Txn) error {
		existing, err := findConcept(tx, name, conceptType)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		candidate.Id = core.IDFromContent(candidate.Tuple())
		candidate.InsertedAt = time.Now().UTC()
		candidate.UpdatedAt = candidate.InsertedAt
		if err := tx.Set(makeConceptKey(candidate.Id), storage.MarshalConcept(candidate)); err != nil {
			return err
		}
		if err := tx.Set(makeConceptTupleKey(name, conceptType), storage.MarshalID(candidate.Id)); err != nil {
			return err
		}
		result = candidate
		return nil
	})
	return result, err
}

// findConcept resolves the tuple index and loads the concept record.
func findConcept(tx *badger.Txn, name, conceptType string) (*core.Concept, error) {
	conceptID, found, err := getValue(tx, makeConceptTupleKey(name, conceptType), storage.UnmarshalID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}

	concept, found, err := getValue(tx, makeConceptKey(conceptID), storage.UnmarshalConcept)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return concept, nil
}
