package badger

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

// VectorIndex implements storage.VectorIndex with a brute-force cosine scan
// over the embeddings stored under the requested scope.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

// Upsert stores or replaces embeddings.
func (v *VectorIndex) Upsert(ctx context.Context, entries ...*core.VectorEntry) error {
	return v.backend.Update(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if entry.DocumentId == 0 {
				return core.ErrDocumentRequired
			}
			if err := tx.Set(makeVectorKey(entry), storage.MarshalVectorEntry(entry)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search returns up to k chunks ordered by cosine distance, nearest first.
// Equal distances keep key order so results are deterministic.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, k int, scope core.Scope) ([]core.VectorMatch, error) {
	if k <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	var matches []core.VectorMatch
	err := v.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeVectorScopePrefix(scope), func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := itemValue(item, storage.UnmarshalVectorEntry)
			if err != nil {
				return err
			}
			entryNorm := norm(entry.Vector)
			if entryNorm == 0 {
				return nil
			}
			similarity := dotProduct(vector, entry.Vector) / (queryNorm * entryNorm)
			matches = append(matches, core.VectorMatch{
				ChunkId:  entry.ChunkId,
				Distance: 1 - similarity,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(matches, func(a, b core.VectorMatch) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteScope removes every embedding within a scope.
func (v *VectorIndex) DeleteScope(ctx context.Context, scope core.Scope) error {
	var keys [][]byte
	err := v.backend.View(func(tx *badger.Txn) error {
		var err error
		keys, err = collectKeys(tx, makeVectorScopePrefix(scope))
		return err
	})
	if err != nil {
		return err
	}
	return v.backend.deleteKeys(keys)
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(a []float32) float32 {
	return float32(math.Sqrt(float64(dotProduct(a, a))))
}
