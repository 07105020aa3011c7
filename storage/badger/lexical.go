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

const (
	// BM25 parameters.
	bm25K1 = 1.2
	bm25B  = 0.75

	// lexicalBatchSize bounds chunks per write transaction.
	lexicalBatchSize = 50
)

// LexicalIndex implements storage.LexicalIndex as an inverted index of
// stemmed terms scored with BM25.
type LexicalIndex struct {
	backend *Backend
}

var _ storage.LexicalIndex = (*LexicalIndex)(nil)

// NewLexicalIndex creates a new LexicalIndex.
func NewLexicalIndex(backend *Backend) *LexicalIndex {
	return &LexicalIndex{backend: backend}
}

// Index adds chunks to the index.
func (l *LexicalIndex) Index(ctx context.Context, chunks ...*core.Chunk) error {
	for start := 0; start < len(chunks); start += lexicalBatchSize {
		batch := chunks[start:min(start+lexicalBatchSize, len(chunks))]
		err := l.backend.Update(func(tx *badger.Txn) error {
			count, total, err := readLexicalStats(tx)
			if err != nil {
				return err
			}
			for _, chunk := range batch {
				terms := tokenize(chunk.Heading + " " + chunk.Content)
				freqs := termFrequencies(terms)
				unique := make([]string, 0, len(freqs))
				for term, tf := range freqs {
					posting := &core.Posting{
						ChunkId:    chunk.Id,
						DocumentId: chunk.DocumentId,
						ChapterId:  chunk.ChapterId,
						TermFreq:   tf,
						Length:     len(terms),
					}
					if err := tx.Set(makePostingKey(term, chunk.Id), storage.MarshalPosting(posting)); err != nil {
						return err
					}
					unique = append(unique, term)
				}
				slices.Sort(unique)
				if err := tx.Set(makePostingReverseKey(chunk), core.EncodeStrings(unique)); err != nil {
					return err
				}
				count++
				total += int64(len(terms))
			}
			return tx.Set([]byte(lexicalStatsKey), core.EncodeCounters(count, total))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Remove drops chunks from the index. Chunks that were never indexed are ignored.
func (l *LexicalIndex) Remove(ctx context.Context, chunks ...*core.Chunk) error {
	for start := 0; start < len(chunks); start += lexicalBatchSize {
		batch := chunks[start:min(start+lexicalBatchSize, len(chunks))]
		err := l.backend.Update(func(tx *badger.Txn) error {
			count, total, err := readLexicalStats(tx)
			if err != nil {
				return err
			}
			for _, chunk := range batch {
				reverseKey := makePostingReverseKey(chunk)
				terms, found, err := getValue(tx, reverseKey, core.DecodeStrings)
				if err != nil {
					return err
				}
				if !found {
					continue
				}
				length := 0
				for _, term := range terms {
					key := makePostingKey(term, chunk.Id)
					posting, found, err := getValue(tx, key, storage.UnmarshalPosting)
					if err != nil {
						return err
					}
					if found {
						length = posting.Length
					}
					if err := tx.Delete(key); err != nil {
						return err
					}
				}
				if err := tx.Delete(reverseKey); err != nil {
					return err
				}
				count = max(count-1, 0)
				total = max(total-int64(length), 0)
			}
			return tx.Set([]byte(lexicalStatsKey), core.EncodeCounters(count, total))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Search scores chunks containing query terms with BM25 and returns the
// best limit chunk IDs. Ties are broken by chunk ID.
func (l *LexicalIndex) Search(ctx context.Context, query string, limit int, scope core.Scope) ([]core.ID, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	terms := termFrequencies(tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[core.ID]float64)
	err := l.backend.View(func(tx *badger.Txn) error {
		count, total, err := readLexicalStats(tx)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		avgLength := float64(total) / float64(count)

		for term := range terms {
			if err := ctx.Err(); err != nil {
				return err
			}
			var postings []*core.Posting
			err := scanPrefix(tx, makePostingTermPrefix(term), func(item *badger.Item) error {
				posting, err := itemValue(item, storage.UnmarshalPosting)
				if err != nil {
					return err
				}
				postings = append(postings, posting)
				return nil
			})
			if err != nil {
				return err
			}

			df := float64(len(postings))
			idf := math.Log(1 + (float64(count)-df+0.5)/(df+0.5))
			for _, posting := range postings {
				if !inScope(posting, scope) {
					continue
				}
				tf := float64(posting.TermFreq)
				norm := 1 - bm25B + bm25B*float64(posting.Length)/avgLength
				scores[posting.ChunkId] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]core.ID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b core.ID) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func inScope(posting *core.Posting, scope core.Scope) bool {
	if scope.DocumentId != 0 && posting.DocumentId != scope.DocumentId {
		return false
	}
	if scope.HasChapter() && posting.ChapterId != scope.ChapterId {
		return false
	}
	return true
}

func readLexicalStats(tx *badger.Txn) (int64, int64, error) {
	item, err := tx.Get([]byte(lexicalStatsKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	var count, total int64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		count, total, decodeErr = core.DecodeCounters(val)
		return decodeErr
	})
	return count, total, err
}
