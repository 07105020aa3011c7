// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "errors"

// Store bundles every repository over one backend.
type Store struct {
	Backend   *Backend
	Documents *DocumentRepository
	Chunks    *ChunkRepository
	Vectors   *VectorIndex
	Lexical   *LexicalIndex
	Jobs      *JobRepository
	Messages  *MessageRepository
	Summaries *SummaryRepository
	Concepts  *ConceptRepository
}

// OpenStore opens a backend and creates all repositories over it.
func OpenStore(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	store := &Store{
		Backend:   backend,
		Vectors:   NewVectorIndex(backend),
		Lexical:   NewLexicalIndex(backend),
		Summaries: NewSummaryRepository(backend),
	}

	if store.Documents, err = NewDocumentRepository(backend); err != nil {
		store.Close()
		return nil, err
	}
	if store.Chunks, err = NewChunkRepository(backend); err != nil {
		store.Close()
		return nil, err
	}
	if store.Jobs, err = NewJobRepository(backend); err != nil {
		store.Close()
		return nil, err
	}
	if store.Messages, err = NewMessageRepository(backend); err != nil {
		store.Close()
		return nil, err
	}
	if store.Concepts, err = NewConceptRepository(backend); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// NewMemoryStore creates an in-memory store for testing.
// Caller must Close it when done.
func NewMemoryStore() (*Store, error) {
	return OpenStore("", true)
}

// Close releases the repositories and then the backend.
func (s *Store) Close() error {
	var errs []error
	if s.Documents != nil {
		errs = append(errs, s.Documents.Close())
	}
	if s.Chunks != nil {
		errs = append(errs, s.Chunks.Close())
	}
	if s.Jobs != nil {
		errs = append(errs, s.Jobs.Close())
	}
	if s.Messages != nil {
		errs = append(errs, s.Messages.Close())
	}
	if s.Concepts != nil {
		errs = append(errs, s.Concepts.Close())
	}
	if s.Backend != nil && !s.Backend.IsClosed() {
		errs = append(errs, s.Backend.Close())
	}
	return errors.Join(errs...)
}
