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


// Package storage provides the storage abstraction layer for the notebook.
//
// This package defines repository interfaces that decouple storage implementation
// from the scheduler, retrieval engine and history compactor. The only
// implementation lives in storage/badger.
//
// # Architecture
//
//   - DocumentRepository: documents and their chapters
//   - ChunkRepository: retrievable chunk records
//   - VectorIndex: chunk embeddings and nearest-neighbour search
//   - LexicalIndex: tokenized full-text search over chunks
//   - JobRepository: ingestion jobs and the atomic claim query
//   - MessageRepository: conversation turns per scope
//   - SummaryRepository: cached conversation compaction per scope
//   - ConceptRepository: concepts shared across chapters and documents
//
// Read-modify-write operations (UpdateDocument, UpdateChapter, UpdateJob)
// take a mutation callback so that concurrent workers never overwrite each
// other's fields with stale copies.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
