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


package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is the identifier type shared by every persisted record.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Scope addresses a conversation or retrieval target.
// A zero ChapterId means the whole document.
type Scope struct {
	DocumentId ID
	ChapterId  ID
}

// DocumentScope returns a scope covering an entire document.
func DocumentScope(documentID ID) Scope {
	return Scope{DocumentId: documentID}
}

// ChapterScope returns a scope restricted to a single chapter.
func ChapterScope(documentID, chapterID ID) Scope {
	return Scope{DocumentId: documentID, ChapterId: chapterID}
}

// HasChapter reports whether the scope is restricted to a chapter.
func (s Scope) HasChapter() bool {
	return s.ChapterId != 0
}

// DocumentStatus tracks the ingestion state of a document.
type DocumentStatus int

const (
	DocumentStatusProcessing DocumentStatus = iota + 1
	DocumentStatusReady
	DocumentStatusError
	DocumentStatusCancelled
)

func (s DocumentStatus) String() string {
	switch s {
	case DocumentStatusProcessing:
		return "processing"
	case DocumentStatusReady:
		return "ready"
	case DocumentStatusError:
		return "error"
	case DocumentStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChapterStatus tracks the ingestion state of a chapter.
type ChapterStatus int

const (
	ChapterStatusPending ChapterStatus = iota + 1
	ChapterStatusReady
	ChapterStatusError
)

func (s ChapterStatus) String() string {
	switch s {
	case ChapterStatusPending:
		return "pending"
	case ChapterStatusReady:
		return "ready"
	case ChapterStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// DocumentMetadata holds descriptive fields extracted from the document text.
type DocumentMetadata struct {
	Title    string
	Author   string
	Summary  string
	Keywords []string
}

// Document is an ingested source file.
type Document struct {
	Id         ID
	Title      string
	SourcePath string
	Status     DocumentStatus
	Error      string // Last terminal error surfaced to the user
	PageCount  int
	Metadata   DocumentMetadata
	Concepts   []ConceptRef // Document-level concepts produced by consolidation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chapter is a structural section of a document. Chapters carry their own
// text so that jobs can be retried without re-reading the source file.
type Chapter struct {
	Id          ID
	DocumentId  ID
	Index       int
	Title       string
	PageStart   int
	PageEnd     int
	Content     string
	PageOffsets []int // Offsets into Content where each page starting at PageStart begins
	Status      ChapterStatus
	Error       string
	Summary     string
	Concepts    []ConceptRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PageAt maps a character offset within Content to a physical page number.
func (c *Chapter) PageAt(offset int) int {
	page := c.PageStart
	for i, start := range c.PageOffsets {
		if start > offset {
			break
		}
		page = c.PageStart + i
	}
	return page
}

// Chunk is a retrievable unit of chapter text.
type Chunk struct {
	Id         ID
	DocumentId ID
	ChapterId  ID
	Index      int
	Content    string
	Heading    string
	PageStart  int
	PageEnd    int
	TokenCount int
}

// Role identifies the author of a conversation message.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// Message is a single conversation turn scoped to a document or chapter.
type Message struct {
	Id         ID
	DocumentId ID
	ChapterId  ID
	Role       Role
	Content    string
	CreatedAt  time.Time
}

// Scope returns the conversation scope the message belongs to.
func (m *Message) Scope() Scope {
	return Scope{DocumentId: m.DocumentId, ChapterId: m.ChapterId}
}

// ConversationSummary caches the compaction of older turns for a scope.
type ConversationSummary struct {
	DocumentId              ID
	ChapterId               ID
	SummaryText             string
	LastSummarizedMessageId ID
	UpdatedAt               time.Time
}

// RankedChunk is a retrieval result. Ordering of a slice of RankedChunk is significant.
type RankedChunk struct {
	Id         ID
	Content    string
	Heading    string
	PageStart  int
	PageEnd    int
	TokenCount int
	Score      float64
}

// Concept represents a domain concept extracted from chapter text.
type Concept struct {
	Id         ID
	Name       string
	Type       string
	Vector     []float32 // Embedding vector for the concept name
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Tuple returns a string representation of the concept as "(Type,Name)".
// This is used for generating deterministic IDs.
func (c *Concept) Tuple() string {
	return "(" + c.Type + "," + c.Name + ")"
}

// ConceptRef represents a reference to a concept with an importance score.
type ConceptRef struct {
	ConceptId  ID
	Importance int
}

// VectorMatch is a single nearest-neighbour hit.
type VectorMatch struct {
	ChunkId  ID
	Distance float32
}
