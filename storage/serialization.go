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


package storage

import (
	"fmt"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// Marshal/unmarshal helpers wrap the core codecs so that decoding failures
// surface as ErrSerializationFailed.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return core.EncodeID(id)
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, err := core.DecodeID(data)
	if err != nil {
		return 0, wrapSerialization(err)
	}
	return id, nil
}

func MarshalDocument(document *core.Document) []byte {
	return core.EncodeDocument(document)
}

func UnmarshalDocument(data []byte) (*core.Document, error) {
	document, err := core.DecodeDocument(data)
	return document, wrapSerialization(err)
}

func MarshalChapter(chapter *core.Chapter) []byte {
	return core.EncodeChapter(chapter)
}

func UnmarshalChapter(data []byte) (*core.Chapter, error) {
	chapter, err := core.DecodeChapter(data)
	return chapter, wrapSerialization(err)
}

func MarshalChunk(chunk *core.Chunk) []byte {
	return core.EncodeChunk(chunk)
}

func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, err := core.DecodeChunk(data)
	return chunk, wrapSerialization(err)
}

func MarshalJob(job *core.Job) []byte {
	return core.EncodeJob(job)
}

func UnmarshalJob(data []byte) (*core.Job, error) {
	job, err := core.DecodeJob(data)
	return job, wrapSerialization(err)
}

func MarshalMessage(message *core.Message) []byte {
	return core.EncodeMessage(message)
}

func UnmarshalMessage(data []byte) (*core.Message, error) {
	message, err := core.DecodeMessage(data)
	return message, wrapSerialization(err)
}

func MarshalSummary(summary *core.ConversationSummary) []byte {
	return core.EncodeSummary(summary)
}

func UnmarshalSummary(data []byte) (*core.ConversationSummary, error) {
	summary, err := core.DecodeSummary(data)
	return summary, wrapSerialization(err)
}

// MarshalConcept serializes a Concept to bytes.
func MarshalConcept(concept *core.Concept) []byte {
	return core.EncodeConcept(concept)
}

// UnmarshalConcept deserializes a Concept from bytes.
func UnmarshalConcept(data []byte) (*core.Concept, error) {
	concept, err := core.DecodeConcept(data)
	return concept, wrapSerialization(err)
}

func MarshalVectorEntry(entry *core.VectorEntry) []byte {
	return core.EncodeVectorEntry(entry)
}

func UnmarshalVectorEntry(data []byte) (*core.VectorEntry, error) {
	entry, err := core.DecodeVectorEntry(data)
	return entry, wrapSerialization(err)
}

func MarshalPosting(posting *core.Posting) []byte {
	return core.EncodePosting(posting)
}

func UnmarshalPosting(data []byte) (*core.Posting, error) {
	posting, err := core.DecodePosting(data)
	return posting, wrapSerialization(err)
}

func wrapSerialization(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}
