package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// Key prefixes for different data types
const (
	documentPrefix        = "doc"
	chapterPrefix         = "chap"
	chapterDocumentPrefix = "chapd"
	chunkPrefix           = "chunk"
	chunkScopePrefix      = "chunks"
	vectorPrefix          = "vec"
	postingPrefix         = "lex"
	postingReversePrefix  = "lexr"
	lexicalStatsKey       = "lexstat"
	jobPrefix             = "job"
	jobQueuePrefix        = "jobq"
	jobDocumentPrefix     = "jobd"
	messagePrefix         = "msg"
	summaryPrefix         = "sum"
	conceptRecordPrefix   = "conrec"
	conceptTypeNamePrefix = "contyna"

	documentIDSeq = "seq:doc"
	chapterIDSeq  = "seq:chap"
	chunkIDSeq    = "seq:chunk"
	jobIDSeq      = "seq:job"
	messageIDSeq  = "seq:msg"
)

// keyBuilder assembles binary keys. Integers are written BigEndian so that
// lexicographic key order matches numeric order.
type keyBuilder struct {
	buf []byte
}

func newKey(prefix string) *keyBuilder {
	kb := &keyBuilder{buf: make([]byte, 0, len(prefix)+33)}
	kb.buf = append(kb.buf, prefix...)
	kb.buf = append(kb.buf, ':')
	return kb
}

func (kb *keyBuilder) id(id core.ID) *keyBuilder {
	kb.buf = binary.BigEndian.AppendUint64(kb.buf, uint64(id))
	return kb
}

func (kb *keyBuilder) uint32(v uint32) *keyBuilder {
	kb.buf = binary.BigEndian.AppendUint32(kb.buf, v)
	return kb
}

func (kb *keyBuilder) byte(v byte) *keyBuilder {
	kb.buf = append(kb.buf, v)
	return kb
}

func (kb *keyBuilder) time(t time.Time) *keyBuilder {
	kb.buf = binary.BigEndian.AppendUint64(kb.buf, uint64(t.UnixMicro()))
	return kb
}

// term appends a string terminated by 0x00 so that one term is never a
// prefix match for a longer one.
func (kb *keyBuilder) term(s string) *keyBuilder {
	kb.buf = append(kb.buf, s...)
	kb.buf = append(kb.buf, 0)
	return kb
}

func (kb *keyBuilder) bytes() []byte {
	return kb.buf
}

// scopeKey appends a scope as a key prefix. A document scope stops after
// the document ID so it matches every chapter.
func (kb *keyBuilder) scope(scope core.Scope) *keyBuilder {
	if scope.DocumentId == 0 {
		return kb
	}
	kb.id(scope.DocumentId)
	if scope.HasChapter() {
		kb.id(scope.ChapterId)
	}
	return kb
}

func makeDocumentKey(id core.ID) []byte {
	return newKey(documentPrefix).id(id).bytes()
}

func makeChapterKey(id core.ID) []byte {
	return newKey(chapterPrefix).id(id).bytes()
}

// makeChapterDocumentKey indexes chapters by document and position.
// Format: prefix:documentID:index:chapterID
func makeChapterDocumentKey(documentID core.ID, index int, chapterID core.ID) []byte {
	return newKey(chapterDocumentPrefix).id(documentID).uint32(uint32(index)).id(chapterID).bytes()
}

func makeChunkKey(id core.ID) []byte {
	return newKey(chunkPrefix).id(id).bytes()
}

// makeChunkScopeKey indexes chunks by scope and position.
// Format: prefix:documentID:chapterID:index:chunkID
func makeChunkScopeKey(chunk *core.Chunk) []byte {
	return newKey(chunkScopePrefix).id(chunk.DocumentId).id(chunk.ChapterId).uint32(uint32(chunk.Index)).id(chunk.Id).bytes()
}

func makeChunkScopePrefix(scope core.Scope) []byte {
	return newKey(chunkScopePrefix).scope(scope).bytes()
}

// makeVectorKey format: prefix:documentID:chapterID:chunkID
func makeVectorKey(entry *core.VectorEntry) []byte {
	return newKey(vectorPrefix).id(entry.DocumentId).id(entry.ChapterId).id(entry.ChunkId).bytes()
}

func makeVectorScopePrefix(scope core.Scope) []byte {
	return newKey(vectorPrefix).scope(scope).bytes()
}

// makePostingKey format: prefix:term\x00chunkID
func makePostingKey(term string, chunkID core.ID) []byte {
	return newKey(postingPrefix).term(term).id(chunkID).bytes()
}

func makePostingTermPrefix(term string) []byte {
	return newKey(postingPrefix).term(term).bytes()
}

// makePostingReverseKey lists the terms indexed for a chunk.
// Format: prefix:documentID:chapterID:chunkID
func makePostingReverseKey(chunk *core.Chunk) []byte {
	return newKey(postingReversePrefix).id(chunk.DocumentId).id(chunk.ChapterId).id(chunk.Id).bytes()
}

func makeJobKey(id core.ID) []byte {
	return newKey(jobPrefix).id(id).bytes()
}

// makeJobQueueKey orders pending jobs for claiming.
// Format: prefix:priority:createdAt:jobID
func makeJobQueueKey(job *core.Job) []byte {
	return newKey(jobQueuePrefix).byte(byte(job.Type.Priority())).time(job.CreatedAt).id(job.Id).bytes()
}

// makeJobDocumentKey format: prefix:documentID:jobID
func makeJobDocumentKey(documentID, jobID core.ID) []byte {
	return newKey(jobDocumentPrefix).id(documentID).id(jobID).bytes()
}

func makeJobDocumentPrefix(documentID core.ID) []byte {
	return newKey(jobDocumentPrefix).id(documentID).bytes()
}

// makeMessageKey format: prefix:documentID:chapterID:messageID
func makeMessageKey(message *core.Message) []byte {
	return newKey(messagePrefix).id(message.DocumentId).id(message.ChapterId).id(message.Id).bytes()
}

// makeMessageScopePrefix always includes the chapter component so that a
// document scope selects only document-level messages.
func makeMessageScopePrefix(scope core.Scope) []byte {
	return newKey(messagePrefix).id(scope.DocumentId).id(scope.ChapterId).bytes()
}

func makeSummaryKey(scope core.Scope) []byte {
	return newKey(summaryPrefix).id(scope.DocumentId).id(scope.ChapterId).bytes()
}

// makeConceptKey generates a key for a concept by ID.
func makeConceptKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", conceptRecordPrefix, id))
}

// makeConceptTupleKey generates a composite key for concept lookup by (type, name).
// Format: prefix:type:name
func makeConceptTupleKey(name, conceptType string) []byte {
	return []byte(conceptTypeNamePrefix + ":" + conceptType + ":" + name)
}
