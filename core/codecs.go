package core

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// ErrTruncatedRecord indicates a serialized record ended before all fields were read.
var ErrTruncatedRecord = errors.New("truncated record")

// recordVersion prefixes every encoded record so layouts can evolve.
const recordVersion = 1

// encoder appends MUS-encoded primitives to a buffer.
type encoder struct {
	bs []byte
}

func newEncoder() *encoder {
	return &encoder{bs: make([]byte, 0, 128)}
}

func (e *encoder) grow(n int) []byte {
	start := len(e.bs)
	e.bs = append(e.bs, make([]byte, n)...)
	return e.bs[start:]
}

func (e *encoder) uint64(v uint64) {
	varint.Uint64.Marshal(v, e.grow(varint.Uint64.Size(v)))
}

func (e *encoder) int64(v int64) {
	varint.Int64.Marshal(v, e.grow(varint.Int64.Size(v)))
}

func (e *encoder) int(v int) {
	e.int64(int64(v))
}

func (e *encoder) id(v ID) {
	e.uint64(uint64(v))
}

func (e *encoder) string(v string) {
	ord.String.Marshal(v, e.grow(ord.String.Size(v)))
}

func (e *encoder) strings(v []string) {
	e.int(len(v))
	for _, s := range v {
		e.string(s)
	}
}

// time encodes with microsecond precision; the zero time round-trips as zero.
func (e *encoder) time(v time.Time) {
	if v.IsZero() {
		e.int64(0)
		return
	}
	e.int64(v.UnixMicro())
}

func (e *encoder) vector(v []float32) {
	e.int(len(v))
	buf := e.grow(4 * len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}

func (e *encoder) ints(v []int) {
	e.int(len(v))
	for _, i := range v {
		e.int(i)
	}
}

func (e *encoder) conceptRefs(v []ConceptRef) {
	e.int(len(v))
	for _, ref := range v {
		e.id(ref.ConceptId)
		e.int(ref.Importance)
	}
}

// decoder reads MUS-encoded primitives. The first error sticks.
type decoder struct {
	bs  []byte
	err error
}

func newDecoder(bs []byte) *decoder {
	return &decoder{bs: bs}
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) int() int {
	return int(d.int64())
}

func (d *decoder) id() ID {
	return ID(d.uint64())
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return ""
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) length() int {
	n := d.int()
	if n < 0 || n > len(d.bs) {
		if d.err == nil {
			d.err = ErrTruncatedRecord
		}
		return 0
	}
	return n
}

func (d *decoder) strings() []string {
	n := d.length()
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.string()
	}
	return out
}

func (d *decoder) time() time.Time {
	v := d.int64()
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func (d *decoder) vector() []float32 {
	n := d.int()
	if d.err != nil || n == 0 {
		return nil
	}
	if n < 0 || len(d.bs) < 4*n {
		d.err = ErrTruncatedRecord
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(d.bs[i*4:]))
	}
	d.bs = d.bs[4*n:]
	return out
}

func (d *decoder) ints() []int {
	n := d.length()
	if n == 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = d.int()
	}
	return out
}

func (d *decoder) conceptRefs() []ConceptRef {
	n := d.length()
	if n == 0 {
		return nil
	}
	out := make([]ConceptRef, n)
	for i := range out {
		out[i].ConceptId = d.id()
		out[i].Importance = d.int()
	}
	return out
}

func (d *decoder) version() {
	if v := d.uint64(); d.err == nil && v != recordVersion {
		d.err = errors.New("unsupported record version")
	}
}

// EncodeID serializes an ID.
func EncodeID(id ID) []byte {
	e := newEncoder()
	e.id(id)
	return e.bs
}

// DecodeID deserializes an ID.
func DecodeID(bs []byte) (ID, error) {
	d := newDecoder(bs)
	id := d.id()
	return id, d.err
}

func EncodeDocument(v *Document) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.string(v.Title)
	e.string(v.SourcePath)
	e.int(int(v.Status))
	e.string(v.Error)
	e.int(v.PageCount)
	e.string(v.Metadata.Title)
	e.string(v.Metadata.Author)
	e.string(v.Metadata.Summary)
	e.strings(v.Metadata.Keywords)
	e.conceptRefs(v.Concepts)
	e.time(v.CreatedAt)
	e.time(v.UpdatedAt)
	return e.bs
}

func DecodeDocument(bs []byte) (*Document, error) {
	d := newDecoder(bs)
	d.version()
	v := &Document{}
	v.Id = d.id()
	v.Title = d.string()
	v.SourcePath = d.string()
	v.Status = DocumentStatus(d.int())
	v.Error = d.string()
	v.PageCount = d.int()
	v.Metadata.Title = d.string()
	v.Metadata.Author = d.string()
	v.Metadata.Summary = d.string()
	v.Metadata.Keywords = d.strings()
	v.Concepts = d.conceptRefs()
	v.CreatedAt = d.time()
	v.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeChapter(v *Chapter) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.id(v.DocumentId)
	e.int(v.Index)
	e.string(v.Title)
	e.int(v.PageStart)
	e.int(v.PageEnd)
	e.string(v.Content)
	e.ints(v.PageOffsets)
	e.int(int(v.Status))
	e.string(v.Error)
	e.string(v.Summary)
	e.conceptRefs(v.Concepts)
	e.time(v.CreatedAt)
	e.time(v.UpdatedAt)
	return e.bs
}

func DecodeChapter(bs []byte) (*Chapter, error) {
	d := newDecoder(bs)
	d.version()
	v := &Chapter{}
	v.Id = d.id()
	v.DocumentId = d.id()
	v.Index = d.int()
	v.Title = d.string()
	v.PageStart = d.int()
	v.PageEnd = d.int()
	v.Content = d.string()
	v.PageOffsets = d.ints()
	v.Status = ChapterStatus(d.int())
	v.Error = d.string()
	v.Summary = d.string()
	v.Concepts = d.conceptRefs()
	v.CreatedAt = d.time()
	v.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeChunk(v *Chunk) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.int(v.Index)
	e.string(v.Content)
	e.string(v.Heading)
	e.int(v.PageStart)
	e.int(v.PageEnd)
	e.int(v.TokenCount)
	return e.bs
}

func DecodeChunk(bs []byte) (*Chunk, error) {
	d := newDecoder(bs)
	d.version()
	v := &Chunk{}
	v.Id = d.id()
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.Index = d.int()
	v.Content = d.string()
	v.Heading = d.string()
	v.PageStart = d.int()
	v.PageEnd = d.int()
	v.TokenCount = d.int()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeJob(v *Job) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.int(int(v.Type))
	e.int(int(v.Status))
	e.int(v.Attempts)
	e.string(v.LastError)
	e.string(v.Lease)
	e.time(v.RetryAfter)
	e.time(v.CreatedAt)
	e.time(v.UpdatedAt)
	return e.bs
}

func DecodeJob(bs []byte) (*Job, error) {
	d := newDecoder(bs)
	d.version()
	v := &Job{}
	v.Id = d.id()
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.Type = JobType(d.int())
	v.Status = JobStatus(d.int())
	v.Attempts = d.int()
	v.LastError = d.string()
	v.Lease = d.string()
	v.RetryAfter = d.time()
	v.CreatedAt = d.time()
	v.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeMessage(v *Message) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.int(int(v.Role))
	e.string(v.Content)
	e.time(v.CreatedAt)
	return e.bs
}

func DecodeMessage(bs []byte) (*Message, error) {
	d := newDecoder(bs)
	d.version()
	v := &Message{}
	v.Id = d.id()
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.Role = Role(d.int())
	v.Content = d.string()
	v.CreatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeSummary(v *ConversationSummary) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.string(v.SummaryText)
	e.id(v.LastSummarizedMessageId)
	e.time(v.UpdatedAt)
	return e.bs
}

func DecodeSummary(bs []byte) (*ConversationSummary, error) {
	d := newDecoder(bs)
	d.version()
	v := &ConversationSummary{}
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.SummaryText = d.string()
	v.LastSummarizedMessageId = d.id()
	v.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

func EncodeConcept(v *Concept) []byte {
	e := newEncoder()
	e.uint64(recordVersion)
	e.id(v.Id)
	e.string(v.Name)
	e.string(v.Type)
	e.vector(v.Vector)
	e.time(v.InsertedAt)
	e.time(v.UpdatedAt)
	return e.bs
}

func DecodeConcept(bs []byte) (*Concept, error) {
	d := newDecoder(bs)
	d.version()
	v := &Concept{}
	v.Id = d.id()
	v.Name = d.string()
	v.Type = d.string()
	v.Vector = d.vector()
	v.InsertedAt = d.time()
	v.UpdatedAt = d.time()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

// VectorEntry is a stored embedding with the scope it belongs to.
type VectorEntry struct {
	ChunkId    ID
	DocumentId ID
	ChapterId  ID
	Vector     []float32
}

func EncodeVectorEntry(v *VectorEntry) []byte {
	e := newEncoder()
	e.id(v.ChunkId)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.vector(v.Vector)
	return e.bs
}

func DecodeVectorEntry(bs []byte) (*VectorEntry, error) {
	d := newDecoder(bs)
	v := &VectorEntry{}
	v.ChunkId = d.id()
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.Vector = d.vector()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

// Posting is a lexical index entry for one term in one chunk.
type Posting struct {
	ChunkId    ID
	DocumentId ID
	ChapterId  ID
	TermFreq   int
	Length     int // Number of indexed terms in the chunk
}

func EncodePosting(v *Posting) []byte {
	e := newEncoder()
	e.id(v.ChunkId)
	e.id(v.DocumentId)
	e.id(v.ChapterId)
	e.int(v.TermFreq)
	e.int(v.Length)
	return e.bs
}

func DecodePosting(bs []byte) (*Posting, error) {
	d := newDecoder(bs)
	v := &Posting{}
	v.ChunkId = d.id()
	v.DocumentId = d.id()
	v.ChapterId = d.id()
	v.TermFreq = d.int()
	v.Length = d.int()
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}

// EncodeStrings serializes a string list.
func EncodeStrings(v []string) []byte {
	e := newEncoder()
	e.strings(v)
	return e.bs
}

// DecodeStrings deserializes a string list.
func DecodeStrings(bs []byte) ([]string, error) {
	d := newDecoder(bs)
	v := d.strings()
	return v, d.err
}

// EncodeCounters serializes a pair of counters.
func EncodeCounters(a, b int64) []byte {
	e := newEncoder()
	e.int64(a)
	e.int64(b)
	return e.bs
}

// DecodeCounters deserializes a pair of counters.
func DecodeCounters(bs []byte) (int64, int64, error) {
	d := newDecoder(bs)
	a := d.int64()
	b := d.int64()
	return a, b, d.err
}
