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


package ingestion

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
)

const (
	DefaultEmbedBatchSize   = 100
	DefaultSummaryBudget    = 6000
	DefaultConceptBudget    = 6000
	DefaultMetadataBudget   = 4000
	DefaultDocumentConcepts = 25
)

// Repositories groups the stores the job handlers read and write.
type Repositories struct {
	Documents storage.DocumentRepository
	Chunks    storage.ChunkRepository
	Vectors   storage.VectorIndex
	Lexical   storage.LexicalIndex
	Concepts  storage.ConceptRepository
}

// Handlers implements every ingestion job type.
type Handlers struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	vectors   storage.VectorIndex
	lexical   storage.LexicalIndex
	concepts  storage.ConceptRepository
	provider  ai.AIProvider

	chunker          *Chunker
	batchSize        int
	summaryBudget    int
	conceptBudget    int
	metadataBudget   int
	documentConcepts int
}

// HandlerOption configures Handlers.
type HandlerOption func(*Handlers) error

// WithChunker replaces the default 400/50 token chunker.
func WithChunker(chunker *Chunker) HandlerOption {
	return func(h *Handlers) error {
		if chunker != nil {
			h.chunker = chunker
		}
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per provider call.
// Default is 100.
func WithEmbedBatchSize(n int) HandlerOption {
	return func(h *Handlers) error {
		if n < 1 {
			return fmt.Errorf("embed batch size must be positive, got %d", n)
		}
		h.batchSize = n
		return nil
	}
}

// WithSummaryBudget bounds the chapter text, in tokens, sent for summarization.
func WithSummaryBudget(n int) HandlerOption {
	return func(h *Handlers) error {
		if n < 1 {
			return fmt.Errorf("summary budget must be positive, got %d", n)
		}
		h.summaryBudget = n
		return nil
	}
}

// NewHandlers creates the job handlers over repos and provider.
func NewHandlers(repos Repositories, provider ai.AIProvider, opts ...HandlerOption) (*Handlers, error) {
	if repos.Documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if repos.Chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if repos.Vectors == nil || repos.Lexical == nil {
		return nil, ErrIndexRequired
	}
	if repos.Concepts == nil {
		return nil, ErrConceptRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	h := &Handlers{
		documents:        repos.Documents,
		chunks:           repos.Chunks,
		vectors:          repos.Vectors,
		lexical:          repos.Lexical,
		concepts:         repos.Concepts,
		provider:         provider,
		chunker:          NewChunker(DefaultChunkTokens, DefaultOverlapTokens),
		batchSize:        DefaultEmbedBatchSize,
		summaryBudget:    DefaultSummaryBudget,
		conceptBudget:    DefaultConceptBudget,
		metadataBudget:   DefaultMetadataBudget,
		documentConcepts: DefaultDocumentConcepts,
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Map returns the handlers keyed by the job type they execute.
func (h *Handlers) Map() map[core.JobType]scheduler.Handler {
	return map[core.JobType]scheduler.Handler{
		core.JobTypeEmbed:           scheduler.HandlerFunc(h.Embed),
		core.JobTypeSummarize:       scheduler.HandlerFunc(h.Summarize),
		core.JobTypeExtractConcepts: scheduler.HandlerFunc(h.ExtractConcepts),
		core.JobTypeExtractMetadata: scheduler.HandlerFunc(h.ExtractMetadata),
		core.JobTypeConsolidate:     scheduler.HandlerFunc(h.Consolidate),
	}
}

// Embed chunks a chapter, indexes the chunks lexically and stores their
// vectors. Chunks from an earlier run of the same chapter are replaced.
func (h *Handlers) Embed(ctx context.Context, task *scheduler.Task) error {
	job := task.Job
	chapter, err := h.chapter(ctx, job)
	if err != nil {
		return err
	}

	scope := core.ChapterScope(job.DocumentId, job.ChapterId)
	stale, err := h.chunks.DeleteChunks(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to delete stale chunks: %w", err)
	}
	if err := h.lexical.Remove(ctx, stale...); err != nil {
		return fmt.Errorf("failed to remove stale postings: %w", err)
	}
	if err := h.vectors.DeleteScope(ctx, scope); err != nil {
		return fmt.Errorf("failed to delete stale vectors: %w", err)
	}

	pieces := h.chunker.Split(chapter)
	if len(pieces) == 0 {
		return fmt.Errorf("%w: chapter %d", ErrNoChunks, chapter.Id)
	}
	chunks, err := h.chunks.AddChunks(ctx, pieces...)
	if err != nil {
		return err
	}
	if err := h.lexical.Index(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}

	task.Logger.Debug("chapter chunked", "chapterId", chapter.Id, "chunks", len(chunks))
	task.Progress("embed", 0, len(chunks))

	embedder := h.provider.Embedder()
	for start := 0; start < len(chunks); start += h.batchSize {
		end := min(start+h.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		if err := task.CheckCancelled(ctx); err != nil {
			return err
		}
		vectors, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if err := task.CheckCancelled(ctx); err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		entries := make([]*core.VectorEntry, len(batch))
		for i, chunk := range batch {
			entries[i] = &core.VectorEntry{
				ChunkId:    chunk.Id,
				DocumentId: chunk.DocumentId,
				ChapterId:  chunk.ChapterId,
				Vector:     vectors[i],
			}
		}
		if err := h.vectors.Upsert(ctx, entries...); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}
		task.Progress("embed", end, len(chunks))
	}
	return nil
}

// Summarize stores a short summary of the chapter's chunks on the chapter.
func (h *Handlers) Summarize(ctx context.Context, task *scheduler.Task) error {
	job := task.Job
	chunks, err := h.chunks.GetChunksByChapter(ctx, job.ChapterId)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: chapter %d", ErrNoChunks, job.ChapterId)
	}

	var sb strings.Builder
	used := 0
	for _, chunk := range chunks {
		if used > 0 && used+chunk.TokenCount > h.summaryBudget {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunk.Content)
		used += chunk.TokenCount
	}

	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}
	summary, err := h.provider.Generator().GenerateText(ctx, summarySystemPrompt,
		truncateTokens(sb.String(), h.summaryBudget), nil)
	if err != nil {
		return fmt.Errorf("failed to summarize chapter: %w", err)
	}
	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}

	_, err = h.documents.UpdateChapter(ctx, job.ChapterId, func(chapter *core.Chapter) error {
		chapter.Summary = strings.TrimSpace(summary)
		return nil
	})
	return err
}

// ExtractConcepts extracts the chapter's concepts, stores any new ones with
// an embedding of their "(type,name)" tuple and records references on the
// chapter.
func (h *Handlers) ExtractConcepts(ctx context.Context, task *scheduler.Task) error {
	job := task.Job
	count, err := h.chunks.CountChunks(ctx, core.ChapterScope(job.DocumentId, job.ChapterId))
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: chapter %d", ErrNoChunks, job.ChapterId)
	}
	chapter, err := h.chapter(ctx, job)
	if err != nil {
		return err
	}

	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}
	extracted, err := h.provider.ConceptExtractor().ExtractConcepts(ctx,
		truncateTokens(chapter.Content, h.conceptBudget))
	if err != nil {
		return fmt.Errorf("failed to extract concepts: %w", err)
	}
	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}

	refs := []core.ConceptRef{}
	if len(extracted) > 0 {
		tuples := make([]string, len(extracted))
		for i, ec := range extracted {
			tuples[i] = (&core.Concept{Name: ec.Name, Type: ec.Type}).Tuple()
		}
		vectors, err := h.provider.Embedder().EmbedTexts(ctx, tuples)
		if err != nil {
			return fmt.Errorf("failed to embed concepts: %w", err)
		}
		if len(vectors) != len(extracted) {
			return fmt.Errorf("embedder returned %d vectors for %d concepts", len(vectors), len(extracted))
		}

		seen := make(map[core.ID]int, len(extracted))
		for i, ec := range extracted {
			concept, err := h.concepts.GetOrCreateConcept(ctx, ec.Name, ec.Type, vectors[i])
			if err != nil {
				return fmt.Errorf("failed to store concept %q: %w", ec.Name, err)
			}
			if idx, ok := seen[concept.Id]; ok {
				refs[idx].Importance = max(refs[idx].Importance, ec.Importance)
				continue
			}
			seen[concept.Id] = len(refs)
			refs = append(refs, core.ConceptRef{ConceptId: concept.Id, Importance: ec.Importance})
		}
	}

	task.Logger.Debug("chapter concepts extracted", "chapterId", job.ChapterId, "concepts", len(refs))
	_, err = h.documents.UpdateChapter(ctx, job.ChapterId, func(chapter *core.Chapter) error {
		chapter.Concepts = refs
		return nil
	})
	return err
}

type documentMetadata struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// ExtractMetadata derives title, author, summary and keywords from the
// opening chapters of a document.
func (h *Handlers) ExtractMetadata(ctx context.Context, task *scheduler.Task) error {
	job := task.Job
	chapters, err := h.documents.GetChapters(ctx, job.DocumentId)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return fmt.Errorf("%w: document %d has no chapters", core.ErrMissingPrecondition, job.DocumentId)
	}

	var sb strings.Builder
	for _, chapter := range chapters {
		if tokens.Estimate(sb.String()) >= h.metadataBudget {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chapter.Content)
	}

	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}
	var meta documentMetadata
	err = h.provider.Generator().GenerateJSON(ctx, metadataSystemPrompt,
		truncateTokens(sb.String(), h.metadataBudget), &meta)
	if err != nil {
		return fmt.Errorf("failed to extract metadata: %w", err)
	}
	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}

	keywords := make([]string, 0, len(meta.Keywords))
	for _, kw := range meta.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && !slices.Contains(keywords, kw) {
			keywords = append(keywords, kw)
		}
	}

	_, err = h.documents.UpdateDocument(ctx, job.DocumentId, func(document *core.Document) error {
		document.Metadata = core.DocumentMetadata{
			Title:    strings.TrimSpace(meta.Title),
			Author:   strings.TrimSpace(meta.Author),
			Summary:  strings.TrimSpace(meta.Summary),
			Keywords: keywords,
		}
		return nil
	})
	return err
}

// Consolidate ranks the document's concepts by their summed chapter
// importance and keeps the top entries on the document.
func (h *Handlers) Consolidate(ctx context.Context, task *scheduler.Task) error {
	job := task.Job
	chapters, err := h.documents.GetChapters(ctx, job.DocumentId)
	if err != nil {
		return err
	}
	if err := task.CheckCancelled(ctx); err != nil {
		return err
	}

	totals := consolidateConcepts(chapters, h.documentConcepts)
	task.Logger.Debug("document concepts consolidated", "documentId", job.DocumentId, "concepts", len(totals))

	_, err = h.documents.UpdateDocument(ctx, job.DocumentId, func(document *core.Document) error {
		document.Concepts = totals
		return nil
	})
	return err
}

// consolidateConcepts sums importance per concept across chapters and
// returns the top limit, highest first with first appearance breaking ties.
func consolidateConcepts(chapters []*core.Chapter, limit int) []core.ConceptRef {
	index := make(map[core.ID]int)
	totals := []core.ConceptRef{}
	for _, chapter := range chapters {
		for _, ref := range chapter.Concepts {
			if i, ok := index[ref.ConceptId]; ok {
				totals[i].Importance += ref.Importance
				continue
			}
			index[ref.ConceptId] = len(totals)
			totals = append(totals, ref)
		}
	}

	slices.SortStableFunc(totals, func(a, b core.ConceptRef) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals
}

func (h *Handlers) chapter(ctx context.Context, job *core.Job) (*core.Chapter, error) {
	chapter, err := h.documents.GetChapter(ctx, job.ChapterId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: chapter %d: %w", core.ErrMissingPrecondition, job.ChapterId, err)
		}
		return nil, err
	}
	return chapter, nil
}

// truncateTokens cuts text to roughly budget tokens on a rune boundary.
func truncateTokens(text string, budget int) string {
	limit := budget * tokens.CharsPerToken
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
