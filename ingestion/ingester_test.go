package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filler = strings.Repeat("The tide rises and falls with the moon. ", 8)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestIngester(t *testing.T, store *badger.Store, opts ...Option) *Ingester {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	ingester, err := NewIngester(store.Documents, store.Jobs, opts...)
	require.NoError(t, err)
	return ingester
}

func countJobTypes(jobs []*core.Job) map[core.JobType]int {
	counts := make(map[core.JobType]int)
	for _, job := range jobs {
		counts[job.Type]++
	}
	return counts
}

func TestNewIngester_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := NewIngester(nil, store.Jobs)
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewIngester(store.Documents, nil)
	assert.ErrorIs(t, err, ErrJobRepositoryRequired)
}

func TestIngester_Supports(t *testing.T) {
	ingester := newTestIngester(t, newTestStore(t))
	assert.True(t, ingester.Supports("/tmp/a.txt"))
	assert.True(t, ingester.Supports("/tmp/B.MD"))
	assert.False(t, ingester.Supports("/tmp/c.pdf"))
}

func TestIngester_IngestOutline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ingester := newTestIngester(t, store)

	path := writeFile(t, t.TempDir(), "book.md",
		"Preface words here.\n\n# One\n"+filler+"\f# Two\n"+filler)

	document, err := ingester.Ingest(ctx, path)
	require.NoError(t, err)
	assert.NotZero(t, document.Id)
	assert.Equal(t, "book", document.Title)
	assert.Equal(t, core.DocumentStatusProcessing, document.Status)
	assert.Equal(t, 2, document.PageCount)

	chapters, err := store.Documents.GetChapters(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	assert.Equal(t, "Front Matter", chapters[0].Title)
	assert.Equal(t, "Preface words here.\n\n", chapters[0].Content)

	assert.Equal(t, "One", chapters[1].Title)
	assert.True(t, strings.HasPrefix(chapters[1].Content, "# One\n"))
	assert.Equal(t, 1, chapters[1].PageStart)
	assert.Equal(t, 1, chapters[1].PageEnd)

	assert.Equal(t, "Two", chapters[2].Title)
	assert.Equal(t, "# Two\n"+filler, chapters[2].Content)
	assert.Equal(t, 2, chapters[2].PageStart)
	assert.Equal(t, 2, chapters[2].PageEnd)

	for i, chapter := range chapters {
		assert.Equal(t, i, chapter.Index)
		assert.Equal(t, core.ChapterStatusPending, chapter.Status)
	}

	jobs, err := store.Jobs.GetJobsByDocument(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, jobs, 11)
	assert.Equal(t, map[core.JobType]int{
		core.JobTypeEmbed:           3,
		core.JobTypeSummarize:       3,
		core.JobTypeExtractConcepts: 3,
		core.JobTypeExtractMetadata: 1,
		core.JobTypeConsolidate:     1,
	}, countJobTypes(jobs))
	for _, job := range jobs {
		assert.Equal(t, core.JobStatusPending, job.Status)
	}
}

func TestIngester_NoFrontMatterWhenHeadingLeads(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ingester := newTestIngester(t, store)

	path := writeFile(t, t.TempDir(), "notes.md", "\n# One\n"+filler+"\n# Two\n"+filler)

	document, err := ingester.Ingest(ctx, path)
	require.NoError(t, err)

	chapters, err := store.Documents.GetChapters(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "One", chapters[0].Title)
	assert.Equal(t, "Two", chapters[1].Title)
	assert.True(t, strings.HasPrefix(chapters[1].Content, "# Two\n"))
}

func TestIngester_PageWindows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ingester := newTestIngester(t, store)

	pages := make([]string, 25)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d says %s", i+1, filler)
	}
	path := writeFile(t, t.TempDir(), "plain.txt", strings.Join(pages, "\f"))

	document, err := ingester.Ingest(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 25, document.PageCount)

	chapters, err := store.Documents.GetChapters(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	expected := []struct {
		title      string
		start, end int
	}{
		{"Pages 1-10", 1, 10},
		{"Pages 11-20", 11, 20},
		{"Pages 21-25", 21, 25},
	}
	for i, want := range expected {
		assert.Equal(t, want.title, chapters[i].Title)
		assert.Equal(t, want.start, chapters[i].PageStart)
		assert.Equal(t, want.end, chapters[i].PageEnd)
	}

	first := chapters[0]
	require.Len(t, first.PageOffsets, 10)
	assert.Equal(t, 0, first.PageOffsets[0])
	assert.Equal(t, 3, first.PageAt(first.PageOffsets[2]))
	assert.True(t, strings.HasPrefix(first.Content[first.PageOffsets[2]:], "page 3 says"))
}

func TestIngester_WindowSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ingester := newTestIngester(t, store, WithWindowPages(2))

	path := writeFile(t, t.TempDir(), "plain.txt", strings.Join([]string{filler, filler, filler}, "\f"))

	document, err := ingester.Ingest(ctx, path)
	require.NoError(t, err)

	chapters, err := store.Documents.GetChapters(ctx, document.Id)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "Pages 3-3", chapters[1].Title)
}

func TestIngester_InsufficientText(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ingester := newTestIngester(t, store)

	path := writeFile(t, t.TempDir(), "short.txt", "Too short to be useful.")

	_, err := ingester.Ingest(ctx, path)
	assert.ErrorIs(t, err, ErrInsufficientText)
	assert.ErrorIs(t, err, core.ErrUnrecoverable)

	documents, err := store.Documents.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, documents)
}

func TestIngester_MinTextLength(t *testing.T) {
	store := newTestStore(t)
	ingester := newTestIngester(t, store, WithMinTextLength(5))

	path := writeFile(t, t.TempDir(), "short.txt", "Short but allowed.")

	document, err := ingester.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, document.PageCount)
}

func TestIngester_UnsupportedFormat(t *testing.T) {
	ingester := newTestIngester(t, newTestStore(t))
	path := writeFile(t, t.TempDir(), "scan.pdf", filler)

	_, err := ingester.Ingest(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
