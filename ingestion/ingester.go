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
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

const (
	DefaultMinTextLength = 200
	DefaultWindowPages   = 10

	pageSeparator = "\n\n"
)

// Ingester stores documents and queues their processing jobs.
type Ingester struct {
	documents     storage.DocumentRepository
	jobs          storage.JobRepository
	sources       map[string]Source
	resolver      OffsetResolver
	minTextLength int
	windowPages   int
	logger        *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester) error

// WithSource registers a source for a file extension such as ".txt".
func WithSource(ext string, source Source) Option {
	return func(i *Ingester) error {
		i.sources[strings.ToLower(ext)] = source
		return nil
	}
}

// WithResolver sets the outline offset resolution strategy.
// Default is HeadingSearchResolver.
func WithResolver(resolver OffsetResolver) Option {
	return func(i *Ingester) error {
		if resolver == nil {
			resolver = IdentityResolver{}
		}
		i.resolver = resolver
		return nil
	}
}

// WithMinTextLength sets the minimum number of non-space characters a
// document needs to be ingested. Default is 200.
func WithMinTextLength(n int) Option {
	return func(i *Ingester) error {
		i.minTextLength = n
		return nil
	}
}

// WithWindowPages sets the chapter size used when a document has no outline.
// Default is 10 pages.
func WithWindowPages(n int) Option {
	return func(i *Ingester) error {
		if n < 1 {
			n = DefaultWindowPages
		}
		i.windowPages = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIngester creates an ingester that reads .txt and .md files by default.
func NewIngester(documents storage.DocumentRepository, jobs storage.JobRepository, opts ...Option) (*Ingester, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}

	i := &Ingester{
		documents: documents,
		jobs:      jobs,
		sources: map[string]Source{
			".txt": TextSource{},
			".md":  TextSource{},
		},
		resolver:      HeadingSearchResolver{},
		minTextLength: DefaultMinTextLength,
		windowPages:   DefaultWindowPages,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "ingester")
	return i, nil
}

// Supports reports whether a source is registered for the file's extension.
func (i *Ingester) Supports(path string) bool {
	_, ok := i.sources[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Ingest loads a file and stores it as a processing document with pending
// chapters and its job chain. Documents with too little text are rejected
// with ErrInsufficientText and nothing is stored.
func (i *Ingester) Ingest(ctx context.Context, path string) (*core.Document, error) {
	source, ok := i.sources[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	src, err := source.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if length := src.TextLength(); length < i.minTextLength {
		i.logger.Warn("rejecting document", "path", path, "textLength", length, "minimum", i.minTextLength)
		return nil, fmt.Errorf("%w: %d characters, need %d", ErrInsufficientText, length, i.minTextLength)
	}

	chapters := i.buildChapters(src)

	document, err := i.documents.AddDocument(ctx, &core.Document{
		Title:      src.Title,
		SourcePath: path,
		Status:     core.DocumentStatusProcessing,
		PageCount:  len(src.Pages),
	})
	if err != nil {
		return nil, err
	}

	if err := i.queue(ctx, document, chapters); err != nil {
		if delErr := i.documents.DeleteDocument(ctx, document.Id); delErr != nil {
			err = errors.Join(err, delErr)
		}
		if _, delErr := i.jobs.DeleteJobs(ctx, document.Id); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return nil, err
	}

	i.logger.Info("document ingested",
		"documentId", document.Id,
		"path", path,
		"pages", len(src.Pages),
		"chapters", len(chapters))
	return document, nil
}

func (i *Ingester) queue(ctx context.Context, document *core.Document, chapters []*core.Chapter) error {
	for _, chapter := range chapters {
		chapter.DocumentId = document.Id
		chapter.Status = core.ChapterStatusPending
	}
	stored, err := i.documents.AddChapters(ctx, chapters...)
	if err != nil {
		return err
	}

	jobs := make([]*core.Job, 0, len(stored)*3+2)
	for _, chapter := range stored {
		jobs = append(jobs, core.NewChapterJobs(document.Id, chapter.Id)...)
	}
	jobs = append(jobs, core.NewDocumentJobs(document.Id)...)
	_, err = i.jobs.AddJobs(ctx, jobs...)
	return err
}

// buildChapters cuts the document at its resolved outline positions, or
// into fixed page windows when it has no usable outline.
func (i *Ingester) buildChapters(src *SourceDocument) []*core.Chapter {
	text, pageStarts := joinPages(src.Pages)

	type cut struct {
		title  string
		offset int
	}
	var cuts []cut
	if len(src.Outline) > 0 {
		positions := i.resolver.Resolve(src)
		for idx, pos := range positions {
			page := clampPage(pos.Page, len(src.Pages))
			offset := pageStarts[page] + min(pos.Offset, len(src.Pages[page]))
			cuts = append(cuts, cut{title: src.Outline[idx].Title, offset: offset})
		}
		slices.SortStableFunc(cuts, func(a, b cut) int { return cmp.Compare(a.offset, b.offset) })
		cuts = slices.CompactFunc(cuts, func(a, b cut) bool { return a.offset == b.offset })
		if len(cuts) > 0 && cuts[0].offset > 0 && strings.TrimSpace(text[:cuts[0].offset]) != "" {
			cuts = append([]cut{{title: "Front Matter", offset: 0}}, cuts...)
		}
		if len(cuts) > 0 {
			cuts[0].offset = 0
		}
	}

	if len(cuts) == 0 {
		for page := 0; page < len(src.Pages); page += i.windowPages {
			last := min(page+i.windowPages, len(src.Pages))
			cuts = append(cuts, cut{
				title:  "Pages " + strconv.Itoa(page+1) + "-" + strconv.Itoa(last),
				offset: pageStarts[page],
			})
		}
	}

	var chapters []*core.Chapter
	for idx, c := range cuts {
		end := len(text)
		if idx+1 < len(cuts) {
			end = cuts[idx+1].offset
		}
		content := text[c.offset:end]
		if strings.TrimSpace(content) == "" {
			continue
		}
		first := pageIndexAt(pageStarts, c.offset)
		last := pageIndexAt(pageStarts, max(c.offset, end-1))

		offsets := make([]int, 0, last-first+1)
		for page := first; page <= last; page++ {
			offsets = append(offsets, max(0, pageStarts[page]-c.offset))
		}

		chapters = append(chapters, &core.Chapter{
			Index:       len(chapters),
			Title:       c.title,
			PageStart:   first + 1,
			PageEnd:     last + 1,
			Content:     content,
			PageOffsets: offsets,
		})
	}
	return chapters
}

// joinPages concatenates pages and returns the byte offset of each page.
func joinPages(pages []string) (string, []int) {
	var sb strings.Builder
	starts := make([]int, len(pages))
	for i, page := range pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
		}
		starts[i] = sb.Len()
		sb.WriteString(page)
	}
	return sb.String(), starts
}

// pageIndexAt returns the index of the page containing offset.
func pageIndexAt(starts []int, offset int) int {
	idx, found := slices.BinarySearch(starts, offset)
	if found {
		return idx
	}
	return max(idx-1, 0)
}
