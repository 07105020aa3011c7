package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "short content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "concept tuple", content: "(place,paris)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}

	if IDFromContent("a") == IDFromContent("b") {
		t.Error("IDFromContent() produced the same ID for different content")
	}
}

func TestChapterPageAt(t *testing.T) {
	chapter := &Chapter{
		PageStart:   10,
		PageEnd:     12,
		PageOffsets: []int{0, 100, 250},
	}

	tests := []struct {
		offset int
		want   int
	}{
		{offset: 0, want: 10},
		{offset: 99, want: 10},
		{offset: 100, want: 11},
		{offset: 249, want: 11},
		{offset: 250, want: 12},
		{offset: 10000, want: 12},
	}

	for _, tt := range tests {
		if got := chapter.PageAt(tt.offset); got != tt.want {
			t.Errorf("PageAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestChapterPageAtWithoutOffsets(t *testing.T) {
	chapter := &Chapter{PageStart: 4}
	if got := chapter.PageAt(500); got != 4 {
		t.Errorf("PageAt() = %d, want 4", got)
	}
}

func TestJobTypePriority(t *testing.T) {
	if JobTypeEmbed.Priority() >= JobTypeSummarize.Priority() {
		t.Error("embed must be claimed before summarize")
	}
	if JobTypeSummarize.Priority() != JobTypeExtractConcepts.Priority() {
		t.Error("summarize and extract-concepts must share a tier")
	}
	if JobTypeExtractConcepts.Priority() >= JobTypeExtractMetadata.Priority() {
		t.Error("extract-concepts must be claimed before extract-metadata")
	}
	if JobTypeExtractMetadata.Priority() >= JobTypeConsolidate.Priority() {
		t.Error("extract-metadata must be claimed before consolidate")
	}
}

func TestJobTypeScopes(t *testing.T) {
	for _, jt := range AllJobTypes {
		documentScoped := jt == JobTypeExtractMetadata || jt == JobTypeConsolidate
		if jt.IsDocumentScoped() != documentScoped {
			t.Errorf("%s: IsDocumentScoped() = %v", jt, jt.IsDocumentScoped())
		}
	}
	if !JobTypeSummarize.DependsOnEmbed() || !JobTypeExtractConcepts.DependsOnEmbed() {
		t.Error("summarize and extract-concepts read embed output")
	}
	if JobTypeEmbed.DependsOnEmbed() || JobTypeConsolidate.DependsOnEmbed() {
		t.Error("only chapter enrichment jobs depend on embed")
	}
}

func TestNewJobChains(t *testing.T) {
	chapterJobs := NewChapterJobs(1, 2)
	if len(chapterJobs) != 3 {
		t.Fatalf("expected 3 chapter jobs, got %d", len(chapterJobs))
	}
	for _, job := range chapterJobs {
		if err := ValidateJob(job); err != nil {
			t.Errorf("chapter job %s invalid: %v", job.Type, err)
		}
	}

	documentJobs := NewDocumentJobs(1)
	if len(documentJobs) != 2 {
		t.Fatalf("expected 2 document jobs, got %d", len(documentJobs))
	}
	for _, job := range documentJobs {
		if err := ValidateJob(job); err != nil {
			t.Errorf("document job %s invalid: %v", job.Type, err)
		}
	}
}
