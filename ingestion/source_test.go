package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTextSource_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "field_notes-2024.md",
		"# Tides\r\nThe moon pulls.\f# Currents\nWater moves.\n")

	doc, err := TextSource{}.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "field notes 2024", doc.Title)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "# Tides\nThe moon pulls.", doc.Pages[0])
	assert.Equal(t, []OutlineEntry{
		{Title: "Tides", Level: 1, Page: 1},
		{Title: "Currents", Level: 1, Page: 2},
	}, doc.Outline)
}

func TestTextSource_MissingFile(t *testing.T) {
	_, err := TextSource{}.Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTextOutline(t *testing.T) {
	tests := []struct {
		name     string
		pages    []string
		expected []string
	}{
		{
			name:     "single title falls back to sections",
			pages:    []string{"# Book\n## One\ntext\n## Two\ntext"},
			expected: []string{"One", "Two"},
		},
		{
			name:     "single title without sections",
			pages:    []string{"# Book\ntext"},
			expected: []string{"Book"},
		},
		{
			name:     "chapter lines",
			pages:    []string{"Chapter 1: Beginnings\ntext", "CHAPTER IV\ntext"},
			expected: []string{"Chapter 1: Beginnings", "CHAPTER IV"},
		},
		{
			name:     "no structure",
			pages:    []string{"just some text"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var titles []string
			for _, entry := range textOutline(tt.pages) {
				titles = append(titles, entry.Title)
			}
			assert.Equal(t, tt.expected, titles)
		})
	}
}

func TestSourceDocument_TextLength(t *testing.T) {
	doc := &SourceDocument{Pages: []string{"a b\n", "\tc\f"}}
	assert.Equal(t, 3, doc.TextLength())
}

func TestIdentityResolver(t *testing.T) {
	doc := &SourceDocument{
		Pages:   []string{"a", "b", "c"},
		Outline: []OutlineEntry{{Title: "A", Page: 1}, {Title: "C", Page: 9}, {Title: "Z", Page: 0}},
	}
	assert.Equal(t, []Position{{Page: 0}, {Page: 2}, {Page: 0}}, IdentityResolver{}.Resolve(doc))
}

func TestHeadingSearchResolver(t *testing.T) {
	t.Run("finds headings regardless of declared page", func(t *testing.T) {
		doc := &SourceDocument{
			Pages: []string{"Preface text\n# One\nbody", "more\n# Two\nbody"},
			Outline: []OutlineEntry{
				{Title: "One", Page: 1},
				{Title: "Two", Page: 1},
			},
		}
		assert.Equal(t, []Position{{Page: 0, Offset: 13}, {Page: 1, Offset: 5}}, HeadingSearchResolver{}.Resolve(doc))
	})

	t.Run("repeated titles resolve in order", func(t *testing.T) {
		doc := &SourceDocument{
			Pages:   []string{"# Notes\nx\n# Notes\ny"},
			Outline: []OutlineEntry{{Title: "Notes", Page: 1}, {Title: "Notes", Page: 1}},
		}
		assert.Equal(t, []Position{{Page: 0, Offset: 0}, {Page: 0, Offset: 10}}, HeadingSearchResolver{}.Resolve(doc))
	})

	t.Run("missing heading falls back to declared page", func(t *testing.T) {
		doc := &SourceDocument{
			Pages:   []string{"# One\nbody", "page two", "page three"},
			Outline: []OutlineEntry{{Title: "One", Page: 1}, {Title: "Gone", Page: 3}},
		}
		assert.Equal(t, []Position{{Page: 0}, {Page: 2}}, HeadingSearchResolver{}.Resolve(doc))
	})

	t.Run("missing heading never moves backwards", func(t *testing.T) {
		doc := &SourceDocument{
			Pages:   []string{"intro", "x\n# Two\nbody"},
			Outline: []OutlineEntry{{Title: "Two", Page: 1}, {Title: "Gone", Page: 1}},
		}
		assert.Equal(t, []Position{{Page: 1, Offset: 2}, {Page: 1, Offset: 2}}, HeadingSearchResolver{}.Resolve(doc))
	})
}
