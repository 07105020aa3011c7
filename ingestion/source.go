package ingestion

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// OutlineEntry is one structural heading of a source document.
type OutlineEntry struct {
	Title string
	Level int
	Page  int // Declared page, 1-based
}

// SourceDocument is the extracted text and structure of a file.
type SourceDocument struct {
	Title   string
	Pages   []string
	Outline []OutlineEntry
}

// TextLength returns the number of non-space runes across all pages.
func (d *SourceDocument) TextLength() int {
	n := 0
	for _, page := range d.Pages {
		for _, r := range page {
			if r != ' ' && r != '\n' && r != '\t' && r != '\r' && r != '\f' {
				n++
			}
		}
	}
	return n
}

// Source extracts pages and outline from a file.
type Source interface {
	Load(ctx context.Context, path string) (*SourceDocument, error)
}

var (
	markdownHeading = regexp.MustCompile(`^(#{1,2})\s+(.+?)\s*#*\s*$`)
	chapterLine     = regexp.MustCompile(`(?i)^\s*chapter\s+(\d+|[ivxlcdm]+)\b.*$`)
)

// TextSource reads plain text and markdown files. Form feeds separate
// pages. The outline comes from level-one markdown headings, falling back
// to level-two headings and then to "Chapter N" lines.
type TextSource struct{}

var _ Source = TextSource{}

func (TextSource) Load(ctx context.Context, path string) (*SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(text, "\f")

	return &SourceDocument{
		Title:   titleFromPath(path),
		Pages:   pages,
		Outline: textOutline(pages),
	}, nil
}

func textOutline(pages []string) []OutlineEntry {
	byLevel := map[int][]OutlineEntry{}
	var chapters []OutlineEntry

	for i, page := range pages {
		scanner := bufio.NewScanner(strings.NewReader(page))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if m := markdownHeading.FindStringSubmatch(line); m != nil {
				level := len(m[1])
				byLevel[level] = append(byLevel[level], OutlineEntry{Title: m[2], Level: level, Page: i + 1})
				continue
			}
			if chapterLine.MatchString(line) {
				chapters = append(chapters, OutlineEntry{Title: strings.TrimSpace(line), Level: 1, Page: i + 1})
			}
		}
	}

	switch {
	case len(byLevel[1]) > 1:
		return byLevel[1]
	case len(byLevel[2]) > 0:
		return byLevel[2]
	case len(byLevel[1]) == 1:
		return byLevel[1]
	default:
		return chapters
	}
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
