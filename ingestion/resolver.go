package ingestion

import "strings"

// Position locates the start of an outline entry in a source document.
type Position struct {
	Page   int // Physical page index, 0-based
	Offset int // Byte offset within the page
}

// OffsetResolver maps outline entries to physical positions. Returned
// positions correspond one to one with doc.Outline.
type OffsetResolver interface {
	Resolve(doc *SourceDocument) []Position
}

// IdentityResolver trusts declared outline pages as physical pages.
type IdentityResolver struct{}

var _ OffsetResolver = IdentityResolver{}

func (IdentityResolver) Resolve(doc *SourceDocument) []Position {
	positions := make([]Position, len(doc.Outline))
	for i, entry := range doc.Outline {
		positions[i] = Position{Page: clampPage(entry.Page-1, len(doc.Pages))}
	}
	return positions
}

// HeadingSearchResolver finds each heading's text in the pages, searching
// forward from the previous heading. A heading that cannot be found falls
// back to the start of its declared page, or to the previous heading's
// position when that page is not ahead of it.
type HeadingSearchResolver struct{}

var _ OffsetResolver = HeadingSearchResolver{}

func (HeadingSearchResolver) Resolve(doc *SourceDocument) []Position {
	positions := make([]Position, len(doc.Outline))
	last := Position{}
	cursor := Position{}

	for i, entry := range doc.Outline {
		if pos, next, ok := findHeading(doc.Pages, entry.Title, cursor); ok {
			positions[i] = pos
			last = pos
			cursor = Position{Page: pos.Page, Offset: next}
			continue
		}

		declared := Position{Page: clampPage(entry.Page-1, len(doc.Pages))}
		if declared.Page <= last.Page {
			declared = last
		} else {
			cursor = declared
		}
		positions[i] = declared
		last = declared
	}
	return positions
}

// findHeading returns the start of the line holding title at or after
// from, and the offset just past the title.
func findHeading(pages []string, title string, from Position) (Position, int, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Position{}, 0, false
	}

	for page := from.Page; page < len(pages); page++ {
		text := pages[page]
		start := 0
		if page == from.Page {
			start = min(from.Offset, len(text))
		}
		idx := strings.Index(text[start:], title)
		if idx < 0 {
			continue
		}
		offset := start + idx
		lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
		if lineStart < start {
			lineStart = offset
		}
		return Position{Page: page, Offset: lineStart}, offset + len(title), true
	}
	return Position{}, 0, false
}

func clampPage(page, pages int) int {
	if page < 0 {
		return 0
	}
	if pages > 0 && page >= pages {
		return pages - 1
	}
	return page
}
