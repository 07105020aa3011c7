package ingestion

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/tokens"
)

const (
	DefaultChunkTokens   = 400
	DefaultOverlapTokens = 50
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)
	sentence       = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*`)
	headingLine    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t#]*$`)
)

// Chunker splits chapter text into overlapping chunks of roughly
// targetTokens. It cuts at paragraph boundaries, then sentence boundaries,
// and only splits inside a sentence that alone exceeds the target.
type Chunker struct {
	targetTokens  int
	overlapTokens int
}

// NewChunker creates a chunker. Non-positive values select the defaults,
// and overlap is kept below half the target.
func NewChunker(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	if overlapTokens >= targetTokens/2 {
		overlapTokens = targetTokens / 4
	}
	return &Chunker{targetTokens: targetTokens, overlapTokens: overlapTokens}
}

// span is a byte range of the chapter content.
type span struct {
	start, end int
}

// Split returns the chunks of a chapter in reading order.
func (c *Chunker) Split(chapter *core.Chapter) []*core.Chunk {
	content := chapter.Content
	segments := c.segments(content)
	if len(segments) == 0 {
		return nil
	}

	headings := headingLine.FindAllStringSubmatchIndex(content, -1)
	cost := make([]int, len(segments))
	for i, s := range segments {
		cost[i] = tokens.Estimate(content[s.start:s.end])
	}

	var chunks []*core.Chunk
	for i := 0; i < len(segments); {
		j, total := i, 0
		for j < len(segments) && (j == i || total+cost[j] <= c.targetTokens) {
			total += cost[j]
			j++
		}

		start, end := segments[i].start, segments[j-1].end
		text := content[start:end]
		chunks = append(chunks, &core.Chunk{
			DocumentId: chapter.DocumentId,
			ChapterId:  chapter.Id,
			Index:      len(chunks),
			Content:    text,
			Heading:    headingAt(content, headings, start, chapter.Title),
			PageStart:  chapter.PageAt(start),
			PageEnd:    chapter.PageAt(end - 1),
			TokenCount: tokens.Estimate(text),
		})

		if j == len(segments) {
			break
		}

		// Step back over trailing segments that fit in the overlap, always
		// advancing by at least one segment.
		next, back := j, 0
		for k := j - 1; k > i; k-- {
			if back+cost[k] > c.overlapTokens {
				break
			}
			back += cost[k]
			next = k
		}
		i = next
	}
	return chunks
}

// segments splits text into trimmed paragraph, sentence or window spans
// no larger than the target where possible.
func (c *Chunker) segments(text string) []span {
	var out []span
	prev := 0
	breaks := paragraphBreak.FindAllStringIndex(text, -1)
	breaks = append(breaks, []int{len(text), len(text)})

	for _, b := range breaks {
		para, ok := trimSpan(text, span{prev, b[0]})
		prev = b[1]
		if !ok {
			continue
		}
		if tokens.Estimate(text[para.start:para.end]) <= c.targetTokens {
			out = append(out, para)
			continue
		}
		out = append(out, c.splitParagraph(text, para)...)
	}
	return out
}

func (c *Chunker) splitParagraph(text string, para span) []span {
	var out []span
	body := text[para.start:para.end]
	cursor := 0

	emit := func(s span) {
		s, ok := trimSpan(text, s)
		if !ok {
			return
		}
		if tokens.Estimate(text[s.start:s.end]) <= c.targetTokens {
			out = append(out, s)
			return
		}
		out = append(out, c.window(text, s)...)
	}

	for _, m := range sentence.FindAllStringIndex(body, -1) {
		emit(span{para.start + cursor, para.start + m[1]})
		cursor = m[1]
	}
	if cursor < len(body) {
		emit(span{para.start + cursor, para.end})
	}
	return out
}

// window cuts an oversized span into target-sized pieces, preferring to
// break at whitespace and never splitting a rune.
func (c *Chunker) window(text string, s span) []span {
	maxBytes := c.targetTokens * tokens.CharsPerToken
	var out []span
	for start := s.start; start < s.end; {
		end := start + maxBytes
		if end >= s.end {
			end = s.end
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if cut := strings.LastIndexFunc(text[start:end], unicode.IsSpace); cut > 0 {
				end = start + cut
			}
		}
		if piece, ok := trimSpan(text, span{start, end}); ok {
			out = append(out, piece)
		}
		start = end
	}
	return out
}

func trimSpan(text string, s span) (span, bool) {
	for s.start < s.end {
		r, size := utf8.DecodeRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.start += size
	}
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s, s.end > s.start
}

// headingAt returns the last heading starting at or before offset.
func headingAt(content string, headings [][]int, offset int, fallback string) string {
	heading := fallback
	for _, h := range headings {
		if h[0] > offset {
			break
		}
		heading = strings.TrimSpace(content[h[2]:h[3]])
	}
	return heading
}
