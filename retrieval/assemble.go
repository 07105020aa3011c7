package retrieval

import (
	"strconv"
	"strings"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

const contextSeparator = "\n\n"

// assemble packs ranked chunks in order until the next one would exceed
// the token budget or the chunk cap is reached. It never skips ahead to a
// smaller chunk.
func (e *Engine) assemble(ranked []core.RankedChunk) *Context {
	result := &Context{}
	var blocks []string
	for _, chunk := range ranked {
		if len(result.Chunks) >= e.maxChunks {
			break
		}
		block := formatChunk(chunk)
		cost := e.estimator.EstimateKey("chunk:"+strconv.FormatUint(uint64(chunk.Id), 10), block+contextSeparator)
		if result.Tokens+cost > e.budget {
			break
		}
		result.Tokens += cost
		result.Chunks = append(result.Chunks, chunk)
		blocks = append(blocks, block)
	}
	result.Text = strings.Join(blocks, contextSeparator)
	return result
}

// formatChunk renders a chunk with its heading and page range.
func formatChunk(chunk core.RankedChunk) string {
	var sb strings.Builder
	sb.WriteString("[")
	if chunk.Heading != "" {
		sb.WriteString(chunk.Heading)
		sb.WriteString(", ")
	}
	if chunk.PageEnd > chunk.PageStart {
		sb.WriteString("pages ")
		sb.WriteString(strconv.Itoa(chunk.PageStart))
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(chunk.PageEnd))
	} else {
		sb.WriteString("page ")
		sb.WriteString(strconv.Itoa(chunk.PageStart))
	}
	sb.WriteString("]\n")
	sb.WriteString(chunk.Content)
	return sb.String()
}
