package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/metrics"
)

// rerankExcerptChars bounds how much of each candidate the reranker sees.
const rerankExcerptChars = 700

type rerankResponse struct {
	Order []int `json:"order"`
}

// rerank reorders candidates with the generator unless the fused ranking
// is already confident. Any failure keeps the fused order.
func (e *Engine) rerank(ctx context.Context, query string, ranked []core.RankedChunk, monitor Monitor) []core.RankedChunk {
	fused := make([]Fused, len(ranked))
	for i, chunk := range ranked {
		fused[i] = Fused{Id: chunk.Id, Score: chunk.Score}
	}
	if confident(fused, e.highConfidence, e.gapRatio) {
		e.metrics.Rerank(metrics.RerankSkipped)
		monitor.AfterRerank(ids(ranked), metrics.RerankSkipped)
		return ranked
	}

	start := time.Now()
	var response rerankResponse
	err := e.generator.GenerateJSON(ctx, rerankSystemPrompt, rerankPrompt(query, ranked), &response)
	e.metrics.ObserveStage("rerank", time.Since(start))
	if err == nil {
		var reordered []core.RankedChunk
		if reordered, err = applyOrder(ranked, response.Order); err == nil {
			e.metrics.Rerank(metrics.RerankApplied)
			monitor.AfterRerank(ids(reordered), metrics.RerankApplied)
			return reordered
		}
	}

	e.logger.Warn("rerank failed, keeping fused order", "err", err)
	e.metrics.Rerank(metrics.RerankFallback)
	monitor.AfterRerank(ids(ranked), metrics.RerankFallback)
	return ranked
}

// applyOrder arranges ranked by the given candidate indexes. Indexes may
// omit candidates, which keep their relative order after the listed ones.
// Out of range or repeated indexes reject the whole order.
func applyOrder(ranked []core.RankedChunk, order []int) ([]core.RankedChunk, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRerank)
	}

	used := make([]bool, len(ranked))
	result := make([]core.RankedChunk, 0, len(ranked))
	for _, idx := range order {
		if idx < 0 || idx >= len(ranked) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidRerank, idx)
		}
		if used[idx] {
			return nil, fmt.Errorf("%w: index %d repeated", ErrInvalidRerank, idx)
		}
		used[idx] = true
		result = append(result, ranked[idx])
	}
	for i, chunk := range ranked {
		if !used[i] {
			result = append(result, chunk)
		}
	}
	return result, nil
}

func rerankPrompt(query string, ranked []core.RankedChunk) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPassages:\n")
	for i, chunk := range ranked {
		sb.WriteString("[")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString("] ")
		sb.WriteString(excerpt(chunk.Content, rerankExcerptChars))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func ids(ranked []core.RankedChunk) []core.ID {
	out := make([]core.ID, len(ranked))
	for i, chunk := range ranked {
		out[i] = chunk.Id
	}
	return out
}
