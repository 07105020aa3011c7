package retrieval

import (
	"log/slog"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// Monitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate rankings.
type Monitor interface {
	Start(query string, scope core.Scope)
	AfterVectorSearch(ids []core.ID, err error)
	AfterLexicalSearch(ids []core.ID, err error)
	AfterFusion(fused []Fused)
	AfterRerank(order []core.ID, outcome string)
	Finish(chunks []core.RankedChunk)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ core.Scope)           {}
func (n *noopMonitor) AfterVectorSearch(_ []core.ID, _ error)  {}
func (n *noopMonitor) AfterLexicalSearch(_ []core.ID, _ error) {}
func (n *noopMonitor) AfterFusion(_ []Fused)                   {}
func (n *noopMonitor) AfterRerank(_ []core.ID, _ string)       {}
func (n *noopMonitor) Finish(_ []core.RankedChunk)             {}

// LogMonitor writes each retrieval stage to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

func (m *LogMonitor) Start(query string, scope core.Scope) {
	m.Logger.Debug("retrieval started", "query", query, "documentId", scope.DocumentId, "chapterId", scope.ChapterId)
}

func (m *LogMonitor) AfterVectorSearch(ids []core.ID, err error) {
	m.Logger.Debug("vector search", "ids", ids, "err", err)
}

func (m *LogMonitor) AfterLexicalSearch(ids []core.ID, err error) {
	m.Logger.Debug("lexical search", "ids", ids, "err", err)
}

func (m *LogMonitor) AfterFusion(fused []Fused) {
	m.Logger.Debug("fused ranking", "candidates", fused)
}

func (m *LogMonitor) AfterRerank(order []core.ID, outcome string) {
	m.Logger.Debug("rerank", "outcome", outcome, "order", order)
}

func (m *LogMonitor) Finish(chunks []core.RankedChunk) {
	ids := make([]core.ID, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.Id
	}
	m.Logger.Debug("retrieval finished", "ids", ids)
}
