package retrieval

import "context"

type guardrailResponse struct {
	OnTopic *bool  `json:"on_topic"`
	Reason  string `json:"reason"`
}

// admit classifies query as on or off topic. Classification errors and
// responses without a verdict admit the query.
func (e *Engine) admit(ctx context.Context, query string) bool {
	var response guardrailResponse
	if err := e.generator.GenerateJSON(ctx, guardrailSystemPrompt, query, &response); err != nil {
		e.logger.Warn("guardrail classification failed, admitting query", "err", err)
		return true
	}
	if response.OnTopic == nil {
		return true
	}
	if !*response.OnTopic {
		e.logger.Info("query refused", "reason", response.Reason)
	}
	return *response.OnTopic
}
