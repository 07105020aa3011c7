package openai

import (
	"context"

	"github.com/pedrocostadev/ai-notebook-sub000/ai"
	"golang.org/x/time/rate"
)

// limiter throttles outgoing model requests. A nil limiter never blocks.
type limiter struct {
	rl *rate.Limiter
}

func newLimiter(config *ai.Config) *limiter {
	if config.RequestsPerSecond <= 0 {
		return nil
	}
	return &limiter{rl: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)}
}

// wait blocks until a request may be sent or ctx is done.
func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.rl.Wait(ctx)
}
