package tokens

import (
	"log/slog"
	"unicode/utf8"

	"github.com/dgraph-io/ristretto/v2"
)

// CharsPerToken is the average character count the estimator assumes per token.
const CharsPerToken = 4

const (
	defaultMaxEntries = 100_000
	// ristretto wants roughly ten admission counters per cached entry.
	countersPerEntry  = 10
)

// Estimate returns ceil(runes/CharsPerToken). Empty text is zero tokens.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Estimator approximates token counts and caches them by caller-supplied key.
// It is safe for concurrent use.
type Estimator struct {
	cache  *ristretto.Cache[string, int]
	logger *slog.Logger
}

// Option configures an Estimator.
type Option func(*estimatorConfig) error

type estimatorConfig struct {
	maxEntries int64
	logger     *slog.Logger
}

// WithMaxEntries bounds the number of cached counts.
func WithMaxEntries(n int64) Option {
	return func(c *estimatorConfig) error {
		if n < 1 {
			return ErrInvalidCacheSize
		}
		c.maxEntries = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *estimatorConfig) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewEstimator creates an estimator backed by a ristretto cache.
func NewEstimator(opts ...Option) (*Estimator, error) {
	cfg := &estimatorConfig{
		maxEntries: defaultMaxEntries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, int]{
		NumCounters:        cfg.maxEntries * countersPerEntry,
		MaxCost:            cfg.maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &Estimator{
		cache:  cache,
		logger: cfg.logger.With("component", "token-estimator"),
	}, nil
}

// Estimate returns the token estimate for text without caching.
func (e *Estimator) Estimate(text string) int {
	return Estimate(text)
}

// EstimateKey returns the token estimate for text, caching it under key.
// Keys must identify immutable text, such as a chunk or message ID.
func (e *Estimator) EstimateKey(key, text string) int {
	if count, ok := e.cache.Get(key); ok {
		return count
	}
	count := Estimate(text)
	e.cache.Set(key, count, 1)
	return count
}

// Wait blocks until pending cache writes are applied.
func (e *Estimator) Wait() {
	e.cache.Wait()
}

// Close releases the cache.
func (e *Estimator) Close() {
	e.logger.Debug("closing token estimator")
	e.cache.Close()
}
