package tokens

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{name: "empty", text: "", expected: 0},
		{name: "one rune", text: "a", expected: 1},
		{name: "exact multiple", text: "abcdefgh", expected: 2},
		{name: "rounds up", text: "abcdefghi", expected: 3},
		{name: "counts runes not bytes", text: "ééééé", expected: 2},
		{name: "long", text: strings.Repeat("x", 4000), expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Estimate(tt.text))
		})
	}
}

func TestEstimator_EstimateKey(t *testing.T) {
	e, err := NewEstimator()
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 3, e.EstimateKey("chunk:1", "abcdefghi"))
	e.Wait()

	// Cached value wins for the same key.
	assert.Equal(t, 3, e.EstimateKey("chunk:1", "ignored"))
	assert.Equal(t, 1, e.EstimateKey("chunk:2", "abc"))
}

func TestEstimator_Concurrent(t *testing.T) {
	e, err := NewEstimator(WithMaxEntries(16))
	require.NoError(t, err)
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, 2, e.EstimateKey("shared", "abcdefgh"))
			}
		}()
	}
	wg.Wait()
}

func TestNewEstimator_InvalidSize(t *testing.T) {
	_, err := NewEstimator(WithMaxEntries(0))
	assert.ErrorIs(t, err, ErrInvalidCacheSize)
}

func TestNewEstimator_SingleEntryCache(t *testing.T) {
	e, err := NewEstimator(WithMaxEntries(1))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 1, e.EstimateKey("only", "abcd"))
	e.Wait()
	assert.Equal(t, 1, e.EstimateKey("only", "abcd"))
	assert.Equal(t, 2, e.EstimateKey("other", "abcde"))
}
