package retrieval

import (
	"math/rand"
	"testing"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fusedIDs(fused []Fused) []core.ID {
	out := make([]core.ID, len(fused))
	for i, f := range fused {
		out[i] = f.Id
	}
	return out
}

func TestFuse_WorkedExample(t *testing.T) {
	fused := Fuse(DefaultRRFConstant, []core.ID{5, 2, 9}, []core.ID{2, 5, 1})

	require.Equal(t, []core.ID{5, 2, 9, 1}, fusedIDs(fused))
	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-12)
	assert.Equal(t, fused[0].Score, fused[1].Score)
	assert.InDelta(t, 1.0/63, fused[2].Score, 1e-12)
	assert.InDelta(t, 1.0/63, fused[3].Score, 1e-12)
}

func TestFuse_SingleList(t *testing.T) {
	fused := Fuse(60, []core.ID{3, 1, 2}, nil)
	assert.Equal(t, []core.ID{3, 1, 2}, fusedIDs(fused))
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, Fuse(60, nil, nil))
}

func TestFuse_RankMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		perm := rng.Perm(40)
		vector := make([]core.ID, 20)
		for i := range vector {
			vector[i] = core.ID(perm[i] + 1)
		}
		lexical := make([]core.ID, 0, 20)
		for _, p := range rng.Perm(40)[:20] {
			lexical = append(lexical, core.ID(p+1))
		}

		inLexical := make(map[core.ID]bool)
		for _, id := range lexical {
			inLexical[id] = true
		}
		scores := make(map[core.ID]float64)
		for _, f := range Fuse(60, vector, lexical) {
			scores[f.Id] = f.Score
		}

		for a := 0; a < len(vector); a++ {
			for b := a + 1; b < len(vector); b++ {
				idA, idB := vector[a], vector[b]
				if inLexical[idA] || inLexical[idB] {
					continue
				}
				assert.GreaterOrEqual(t, scores[idA], scores[idB])
			}
		}
	}
}

func TestConfident(t *testing.T) {
	tests := []struct {
		name     string
		fused    []Fused
		expected bool
	}{
		{name: "empty", fused: nil, expected: true},
		{name: "single", fused: []Fused{{Id: 1, Score: 0.01}}, expected: true},
		{name: "top in both lists", fused: []Fused{{Id: 1, Score: 2.0 / 61}, {Id: 2, Score: 2.0 / 62}}, expected: true},
		{name: "first and second in each list", fused: []Fused{{Id: 1, Score: 1.0/61 + 1.0/62}, {Id: 2, Score: 1.0/62 + 1.0/61}}, expected: false},
		{name: "clear gap", fused: []Fused{{Id: 1, Score: 0.03}, {Id: 2, Score: 0.01}}, expected: true},
		{name: "close race", fused: []Fused{{Id: 1, Score: 1.0 / 61}, {Id: 2, Score: 1.0 / 62}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, confident(tt.fused, DefaultHighConfidence, DefaultGapRatio))
		})
	}
}

func TestApplyOrder(t *testing.T) {
	ranked := []core.RankedChunk{{Id: 10}, {Id: 20}, {Id: 30}}

	reordered, err := applyOrder(ranked, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{30, 10, 20}, ids(reordered))

	_, err = applyOrder(ranked, []int{3})
	assert.ErrorIs(t, err, ErrInvalidRerank)

	_, err = applyOrder(ranked, []int{1, 1})
	assert.ErrorIs(t, err, ErrInvalidRerank)

	_, err = applyOrder(ranked, nil)
	assert.ErrorIs(t, err, ErrInvalidRerank)
}
