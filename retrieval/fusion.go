package retrieval

import (
	"cmp"
	"slices"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// DefaultRRFConstant dampens the weight of top ranks in Fuse.
const DefaultRRFConstant = 60

// Fused is a candidate with its accumulated reciprocal rank score.
type Fused struct {
	Id    core.ID
	Score float64
}

// Fuse merges ranked id lists with Reciprocal Rank Fusion. Each list adds
// 1/(k+rank) to the ids it contains, with rank starting at 1. The result is
// sorted by score, highest first; equal scores keep the order in which ids
// first appear when the lists are read in argument order.
func Fuse(k int, lists ...[]core.ID) []Fused {
	index := make(map[core.ID]int)
	var fused []Fused
	for _, list := range lists {
		for rank, id := range list {
			score := 1.0 / float64(k+rank+1)
			if i, ok := index[id]; ok {
				fused[i].Score += score
				continue
			}
			index[id] = len(fused)
			fused = append(fused, Fused{Id: id, Score: score})
		}
	}

	slices.SortStableFunc(fused, func(a, b Fused) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return fused
}

// confident reports whether the fused ranking has a clear winner: the top
// score is above threshold, or it leads the runner-up by more than
// gapRatio of itself. Fewer than two candidates are always confident.
func confident(fused []Fused, threshold, gapRatio float64) bool {
	if len(fused) < 2 {
		return true
	}
	top, second := fused[0].Score, fused[1].Score
	return top > threshold || top-second > gapRatio*top
}
