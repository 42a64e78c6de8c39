package vector

import (
	"fmt"
	"sort"
)

// Search ranks corpus against query. Entries scoring below threshold are
// dropped, the rest are ordered by descending score with ties kept in corpus
// order, and the first topK are returned with 1-based ranks.
//
// Every vector is validated before ranking, so a single malformed record
// fails the whole search instead of being skipped.
func Search(query []float64, corpus []Record, topK int, threshold float64) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}

	scored := make([]Match, 0, len(corpus))
	for _, rec := range corpus {
		dist, err := CosineDistance(query, rec.Vector)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", rec.ID, err)
		}
		score := 1 - dist
		if score < threshold {
			continue
		}
		scored = append(scored, Match{ID: rec.ID, Name: rec.Name, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}
