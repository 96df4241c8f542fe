package search

import "github.com/obig20/docorganizer/internal/index/vector"

// similarities converts raw squared-Euclidean distances into bounded scores
// in [0,1] via 1 - distance/max_distance. The normalization is batch-relative:
// the max is taken over the current result batch, so threshold semantics hold
// only within one query, never across queries. An all-zero batch means every
// hit is an exact match and scores as maximal similarity.
func similarities(hits []vector.Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}

	var maxDist float64
	for _, h := range hits {
		if h.Distance > maxDist {
			maxDist = h.Distance
		}
	}

	sims := make([]float64, len(hits))
	if maxDist == 0 {
		for i := range sims {
			sims[i] = 1
		}
		return sims
	}

	for i, h := range hits {
		sims[i] = 1 - h.Distance/maxDist
	}
	return sims
}
