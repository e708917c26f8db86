package service

import (
	"sort"

	"homecare/internal/domain"
)

// SelectTop sorts candidates and returns the first k: descending score,
// ties broken by ascending distance, then descending rating, then stable
// input order. k=1 is best-match mode; k>1 is multi-offer mode.
func SelectTop(candidates []domain.Candidate, k int) []domain.Candidate {
	if k <= 0 {
		k = 1
	}

	ranked := make([]domain.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		di, dj := rankDistance(ranked[i]), rankDistance(ranked[j])
		if di != dj {
			return di < dj
		}
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return false
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}

// rankDistance treats unknown distance (negative) as farthest so known
// distances win ties.
func rankDistance(c domain.Candidate) float64 {
	if c.DistanceKm < 0 {
		return 1e9
	}
	return c.DistanceKm
}
