package search

import "sort"

// rrfK is the standard Reciprocal Rank Fusion constant.
const rrfK = 60

// minMaxNormalize rescales a score map to [0, 1]. A constant list maps to 1.
func minMaxNormalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return scores
	}

	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make(map[string]float64, len(scores))
	span := max - min
	for id, s := range scores {
		if span == 0 {
			out[id] = 1
			continue
		}
		out[id] = (s - min) / span
	}
	return out
}

// weightedMerge fuses two normalized score maps by id. An id present in only
// one list contributes only that list's weighted term.
func weightedMerge(vectorScores, keywordScores map[string]float64, vectorWeight, keywordWeight float64) map[string]float64 {
	merged := make(map[string]float64)
	for id, s := range vectorScores {
		merged[id] += s * vectorWeight
	}
	for id, s := range keywordScores {
		merged[id] += s * keywordWeight
	}
	return merged
}

// rrfScores computes Reciprocal Rank Fusion over ranked lists with 1-based
// ranks: an item ranked first in both of two lists scores exactly 2/(k+1).
func rrfScores(lists ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for i, id := range list {
			scores[id] += 1.0 / float64(rrfK+i+1)
		}
	}
	return scores
}

// bordaScores computes Borda counts over ranked lists with 1-based ranks:
// the top item of a list of n votes n-1.
func bordaScores(lists ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		n := len(list)
		for i, id := range list {
			scores[id] += float64(n - (i + 1))
		}
	}
	return scores
}

// fuseRanks merges RRF and Borda by id. Each method's scores are min-max
// normalized first, then summed; sum (rather than max) keeps agreement
// between the two methods rewarded.
func fuseRanks(lists ...[]string) map[string]float64 {
	rrf := minMaxNormalize(rrfScores(lists...))
	borda := minMaxNormalize(bordaScores(lists...))

	merged := make(map[string]float64)
	for id, s := range rrf {
		merged[id] += s
	}
	for id, s := range borda {
		merged[id] += s
	}
	return merged
}

// sortByScore returns ids ordered by descending score, ties broken by id so
// results are deterministic.
func sortByScore(scores map[string]float64) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
