package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRRFScores_TopOfBothLists(t *testing.T) {
	scores := rrfScores([]string{"a", "b"}, []string{"a", "c"})
	assert.InDelta(t, 2.0/61.0, scores["a"], 1e-9)
	assert.InDelta(t, 1.0/62.0, scores["b"], 1e-9)
	assert.InDelta(t, 1.0/62.0, scores["c"], 1e-9)
}

func TestRRFScores_RankOrderPreserved(t *testing.T) {
	scores := rrfScores([]string{"a", "b", "c"})
	assert.Greater(t, scores["a"], scores["b"])
	assert.Greater(t, scores["b"], scores["c"])
}

func TestBordaScores(t *testing.T) {
	scores := bordaScores([]string{"a", "b", "c"}, []string{"b", "a"})
	assert.Equal(t, 2.0, scores["a"])
	assert.Equal(t, 2.0, scores["b"])
	assert.Equal(t, 0.0, scores["c"])
}

func TestMinMaxNormalize(t *testing.T) {
	out := minMaxNormalize(map[string]float64{"a": 10, "b": 5, "c": 0})
	assert.Equal(t, 1.0, out["a"])
	assert.Equal(t, 0.5, out["b"])
	assert.Equal(t, 0.0, out["c"])
}

func TestMinMaxNormalize_ConstantList(t *testing.T) {
	out := minMaxNormalize(map[string]float64{"a": 3, "b": 3})
	assert.Equal(t, 1.0, out["a"])
	assert.Equal(t, 1.0, out["b"])
}

func TestWeightedMerge_SingleListIDs(t *testing.T) {
	merged := weightedMerge(
		map[string]float64{"both": 1.0, "vecOnly": 0.8},
		map[string]float64{"both": 1.0, "kwOnly": 0.9},
		0.7, 0.3,
	)
	assert.InDelta(t, 1.0, merged["both"], 1e-9)
	assert.InDelta(t, 0.56, merged["vecOnly"], 1e-9)
	assert.InDelta(t, 0.27, merged["kwOnly"], 1e-9)
}

func TestFuseRanks_AgreementWins(t *testing.T) {
	scores := fuseRanks([]string{"a", "b", "c"}, []string{"a", "c", "b"})
	assert.Greater(t, scores["a"], scores["b"])
	assert.Greater(t, scores["a"], scores["c"])
}

func TestSortByScore_Deterministic(t *testing.T) {
	ids := sortByScore(map[string]float64{"z": 0.5, "a": 0.5, "m": 0.9})
	assert.Equal(t, []string{"m", "a", "z"}, ids)
}
