package search

import (
	"math"
	"time"
)

// RerankConfig tunes the post-fusion scoring pass.
type RerankConfig struct {
	DecayEnabled bool
	DecayLambda  float64 // exponential age decay rate per day
	RecencyBoost float64 // multiplier for items younger than RecencyDays
	RecencyDays  int
	AccessBoost  float64 // coefficient of the logarithmic access-count boost
}

// rerank adjusts a fused score using record age and access frequency.
// Applied after fusion and before truncation to the result limit.
func rerank(score float64, createdAt time.Time, accessCount int64, cfg RerankConfig, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24

	if cfg.DecayEnabled && cfg.DecayLambda > 0 && ageDays > 0 {
		score *= math.Exp(-cfg.DecayLambda * ageDays)
	}

	recencyDays := cfg.RecencyDays
	if recencyDays <= 0 {
		recencyDays = 30
	}
	if cfg.RecencyBoost > 1 && ageDays < float64(recencyDays) {
		score *= cfg.RecencyBoost
	}

	if cfg.AccessBoost > 0 && accessCount > 0 {
		score *= 1 + cfg.AccessBoost*math.Log(1+float64(accessCount))
	}

	return score
}
