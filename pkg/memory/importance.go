package memory

import "strings"

// importantTags contribute a capped bonus to the importance score.
var importantTags = map[string]bool{
	"critical":  true,
	"important": true,
	"urgent":    true,
	"key":       true,
	"core":      true,
}

const (
	lengthBonusThreshold = 500
	lengthBonus          = 0.1
	tagBonusPer          = 0.05
	tagBonusCap          = 0.15
	autoImportantBonus   = 0.15
	userFlaggedBonus     = 0.1
)

// importanceScore derives a record's retention weight. Priority 1 carries the
// highest base weight; bonuses come from content length, important tags, and
// metadata flags. The result is clamped to [0, 1] and is never set directly
// by callers.
func importanceScore(priority, contentLen int, tags []string, metadata map[string]interface{}) float64 {
	if priority < 1 {
		priority = 1
	}
	if priority > 5 {
		priority = 5
	}

	score := float64(6-priority) / 5.0 * 0.5

	if contentLen > lengthBonusThreshold {
		score += lengthBonus
	}

	var tagBonus float64
	for _, tag := range tags {
		if importantTags[strings.ToLower(tag)] {
			tagBonus += tagBonusPer
		}
	}
	if tagBonus > tagBonusCap {
		tagBonus = tagBonusCap
	}
	score += tagBonus

	if flag, ok := metadata["auto_important"].(bool); ok && flag {
		score += autoImportantBonus
	}
	if flag, ok := metadata["user_flagged"].(bool); ok && flag {
		score += userFlaggedBonus
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
