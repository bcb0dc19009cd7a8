package chunking

import (
	"strings"
	"time"
)

// ImportanceConfig holds the importance heuristic's weights.
type ImportanceConfig struct {
	Base float64

	// LongWords and VeryLongWords are word-count thresholds each adding LengthBonus.
	LongWords     int
	VeryLongWords int
	LengthBonus   float64

	// FreshBonus applies to records under a day old, RecentBonus under a week.
	FreshBonus  float64
	RecentBonus float64

	// KeywordGroups each add KeywordBonus when any of their words appears.
	KeywordGroups [][]string
	KeywordBonus  float64
}

// DefaultImportanceConfig returns the default heuristic.
func DefaultImportanceConfig() ImportanceConfig {
	return ImportanceConfig{
		Base:          0.5,
		LongWords:     100,
		VeryLongWords: 200,
		LengthBonus:   0.1,
		FreshBonus:    0.2,
		RecentBonus:   0.1,
		KeywordGroups: [][]string{
			{"error", "failed"},
			{"transaction", "contract"},
		},
		KeywordBonus: 0.1,
	}
}

// Importance scores content in [0,1]. A zero recordTime gets no recency bonus.
func (c ImportanceConfig) Importance(content string, recordTime, now time.Time) float64 {
	score := c.Base

	words := len(strings.Fields(content))
	if words > c.LongWords {
		score += c.LengthBonus
	}
	if words > c.VeryLongWords {
		score += c.LengthBonus
	}

	if !recordTime.IsZero() {
		switch age := now.Sub(recordTime); {
		case age < 24*time.Hour:
			score += c.FreshBonus
		case age < 7*24*time.Hour:
			score += c.RecentBonus
		}
	}

	lower := strings.ToLower(content)
	for _, group := range c.KeywordGroups {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				score += c.KeywordBonus
				break
			}
		}
	}

	return min(max(score, 0), 1)
}
