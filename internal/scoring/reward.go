package scoring

import (
	"math"
	"strings"
)

const (
	// LongSessionSeconds is the duration above which the fallback formula adds a bonus coin.
	LongSessionSeconds = 300
	// MarathonTestType earns two extra coins under the fallback formula.
	MarathonTestType = "marathon"
)

// RewardFromHistory is +1 per correct keystroke and -1 per incorrect one.
// The result may be negative.
func RewardFromHistory[K Marked](history [][]K) int {
	correct, incorrect := countMarks(history)
	return correct - incorrect
}

// FallbackReward prices a session from its metrics. It is only used when the
// stored history cannot be decoded.
func FallbackReward(wpm, accuracy float64, duration *int, testType *string) int {
	coins := int(math.Floor(wpm * (accuracy / 100.0)))
	if coins < 1 {
		coins = 1
	}

	if duration != nil && *duration > LongSessionSeconds {
		coins++
	}

	if testType != nil && strings.EqualFold(*testType, MarathonTestType) {
		coins += 2
	}

	return coins
}

// SessionReward computes the coin delta for a persisted session. fellBack is
// true when the history was unreadable and FallbackReward priced the session.
func SessionReward(historyJSON string, wpm, accuracy float64, duration *int, testType *string) (delta int, fellBack bool) {
	history, err := ParseHistory(historyJSON)
	if err != nil {
		return FallbackReward(wpm, accuracy, duration, testType), true
	}
	return RewardFromHistory(history), false
}

// ClampDelta limits delta so that balance+delta never drops below zero.
func ClampDelta(balance, delta int) int {
	if balance+delta < 0 {
		return -balance
	}
	return delta
}
