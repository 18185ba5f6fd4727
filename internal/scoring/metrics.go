// Package scoring turns keystroke histories into typing metrics, coin rewards
// and per-character error tables. Everything here is pure.
package scoring

import (
	"encoding/json"
	"strconv"
)

// Marked is anything carrying a correctness flag for one typed character.
type Marked interface {
	IsCorrect() bool
}

// RawKeystroke is a keystroke decoded from stored history JSON. Correct is a
// pointer so callers can tell a missing flag from an explicit false.
type RawKeystroke struct {
	Char    string   `json:"char"`
	Correct *bool    `json:"correct"`
	Time    *float64 `json:"time"`
}

// IsCorrect treats a missing flag as incorrect.
func (k RawKeystroke) IsCorrect() bool {
	return k.Correct != nil && *k.Correct
}

// ParseHistory decodes a stored session history.
func ParseHistory(raw string) ([][]RawKeystroke, error) {
	var history [][]RawKeystroke
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Round2 rounds to two decimal places. Formatting rounds the exact binary
// value, so ties such as 0.625 go to the even digit.
func Round2(v float64) float64 {
	out, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return out
}

// ComputeWPM returns words per minute, where only words typed without a single
// mistake count. An override is returned untouched. Words is accepted for
// symmetry with the submission payload; counting is driven by history.
func ComputeWPM[K Marked](words []string, history [][]K, duration *int, override *float64) float64 {
	if override != nil {
		return *override
	}
	if duration == nil || *duration <= 0 {
		return 0
	}

	correctWords := 0
	for _, word := range history {
		if wordCorrect(word) {
			correctWords++
		}
	}

	minutes := float64(*duration) / 60.0
	return Round2(float64(correctWords) / minutes)
}

// ComputeAccuracy returns the percentage of correct keystrokes. No keystrokes
// at all is perfect accuracy.
func ComputeAccuracy[K Marked](history [][]K, override *float64) float64 {
	if override != nil {
		return *override
	}

	correct, incorrect := countMarks(history)
	total := correct + incorrect
	if total == 0 {
		return 100.0
	}
	return Round2(100.0 * float64(correct) / float64(total))
}

func wordCorrect[K Marked](word []K) bool {
	if len(word) == 0 {
		return false
	}
	for _, k := range word {
		if !k.IsCorrect() {
			return false
		}
	}
	return true
}

func countMarks[K Marked](history [][]K) (correct, incorrect int) {
	for _, word := range history {
		for _, k := range word {
			if k.IsCorrect() {
				correct++
			} else {
				incorrect++
			}
		}
	}
	return correct, incorrect
}
