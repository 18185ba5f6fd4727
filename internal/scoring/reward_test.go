package scoring

import (
	"testing"

	"github.com/shilkatype/server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRewardFromHistory(t *testing.T) {
	history := [][]models.Keystroke{{ks("a", true), ks("a", true)}, {ks("b", false)}}
	assert.Equal(t, 1, RewardFromHistory(history))

	assert.Equal(t, 0, RewardFromHistory([][]models.Keystroke{}))
	assert.Equal(t, -3, RewardFromHistory([][]models.Keystroke{{ks("x", false), ks("y", false)}, {ks("z", false)}}))
}

func TestRewardFromHistoryIsLinear(t *testing.T) {
	a := [][]models.Keystroke{word("hello"), {ks("w", true), ks("o", false)}}
	b := [][]models.Keystroke{{ks("q", false)}, word("go"), {}}

	joined := append(append([][]models.Keystroke{}, a...), b...)
	assert.Equal(t, RewardFromHistory(a)+RewardFromHistory(b), RewardFromHistory(joined))
}

func TestFallbackReward(t *testing.T) {
	tests := []struct {
		name     string
		wpm      float64
		accuracy float64
		duration *int
		testType *string
		want     int
	}{
		{"Floor", 50, 90, nil, nil, 45},
		{"TruncatesFraction", 10.9, 99, nil, nil, 10},
		{"MinimumOne", 0, 0, nil, nil, 1},
		{"LongSessionBonus", 40, 50, intPtr(301), nil, 21},
		{"ExactlyFiveMinutesNoBonus", 40, 50, intPtr(300), nil, 20},
		{"MarathonBonus", 0, 100, nil, strPtr("MaraThon"), 3},
		{"AllBonuses", 60, 100, intPtr(600), strPtr("marathon"), 63},
		{"OtherTestType", 60, 100, nil, strPtr("time"), 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackReward(tt.wpm, tt.accuracy, tt.duration, tt.testType))
		})
	}
}

func TestSessionReward(t *testing.T) {
	delta, fellBack := SessionReward(`[[{"char":"a","correct":true,"time":0},{"char":"b","correct":false,"time":5}],[{"char":"c","correct":true,"time":9}]]`, 0, 0, nil, nil)
	assert.Equal(t, 1, delta)
	assert.False(t, fellBack)

	delta, fellBack = SessionReward(`{broken`, 30, 100, intPtr(400), strPtr("marathon"))
	assert.Equal(t, 33, delta)
	assert.True(t, fellBack)

	delta, fellBack = SessionReward(``, 0, 100, nil, nil)
	assert.Equal(t, 1, delta)
	assert.True(t, fellBack)
}

func TestClampDelta(t *testing.T) {
	assert.Equal(t, -1, ClampDelta(1, -5))
	assert.Equal(t, -5, ClampDelta(5, -5))
	assert.Equal(t, -4, ClampDelta(10, -4))
	assert.Equal(t, 0, ClampDelta(0, -3))
	assert.Equal(t, 7, ClampDelta(0, 7))

	balance := 3
	for _, delta := range []int{-1, 4, -10, -2, 5, -100, 0, 8} {
		balance += ClampDelta(balance, delta)
		assert.GreaterOrEqual(t, balance, 0)
	}
	assert.Equal(t, 8, balance)
}
