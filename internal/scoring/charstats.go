package scoring

import (
	"sort"

	"github.com/shilkatype/server/internal/models"
)

type charTally struct {
	total  int
	errors int
}

// CharErrorStats aggregates per-character error rates over stored session
// histories. Unreadable or empty histories are skipped. Characters that were
// never typed correctly are left out. Rows are ordered by error rate, highest
// first; ties keep first-seen order.
func CharErrorStats(histories []string) []models.CharErrorStat {
	tallies := map[string]*charTally{}
	var order []string

	for _, raw := range histories {
		if raw == "" {
			continue
		}
		history, err := ParseHistory(raw)
		if err != nil {
			continue
		}
		for _, word := range history {
			for _, k := range word {
				if k.Char == "" {
					continue
				}
				t, ok := tallies[k.Char]
				if !ok {
					t = &charTally{}
					tallies[k.Char] = t
					order = append(order, k.Char)
				}
				t.total++
				// A missing flag counts as correct here.
				if k.Correct != nil && !*k.Correct {
					t.errors++
				}
			}
		}
	}

	stats := make([]models.CharErrorStat, 0, len(order))
	for _, ch := range order {
		t := tallies[ch]
		if t.total == 0 || t.errors == t.total {
			continue
		}
		stats = append(stats, models.CharErrorStat{
			Char:       ch,
			ErrorRate:  Round2(float64(t.errors) / float64(t.total) * 100),
			TotalTyped: t.total,
			Errors:     t.errors,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].ErrorRate > stats[j].ErrorRate
	})
	return stats
}
