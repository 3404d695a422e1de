package progress

import (
	"sort"
	"time"
)

// Streaks counts consecutive reading days. The current streak is alive if
// the most recent day is today or yesterday.
func Streaks(dates []time.Time, today time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, Day(d))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 0
	var prev time.Time
	for i, d := range days {
		switch {
		case i == 0:
			run = 1
		case d.Equal(prev):
			continue
		case int(d.Sub(prev).Hours()/24) == 1:
			run++
		default:
			run = 1
		}
		prev = d
		if run > longest {
			longest = run
		}
	}

	gap := int(Day(today).Sub(prev).Hours() / 24)
	if gap <= 1 {
		current = run
	}
	return current, longest
}
