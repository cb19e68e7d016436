package analytics

import (
	"time"

	"github.com/anchorhq/anchor/internal/timeutil"
)

// streakFloor is the locked-in time a day needs to sustain a streak.
const streakFloor = 15 * time.Minute

// Streak counts consecutive qualifying days walking backward from today.
// Totals are locked-in seconds keyed by yyyy-mm-dd. A day qualifies when its
// locked-in time exceeds fifteen minutes. If neither today nor yesterday
// qualifies the streak is 0, so focus logged two or more days ago cannot
// sustain it.
func Streak(totals map[string]float64, today time.Time) int {
	qualifies := func(t time.Time) bool {
		return totals[timeutil.DayKey(t)] > streakFloor.Seconds()
	}

	day := timeutil.RoundToStart(today)

	if !qualifies(day) {
		day = day.AddDate(0, 0, -1)
		if !qualifies(day) {
			return 0
		}
	}

	streak := 0

	for qualifies(day) {
		streak++
		day = day.AddDate(0, 0, -1)
	}

	return streak
}
