package app

import "time"

// StreakDays counts consecutive calendar days with at least one recorded
// answer, ending today or yesterday. If neither today nor yesterday saw an
// answer the streak is 0. Recomputing with the same inputs always yields the
// same result.
func StreakDays(answerTimes []time.Time, now time.Time) int {
	if len(answerTimes) == 0 {
		return 0
	}

	loc := now.Location()
	days := make(map[string]struct{}, len(answerTimes))
	for _, t := range answerTimes {
		days[t.In(loc).Format("2006-01-02")] = struct{}{}
	}

	start := now
	if _, ok := days[start.Format("2006-01-02")]; !ok {
		start = now.AddDate(0, 0, -1)
		if _, ok := days[start.Format("2006-01-02")]; !ok {
			return 0
		}
	}

	streak := 0
	for day := start; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day.Format("2006-01-02")]; !ok {
			break
		}
		streak++
	}
	return streak
}
