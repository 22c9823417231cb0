package analytics

import (
	"sort"
	"time"

	"github.com/jtq-dev/opslens/internal/store"
)

// rollingWindowDays is the trailing window, in calendar days, for the
// rolling mean. The window counts only days that actually have data — no
// forward-fill, no zero-fill.
const rollingWindowDays = 7

// DailyPoint is one day of a metric's trend for a host/key pair.
type DailyPoint struct {
	// Date is the UTC calendar day, truncated to midnight.
	Date time.Time

	// Avg is the arithmetic mean of all values recorded that day; a host
	// may produce multiple runs per day.
	Avg float64

	// Rolling7 is the mean of Avg over the trailing seven calendar days
	// that have data. Nil when no day in the window has data.
	Rolling7 *float64
}

// Trend buckets a series by UTC calendar day and derives the rolling mean.
// Output is chronological, oldest first. Days without runs simply do not
// appear; they never contribute zeros to the rolling window.
func Trend(points []store.SeriesPoint) []DailyPoint {
	if len(points) == 0 {
		return nil
	}

	type bucket struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]*bucket)
	for _, p := range points {
		day := p.CreatedAt.UTC().Truncate(24 * time.Hour)
		b, ok := days[day]
		if !ok {
			b = &bucket{}
			days[day] = b
		}
		b.sum += p.Value
		b.count++
	}

	dates := make([]time.Time, 0, len(days))
	for day := range days {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	avg := make(map[time.Time]float64, len(days))
	out := make([]DailyPoint, 0, len(dates))
	for _, day := range dates {
		b := days[day]
		avg[day] = b.sum / float64(b.count)

		var (
			sum float64
			n   int
		)
		for back := 0; back < rollingWindowDays; back++ {
			if v, ok := avg[day.AddDate(0, 0, -back)]; ok {
				sum += v
				n++
			}
		}
		dp := DailyPoint{Date: day, Avg: avg[day]}
		if n > 0 {
			mean := sum / float64(n)
			dp.Rolling7 = &mean
		}
		out = append(out, dp)
	}
	return out
}
