package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/jtq-dev/opslens/internal/store"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func at(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

func pt(t time.Time, v float64) store.SeriesPoint {
	return store.SeriesPoint{CreatedAt: t, Value: v}
}

func TestTrend_Empty(t *testing.T) {
	if got := Trend(nil); got != nil {
		t.Errorf("Trend(nil): got %v, want nil", got)
	}
}

func TestTrend_SameDayAverage(t *testing.T) {
	got := Trend([]store.SeriesPoint{
		pt(at(1, 9), 40),
		pt(at(1, 17), 60),
	})
	if len(got) != 1 {
		t.Fatalf("got %d points, want 1", len(got))
	}
	if got[0].Avg != 50 {
		t.Errorf("Avg: got %v, want 50", got[0].Avg)
	}
	if !got[0].Date.Equal(day(1)) {
		t.Errorf("Date: got %v, want %v", got[0].Date, day(1))
	}
}

func TestTrend_ChronologicalOldestFirst(t *testing.T) {
	got := Trend([]store.SeriesPoint{
		pt(at(5, 12), 3),
		pt(at(1, 12), 1),
		pt(at(3, 12), 2),
	})
	if len(got) != 3 {
		t.Fatalf("got %d points, want 3", len(got))
	}
	for i, want := range []time.Time{day(1), day(3), day(5)} {
		if !got[i].Date.Equal(want) {
			t.Errorf("point %d: date %v, want %v", i, got[i].Date, want)
		}
	}
}

func TestTrend_RollingSevenCalendarDays(t *testing.T) {
	// Data on days 1..8 with value = day number. The window for day 8
	// spans days 2..8, so rolling7 = mean(2..8) = 5.
	var points []store.SeriesPoint
	for d := 1; d <= 8; d++ {
		points = append(points, pt(at(d, 12), float64(d)))
	}
	got := Trend(points)
	last := got[len(got)-1]
	if last.Rolling7 == nil {
		t.Fatal("Rolling7: got nil")
	}
	if math.Abs(*last.Rolling7-5) > 1e-9 {
		t.Errorf("Rolling7: got %v, want 5", *last.Rolling7)
	}
}

func TestTrend_GapsAreNotZeroFilled(t *testing.T) {
	// Days 1 and 8: day 8's trailing window (days 2..8) holds only day 8
	// itself — the gap contributes nothing, not zeros.
	got := Trend([]store.SeriesPoint{
		pt(at(1, 12), 100),
		pt(at(8, 12), 10),
	})
	if len(got) != 2 {
		t.Fatalf("got %d points, want 2", len(got))
	}
	last := got[1]
	if last.Rolling7 == nil {
		t.Fatal("Rolling7: got nil, want 10")
	}
	if *last.Rolling7 != 10 {
		t.Errorf("Rolling7: got %v, want 10 (gap days must not dilute)", *last.Rolling7)
	}
}

func TestTrend_WindowIncludesEdgeDay(t *testing.T) {
	// Day 1 and day 7: day 7's window is days 1..7, so day 1 contributes.
	got := Trend([]store.SeriesPoint{
		pt(at(1, 12), 20),
		pt(at(7, 12), 40),
	})
	last := got[1]
	if last.Rolling7 == nil || *last.Rolling7 != 30 {
		t.Fatalf("Rolling7: got %v, want 30", last.Rolling7)
	}

	// Day 1 and day 8: day 1 falls outside day 8's window.
	got = Trend([]store.SeriesPoint{
		pt(at(1, 12), 20),
		pt(at(8, 12), 40),
	})
	last = got[1]
	if last.Rolling7 == nil || *last.Rolling7 != 40 {
		t.Fatalf("Rolling7: got %v, want 40", last.Rolling7)
	}
}

func TestTrend_SingleDayRollingEqualsAvg(t *testing.T) {
	got := Trend([]store.SeriesPoint{pt(at(1, 12), 42)})
	if got[0].Rolling7 == nil || *got[0].Rolling7 != 42 {
		t.Errorf("Rolling7: got %v, want 42", got[0].Rolling7)
	}
}
