package calendar

import (
	"errors"
	"time"
)

var ErrUnknownGranularity = errors.New("unknown granularity")

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	case "":
		return GranularityWeek, nil
	default:
		return "", ErrUnknownGranularity
	}
}

// Buckets splits w into consecutive periods of the given granularity.
// Weeks start on Monday, months on the 1st; the first and last bucket are
// clipped to w.
func (w Window) Buckets(g Granularity) []Window {
	var buckets []Window
	start := w.From
	for !start.After(w.To) {
		end := periodEnd(start, g)
		if end.After(w.To) {
			end = w.To
		}
		buckets = append(buckets, Window{From: start, To: end})
		start = end.AddDays(1)
	}
	return buckets
}

func periodEnd(d Date, g Granularity) Date {
	switch g {
	case GranularityWeek:
		// days until Sunday, Monday being the first day of the week
		offset := (7 - int(d.Weekday())) % 7
		return d.AddDays(offset)
	case GranularityMonth:
		t := d.Time()
		firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return FromTime(firstOfNext).AddDays(-1)
	default:
		return d
	}
}

// MonthsOf returns the calendar months overlapping w, each clipped to w.
func (w Window) MonthsOf() []Window {
	return w.Buckets(GranularityMonth)
}
