package calendar

import (
	"errors"
	"fmt"
	"time"
)

const layout = "2006-01-02"

var (
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidWindow = errors.New("window start must not be after window end")
)

// Date is a civil calendar date stored as days since 1970-01-01.
// It carries no time of day and no location.
type Date int32

func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime takes the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	utc := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date(utc.Unix() / 86400)
}

func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return FromTime(t), nil
}

// MustParse is for fixtures and tests.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(layout)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

func (d Date) Before(u Date) bool {
	return d < u
}

func (d Date) After(u Date) bool {
	return d > u
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window is an inclusive range of calendar dates.
type Window struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

func NewWindow(from, to Date) (Window, error) {
	if from.After(to) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInvalidWindow, from, to)
	}
	return Window{From: from, To: to}, nil
}

// ParseWindow parses two YYYY-MM-DD strings into a window.
func ParseWindow(from, to string) (Window, error) {
	f, err := Parse(from)
	if err != nil {
		return Window{}, err
	}
	t, err := Parse(to)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(f, t)
}

func (w Window) Days() int {
	if w.From.After(w.To) {
		return 0
	}
	return int(w.To-w.From) + 1
}

func (w Window) Contains(d Date) bool {
	return d >= w.From && d <= w.To
}

func (w Window) Covers(o Window) bool {
	return w.Contains(o.From) && w.Contains(o.To)
}

// Intersect returns the overlap of w and o, and false when they are disjoint.
func (w Window) Intersect(o Window) (Window, bool) {
	from, to := w.From, w.To
	if o.From.After(from) {
		from = o.From
	}
	if o.To.Before(to) {
		to = o.To
	}
	if from.After(to) {
		return Window{}, false
	}
	return Window{From: from, To: to}, true
}

func (w Window) String() string {
	return w.From.String() + ".." + w.To.String()
}
