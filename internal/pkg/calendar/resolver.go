package calendar

import (
	"sort"
	"strings"
)

// DefaultScope holds the holiday table used when a location has no calendar
// of its own.
const DefaultScope = "default"

type Holiday struct {
	Scope string `json:"scope"`
	Date  Date   `json:"date"`
	Name  string `json:"name,omitempty"`
}

// Exclusions is the ordered set of non-eligible dates of a window.
type Exclusions struct {
	Dates       []Date
	Weekends    int
	Holidays    int
	Approximate bool
	set         map[Date]struct{}
}

func (e Exclusions) IsExcluded(d Date) bool {
	_, ok := e.set[d]
	return ok
}

// Resolver answers which dates are not working days for a location. It is
// immutable once built and safe for concurrent use.
type Resolver struct {
	holidays map[string]map[Date]struct{}
}

func NewResolver(holidays []Holiday) *Resolver {
	r := &Resolver{holidays: make(map[string]map[Date]struct{})}
	for _, h := range holidays {
		scope := normalizeScope(h.Scope)
		if scope == "" {
			continue
		}
		if r.holidays[scope] == nil {
			r.holidays[scope] = make(map[Date]struct{})
		}
		r.holidays[scope][h.Date] = struct{}{}
	}
	return r
}

// HasCalendar reports whether a holiday table exists for the scope.
func (r *Resolver) HasCalendar(scope string) bool {
	_, ok := r.holidays[normalizeScope(scope)]
	return ok
}

// Excluded returns weekends plus holidays of the location and of its country.
// When neither has a calendar the default table is used and the result is
// flagged approximate.
func (r *Resolver) Excluded(w Window, location, country string) Exclusions {
	tables := make([]map[Date]struct{}, 0, 2)
	for _, scope := range []string{location, country} {
		if t, ok := r.holidays[normalizeScope(scope)]; ok {
			tables = append(tables, t)
		}
	}

	approximate := false
	if len(tables) == 0 {
		approximate = true
		if t, ok := r.holidays[DefaultScope]; ok {
			tables = append(tables, t)
		}
	}

	ex := Exclusions{Approximate: approximate, set: make(map[Date]struct{})}
	for d := w.From; !d.After(w.To); d = d.AddDays(1) {
		if d.IsWeekend() {
			ex.Weekends++
			ex.set[d] = struct{}{}
			continue
		}
		for _, t := range tables {
			if _, ok := t[d]; ok {
				ex.Holidays++
				ex.set[d] = struct{}{}
				break
			}
		}
	}

	ex.Dates = make([]Date, 0, len(ex.set))
	for d := range ex.set {
		ex.Dates = append(ex.Dates, d)
	}
	sort.Slice(ex.Dates, func(i, j int) bool { return ex.Dates[i] < ex.Dates[j] })
	return ex
}

func normalizeScope(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
