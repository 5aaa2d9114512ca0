package compliance

import (
	"sort"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// NormalizePresence collapses raw events into the distinct dates inside w on
// which the employee was seen. A date without an event is an absence.
func NormalizePresence(events []compliance.PresenceEvent, w calendar.Window) []calendar.Date {
	seen := make(map[calendar.Date]struct{}, len(events))
	for _, ev := range events {
		if w.Contains(ev.Date) {
			seen[ev.Date] = struct{}{}
		}
	}
	dates := make([]calendar.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}

// groupPresence splits events per employee.
func groupPresence(events []compliance.PresenceEvent) map[string][]compliance.PresenceEvent {
	out := make(map[string][]compliance.PresenceEvent)
	for _, ev := range events {
		out[ev.EmployeeID] = append(out[ev.EmployeeID], ev)
	}
	return out
}

func groupLeave(records []compliance.LeaveRecord) map[string][]calendar.Date {
	out := make(map[string][]calendar.Date)
	for _, r := range records {
		out[r.EmployeeID] = append(out[r.EmployeeID], r.Date)
	}
	return out
}
