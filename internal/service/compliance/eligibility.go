package compliance

import (
	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// Eligibility is the outcome for one employee over one window.
type Eligibility struct {
	Active      calendar.Window
	IsActive    bool
	Dates       []calendar.Date
	Weekends    int
	Holidays    int
	LeaveDays   int
	Approximate bool
}

func (e Eligibility) Count() int {
	return len(e.Dates)
}

type EligibilityCalculator struct {
	calendar *calendar.Resolver
}

func NewEligibilityCalculator(resolver *calendar.Resolver) *EligibilityCalculator {
	return &EligibilityCalculator{calendar: resolver}
}

// Calculate returns the eligible days of emp inside w: the active sub-interval
// minus weekends, holidays of the employee's location or country, and
// approved leave. Leave falling on an already excluded day is not counted
// twice.
func (c *EligibilityCalculator) Calculate(emp compliance.Employee, country string, w calendar.Window, leave []calendar.Date) Eligibility {
	active, ok := emp.ActiveIn(w)
	if !ok {
		return Eligibility{}
	}

	excluded := c.calendar.Excluded(active, emp.Location, country)
	onLeave := make(map[calendar.Date]struct{}, len(leave))
	for _, d := range leave {
		onLeave[d] = struct{}{}
	}

	result := Eligibility{
		Active:      active,
		IsActive:    true,
		Weekends:    excluded.Weekends,
		Holidays:    excluded.Holidays,
		Approximate: excluded.Approximate,
		Dates:       make([]calendar.Date, 0, active.Days()),
	}
	for d := active.From; !d.After(active.To); d = d.AddDays(1) {
		if excluded.IsExcluded(d) {
			continue
		}
		if _, ok := onLeave[d]; ok {
			result.LeaveDays++
			continue
		}
		result.Dates = append(result.Dates, d)
	}
	return result
}
