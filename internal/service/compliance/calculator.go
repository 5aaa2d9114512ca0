package compliance

import (
	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// EmployeeMetric combines eligibility and normalized presence for one
// employee. Presence on a day that is not eligible is ignored, so the ratio
// never exceeds 1. An employee with no eligible days has Members 0 and is
// excluded from any rollup ratio.
func EmployeeMetric(employeeID string, w calendar.Window, eligible []calendar.Date, present []calendar.Date) compliance.Metric {
	m := compliance.Metric{ScopeID: employeeID, Window: w, Eligible: len(eligible)}
	if m.Eligible == 0 {
		return m
	}
	m.Members = 1
	set := make(map[calendar.Date]struct{}, len(eligible))
	for _, d := range eligible {
		set[d] = struct{}{}
	}
	for _, d := range present {
		if _, ok := set[d]; ok {
			m.Present++
		}
	}
	return m
}

// Rollup sums numerators and denominators of the parts. The group ratio is
// Σpresent/Σeligible, never the mean of member ratios. Suppressed parts
// carry no numbers and contribute nothing.
func Rollup(scopeID string, w calendar.Window, parts []compliance.Metric) compliance.Metric {
	out := compliance.Metric{ScopeID: scopeID, Window: w}
	for _, p := range parts {
		if p.Suppressed || p.Eligible <= 0 {
			continue
		}
		out.Present += p.Present
		out.Eligible += p.Eligible
		out.Members += p.Members
	}
	return out
}
