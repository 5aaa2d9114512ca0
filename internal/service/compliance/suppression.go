package compliance

import (
	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

const DefaultMinGroupSize = 6

// SuppressionFilter withholds aggregates that describe too few people.
type SuppressionFilter struct {
	MinGroupSize int
}

func NewSuppressionFilter(minGroupSize int) SuppressionFilter {
	if minGroupSize <= 0 {
		minGroupSize = DefaultMinGroupSize
	}
	return SuppressionFilter{MinGroupSize: minGroupSize}
}

// Apply replaces the numbers of an undersized metric with the suppressed
// marker, keeping only its scope and window.
func (f SuppressionFilter) Apply(m compliance.Metric) compliance.Metric {
	if m.Members >= f.MinGroupSize && !m.Suppressed {
		return m
	}
	return compliance.Metric{ScopeID: m.ScopeID, Window: m.Window, Suppressed: true}
}

// RetainedCells decides, before any rollup, which (team, location) cells may
// contribute numbers. A cell is kept only if it has at least MinGroupSize
// contributing members over w and, in every bucket, either none or at least
// MinGroupSize. Every visible aggregate is a sum of kept cells, so no
// difference of visible values can isolate a withheld one.
//
// Cells never straddle a scope boundary because a scope root is always a
// team or an ancestor of teams; deciding over the scope is therefore the same
// as deciding over the whole snapshot.
func (f SuppressionFilter) RetainedCells(facts []*compliance.EmployeeFacts, w calendar.Window, buckets []calendar.Window) map[string]bool {
	type cell struct {
		window  int
		buckets []int
	}
	cells := make(map[string]*cell)
	for _, fact := range facts {
		key := fact.CellKey()
		c, ok := cells[key]
		if !ok {
			c = &cell{buckets: make([]int, len(buckets))}
			cells[key] = c
		}
		if fact.Eligible.CountIn(w) > 0 {
			c.window++
		}
		for i, b := range buckets {
			if fact.Eligible.CountIn(b) > 0 {
				c.buckets[i]++
			}
		}
	}

	retained := make(map[string]bool, len(cells))
	for key, c := range cells {
		keep := c.window >= f.MinGroupSize
		for _, n := range c.buckets {
			if n != 0 && n < f.MinGroupSize {
				keep = false
				break
			}
		}
		retained[key] = keep
	}
	return retained
}
