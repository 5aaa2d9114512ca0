package compliance

import (
	"sort"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// groupKeyFunc maps an employee to the group it rolls up into.
type groupKeyFunc func(f *compliance.EmployeeFacts) string

type groupAggregate struct {
	ID          string
	Metric      compliance.Metric
	Trend       []compliance.Metric
	Approximate bool
}

type aggregateResult struct {
	Groups      []groupAggregate
	Overall     compliance.Metric
	Approximate bool
}

// aggregate rolls employee facts up into groups for w and each bucket.
// Withheld cells are dropped first; every value that leaves this function has
// passed through the suppression filter. Groups named in expected are
// reported even when no employee maps to them.
func (f SuppressionFilter) aggregate(scopeID string, facts []*compliance.EmployeeFacts, w calendar.Window, buckets []calendar.Window, key groupKeyFunc, expected ...string) aggregateResult {
	retained := f.RetainedCells(facts, w, buckets)

	type acc struct {
		parts       []compliance.Metric
		bucketParts [][]compliance.Metric
		approximate bool
	}
	groups := make(map[string]*acc)
	for _, id := range expected {
		groups[id] = &acc{bucketParts: make([][]compliance.Metric, len(buckets))}
	}
	var overallParts []compliance.Metric
	approximate := false

	for _, fact := range facts {
		id := key(fact)
		if id == "" {
			continue
		}
		g, ok := groups[id]
		if !ok {
			g = &acc{bucketParts: make([][]compliance.Metric, len(buckets))}
			groups[id] = g
		}
		if !retained[fact.CellKey()] {
			continue
		}
		present, eligible := fact.Counts(w)
		if eligible == 0 {
			continue
		}
		part := compliance.Metric{ScopeID: fact.EmployeeID, Window: w, Present: present, Eligible: eligible, Members: 1}
		g.parts = append(g.parts, part)
		overallParts = append(overallParts, part)
		for i, b := range buckets {
			bp, be := fact.Counts(b)
			if be == 0 {
				continue
			}
			g.bucketParts[i] = append(g.bucketParts[i], compliance.Metric{ScopeID: fact.EmployeeID, Window: b, Present: bp, Eligible: be, Members: 1})
		}
		if fact.Approximate {
			g.approximate = true
			approximate = true
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := aggregateResult{
		Groups:      make([]groupAggregate, 0, len(ids)),
		Overall:     f.Apply(Rollup(scopeID, w, overallParts)),
		Approximate: approximate,
	}
	for _, id := range ids {
		g := groups[id]
		metric := f.Apply(Rollup(id, w, g.parts))
		trend := make([]compliance.Metric, len(buckets))
		for i, b := range buckets {
			if metric.Suppressed {
				trend[i] = compliance.Metric{ScopeID: id, Window: b, Suppressed: true}
				continue
			}
			trend[i] = f.Apply(Rollup(id, b, g.bucketParts[i]))
		}
		result.Groups = append(result.Groups, groupAggregate{
			ID:          id,
			Metric:      metric,
			Trend:       trend,
			Approximate: g.approximate && !metric.Suppressed,
		})
	}
	return result
}
