package compliance

import (
	"sort"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
)

// Anonymize ranks sibling groups under one parent and window and assigns
// "<Prefix> A", "<Prefix> B", ... in rank order. Visible groups come first by
// ratio descending; suppressed groups follow. Ties, and the order among
// suppressed groups, fall back to node ID so the result depends only on the
// values, never on input order.
func Anonymize(parentID string, w calendar.Window, prefix string, groups []compliance.Metric) []compliance.LabelAssignment {
	ranked := make([]compliance.Metric, len(groups))
	copy(ranked, groups)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Suppressed != b.Suppressed {
			return !a.Suppressed
		}
		if !a.Suppressed {
			if c := compliance.CompareRatio(a, b); c != 0 {
				return c > 0
			}
		}
		return a.ScopeID < b.ScopeID
	})

	out := make([]compliance.LabelAssignment, len(ranked))
	for i, m := range ranked {
		out[i] = compliance.LabelAssignment{
			ParentID: parentID,
			Window:   w,
			NodeID:   m.ScopeID,
			Label:    prefix + " " + LabelLetters(i),
			Rank:     i + 1,
		}
	}
	return out
}

// LabelLetters converts a zero-based rank to A..Z, AA..AZ, BA and so on.
func LabelLetters(rank int) string {
	var buf []byte
	for n := rank + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}
