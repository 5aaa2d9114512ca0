package compliance

import (
	"testing"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/stretchr/testify/assert"
)

func dates(s ...string) []calendar.Date {
	out := make([]calendar.Date, len(s))
	for i, v := range s {
		out[i] = calendar.MustParse(v)
	}
	return out
}

func TestEmployeeMetric(t *testing.T) {
	t.Run("presence on a non-eligible day is ignored", func(t *testing.T) {
		m := EmployeeMetric("e1", march, dates("2024-03-04", "2024-03-05"), dates("2024-03-02", "2024-03-04"))
		assert.Equal(t, 1, m.Present)
		assert.Equal(t, 2, m.Eligible)
		assert.Equal(t, 1, m.Members)
	})

	t.Run("no eligible days leaves ratio undefined", func(t *testing.T) {
		m := EmployeeMetric("e1", march, nil, dates("2024-03-04"))
		assert.Equal(t, 0, m.Members)
		_, ok := m.Ratio()
		assert.False(t, ok)
	})
}

func TestRollup_SumsNumeratorsAndDenominators(t *testing.T) {
	parts := []compliance.Metric{
		{ScopeID: "e1", Present: 1, Eligible: 2, Members: 1},  // 0.50
		{ScopeID: "e2", Present: 9, Eligible: 10, Members: 1}, // 0.90
	}
	got := Rollup("t1", march, parts)

	assert.Equal(t, 10, got.Present)
	assert.Equal(t, 12, got.Eligible)
	assert.Equal(t, 2, got.Members)
	ratio, ok := got.Ratio()
	assert.True(t, ok)
	assert.InDelta(t, 10.0/12.0, ratio, 1e-12)
	assert.NotEqual(t, (0.5+0.9)/2, ratio)
	assert.Equal(t, compliance.TierOnTarget, got.Tier())
}

func TestRollup_SkipsSuppressedAndInactiveParts(t *testing.T) {
	parts := []compliance.Metric{
		{ScopeID: "e1", Present: 3, Eligible: 4, Members: 1},
		{ScopeID: "t9", Suppressed: true},
		{ScopeID: "e3", Members: 0},
	}
	got := Rollup("l1", march, parts)
	assert.Equal(t, compliance.Metric{ScopeID: "l1", Window: march, Present: 3, Eligible: 4, Members: 1}, got)
}
