package compliance

import (
	"testing"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuppressionFilter_Apply(t *testing.T) {
	f := NewSuppressionFilter(0)
	require.Equal(t, DefaultMinGroupSize, f.MinGroupSize)

	small := compliance.Metric{ScopeID: "t1", Window: march, Present: 95, Eligible: 95, Members: 5}
	got := f.Apply(small)
	assert.True(t, got.Suppressed)
	assert.Zero(t, got.Present)
	assert.Zero(t, got.Eligible)
	assert.Zero(t, got.Members)
	assert.Equal(t, "t1", got.ScopeID)
	assert.Equal(t, compliance.TierInsufficientData, got.Tier())

	enough := compliance.Metric{ScopeID: "t2", Window: march, Present: 100, Eligible: 114, Members: 6}
	assert.Equal(t, enough, f.Apply(enough))
}

func TestRetainedCells(t *testing.T) {
	b := newDataset().indonesia().
		node("t-six", "l-1", orgtree.LevelTeam).
		node("t-five", "l-1", orgtree.LevelTeam).
		node("t-late", "l-1", orgtree.LevelTeam)
	b.members("t-six", "JKT", 6)
	b.members("t-five", "JKT", 5)
	// six members over March, but only three of them are active in week one
	b.members("t-late", "BDG", 3)
	for _, id := range []string{"t-late-n1", "t-late-n2", "t-late-n3"} {
		b.employee(id, "t-late", "BDG", "2024-03-11")
	}
	snap := b.build(t)

	f := NewSuppressionFilter(DefaultMinGroupSize)
	weeks := march.Buckets(calendar.GranularityWeek)

	retained := f.RetainedCells(facts(snap), march, nil)
	assert.True(t, retained["t-six\x00JKT"])
	assert.False(t, retained["t-five\x00JKT"])
	assert.True(t, retained["t-late\x00BDG"], "six members over the whole window")

	retained = f.RetainedCells(facts(snap), march, weeks)
	assert.True(t, retained["t-six\x00JKT"])
	assert.False(t, retained["t-late\x00BDG"], "a week with three contributors withholds the cell")
}

func TestAggregate_WithheldCellsNeverReachAnyTotal(t *testing.T) {
	b := newDataset().indonesia().
		node("t-big", "l-1", orgtree.LevelTeam).
		node("t-small", "l-1", orgtree.LevelTeam)
	for _, id := range b.members("t-big", "JKT", 6) {
		b.present(id, march)
	}
	for _, id := range b.members("t-small", "JKT", 2) {
		b.present(id, march)
	}
	snap := b.build(t)
	f := NewSuppressionFilter(DefaultMinGroupSize)

	byLeader := func(fc *compliance.EmployeeFacts) string {
		id, _ := snap.Tree.NearestAt(fc.EmployeeID, orgtree.LevelLeader)
		return id
	}
	byLocation := func(fc *compliance.EmployeeFacts) string { return fc.Location }

	teams := f.aggregate("l-1", facts(snap), march, nil, byTeam)
	leaders := f.aggregate("r-java", facts(snap), march, nil, byLeader)
	locations := f.aggregate("r-java", facts(snap), march, nil, byLocation)

	require.Len(t, teams.Groups, 2)
	big, small := teams.Groups[0], teams.Groups[1]
	require.Equal(t, "t-big", big.ID)
	assert.True(t, small.Metric.Suppressed)
	assert.Equal(t, 6*19, big.Metric.Eligible)

	// parent minus visible children and location minus team both equal zero
	require.Len(t, leaders.Groups, 1)
	assert.Equal(t, big.Metric.Present, leaders.Groups[0].Metric.Present)
	assert.Equal(t, big.Metric.Eligible, leaders.Groups[0].Metric.Eligible)
	require.Len(t, locations.Groups, 1)
	assert.Equal(t, big.Metric.Eligible, locations.Groups[0].Metric.Eligible)
	assert.Equal(t, big.Metric.Eligible, teams.Overall.Eligible)
}

func TestAggregate_ExpectedGroupsAreReportedSuppressed(t *testing.T) {
	b := newDataset().indonesia().
		node("t-1", "l-1", orgtree.LevelTeam).
		node("t-empty", "l-1", orgtree.LevelTeam)
	for _, id := range b.members("t-1", "JKT", 6) {
		b.present(id, march)
	}
	snap := b.build(t)

	res := NewSuppressionFilter(6).aggregate("l-1", facts(snap), march, march.Buckets(calendar.GranularityWeek), byTeam, "t-1", "t-empty")
	require.Len(t, res.Groups, 2)
	empty := res.Groups[1]
	assert.Equal(t, "t-empty", empty.ID)
	assert.True(t, empty.Metric.Suppressed)
	for _, p := range empty.Trend {
		assert.True(t, p.Suppressed)
	}
	assert.Len(t, res.Groups[0].Trend, 5)
}
