package compliance

import (
	"math/rand"
	"testing"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymize_RanksByRatioThenID(t *testing.T) {
	groups := []compliance.Metric{
		{ScopeID: "t-c", Present: 70, Eligible: 100, Members: 6},
		{ScopeID: "t-a", Present: 7, Eligible: 10, Members: 6}, // ties with t-c
		{ScopeID: "t-s", Suppressed: true},
		{ScopeID: "t-b", Present: 90, Eligible: 100, Members: 8},
		{ScopeID: "t-r", Suppressed: true},
	}

	got := Anonymize("l-1", march, "Team", groups)
	require.Len(t, got, 5)

	want := []struct{ node, label string }{
		{"t-b", "Team A"},
		{"t-a", "Team B"},
		{"t-c", "Team C"},
		{"t-r", "Team D"},
		{"t-s", "Team E"},
	}
	for i, w := range want {
		assert.Equal(t, w.node, got[i].NodeID)
		assert.Equal(t, w.label, got[i].Label)
		assert.Equal(t, i+1, got[i].Rank)
		assert.Equal(t, "l-1", got[i].ParentID)
		assert.Equal(t, march, got[i].Window)
	}
}

func TestAnonymize_IndependentOfInputOrder(t *testing.T) {
	groups := make([]compliance.Metric, 0, 30)
	for i := 0; i < 30; i++ {
		groups = append(groups, compliance.Metric{
			ScopeID:    LabelLetters(i),
			Present:    i % 4,
			Eligible:   4,
			Members:    6,
			Suppressed: i%7 == 0,
		})
	}
	want := Anonymize("p", march, "Leader", groups)

	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 20; n++ {
		shuffled := make([]compliance.Metric, len(groups))
		copy(shuffled, groups)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Anonymize("p", march, "Leader", shuffled))
	}
}

func TestLabelLetters(t *testing.T) {
	cases := map[int]string{
		0:   "A",
		1:   "B",
		25:  "Z",
		26:  "AA",
		27:  "AB",
		51:  "AZ",
		52:  "BA",
		701: "ZZ",
		702: "AAA",
	}
	for rank, want := range cases {
		assert.Equal(t, want, LabelLetters(rank), "rank %d", rank)
	}
}
