package compliance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
	"github.com/stretchr/testify/require"
)

const testVersion = "01900000-0000-7000-8000-000000000001"

var (
	// March 2024 starts on a Friday: 21 weekdays, 10 weekend days.
	march   = calendar.Window{From: calendar.MustParse("2024-03-01"), To: calendar.MustParse("2024-03-31")}
	horizon = calendar.Window{From: calendar.MustParse("2024-01-01"), To: calendar.MustParse("2024-03-31")}
	builtAt = time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC)
)

type datasetBuilder struct {
	ds compliance.Dataset
}

func newDataset() *datasetBuilder {
	return &datasetBuilder{ds: compliance.Dataset{Dropped: compliance.DropLog{}}}
}

func (b *datasetBuilder) node(id, parent string, level orgtree.Level) *datasetBuilder {
	b.ds.OrgNodes = append(b.ds.OrgNodes, orgtree.Node{ID: id, ParentID: parent, Level: level})
	return b
}

func (b *datasetBuilder) country(id, code string) *datasetBuilder {
	b.ds.OrgNodes = append(b.ds.OrgNodes, orgtree.Node{ID: id, Level: orgtree.LevelCountry, Code: code})
	return b
}

func (b *datasetBuilder) holiday(scope, date string) *datasetBuilder {
	b.ds.Holidays = append(b.ds.Holidays, compliance.Holiday{Scope: scope, Date: calendar.MustParse(date)})
	return b
}

func (b *datasetBuilder) employee(id, team, location, hire string) *datasetBuilder {
	b.ds.Employees = append(b.ds.Employees, compliance.Employee{
		ID:        id,
		ManagerID: team,
		Location:  location,
		HireDate:  calendar.MustParse(hire),
	})
	return b
}

// members adds n employees hired long before the horizon and returns their IDs.
func (b *datasetBuilder) members(team, location string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-e%02d", team, i+1)
		b.employee(ids[i], team, location, "2023-01-02")
	}
	return ids
}

// present records a swipe on every calendar day of w except skip. Weekend
// and holiday swipes are deliberate: they must never count.
func (b *datasetBuilder) present(id string, w calendar.Window, skip ...string) *datasetBuilder {
	skipped := make(map[calendar.Date]bool, len(skip))
	for _, s := range skip {
		skipped[calendar.MustParse(s)] = true
	}
	for d := w.From; !d.After(w.To); d = d.AddDays(1) {
		if skipped[d] {
			continue
		}
		b.ds.Presence = append(b.ds.Presence, compliance.PresenceEvent{EmployeeID: id, Date: d, Location: "HQ"})
	}
	return b
}

func (b *datasetBuilder) leave(id string, dates ...string) *datasetBuilder {
	for _, d := range dates {
		b.ds.Leave = append(b.ds.Leave, compliance.LeaveRecord{EmployeeID: id, Date: calendar.MustParse(d)})
	}
	return b
}

func (b *datasetBuilder) dataset() *compliance.Dataset {
	ds := b.ds
	return &ds
}

func (b *datasetBuilder) build(t *testing.T) *compliance.Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(context.Background(), b.dataset(), BuildOptions{
		Version:      testVersion,
		RecomputedAt: builtAt,
		Horizon:      horizon,
		MinGroupSize: DefaultMinGroupSize,
	})
	require.NoError(t, err)
	return snap
}

// indonesia adds country c-id (holidays 11 and 29 March) with one region
// and one leader, so every March weekday count there is 19.
func (b *datasetBuilder) indonesia() *datasetBuilder {
	return b.country("c-id", "ID").
		node("r-java", "c-id", orgtree.LevelRegion).
		node("l-1", "r-java", orgtree.LevelLeader).
		holiday("ID", "2024-03-11").
		holiday("ID", "2024-03-29")
}

func facts(snap *compliance.Snapshot) []*compliance.EmployeeFacts {
	out := make([]*compliance.EmployeeFacts, len(snap.Facts))
	for i := range snap.Facts {
		out[i] = &snap.Facts[i]
	}
	return out
}

func byTeam(f *compliance.EmployeeFacts) string { return f.TeamID }
