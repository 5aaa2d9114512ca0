package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	complianceService "github.com/cmlabs-hris/compliance-engine/internal/service/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHorizon = calendar.Window{From: calendar.MustParse("2024-01-01"), To: calendar.MustParse("2024-03-31")}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const (
	orgNodesCSV = "\ufeffid,parent_id,level,code,name\n" +
		"c1,,country,ID,Indonesia\n" +
		"t1,c1,team,,Payments\n" +
		"t2,c1,team,,Lending,extra\n"
	employeesCSV = "id,manager_id,location,hire_date,termination_date\n" +
		"e1,t1,JKT,2023-01-02,\n" +
		"e2,t1,JKT,2023-01-02,2024-02-29\n" +
		"e3,t1,JKT,02/01/2023,\n"
)

func TestSourceRepository_LoadDataset(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileOrgNodes:  orgNodesCSV,
		FileEmployees: employeesCSV,
		FilePresence: "employee_id,date,location\n" +
			"e1,2024-03-01,HQ\n" +
			"e1,not-a-date,HQ\n",
		FileLeave: "employee_id,date,status\n" +
			"e1,2024-03-04,approved\n" +
			"e1,2024-03-05,rejected\n",
	})

	ds, err := NewSourceRepository(dir).LoadDataset(context.Background(), testHorizon)
	require.NoError(t, err)

	assert.Len(t, ds.OrgNodes, 2)
	assert.Equal(t, "ID", ds.OrgNodes[0].Code)
	require.Len(t, ds.Employees, 2)
	require.NotNil(t, ds.Employees[1].TerminationDate)
	assert.Equal(t, calendar.MustParse("2024-02-29"), *ds.Employees[1].TerminationDate)
	assert.Len(t, ds.Presence, 1)
	require.Len(t, ds.Leave, 1)
	assert.Equal(t, calendar.MustParse("2024-03-04"), ds.Leave[0].Date)
	assert.Empty(t, ds.Holidays, "a missing holidays file is not an error")

	assert.Equal(t, 1, ds.Dropped[compliance.DropKey{Entity: compliance.EntityOrgNode, Reason: compliance.ReasonMalformed}])
	assert.Equal(t, 1, ds.Dropped[compliance.DropKey{Entity: compliance.EntityEmployee, Reason: compliance.ReasonMalformed}])
	assert.Equal(t, 1, ds.Dropped[compliance.DropKey{Entity: compliance.EntityPresence, Reason: compliance.ReasonMalformed}])
}

func TestSourceRepository_Errors(t *testing.T) {
	t.Run("missing required file", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{FileOrgNodes: orgNodesCSV})
		_, err := NewSourceRepository(dir).LoadDataset(context.Background(), testHorizon)
		assert.ErrorContains(t, err, FileEmployees)
	})

	t.Run("missing column", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			FileOrgNodes:  orgNodesCSV,
			FileEmployees: "id,manager_id,hire_date\ne1,t1,2023-01-02\n",
		})
		_, err := NewSourceRepository(dir).LoadDataset(context.Background(), testHorizon)
		assert.ErrorContains(t, err, `missing column "location"`)
	})

	t.Run("empty file", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{FileOrgNodes: "", FileEmployees: employeesCSV})
		_, err := NewSourceRepository(dir).LoadDataset(context.Background(), testHorizon)
		assert.ErrorContains(t, err, "missing header")
	})
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	dir := writeFiles(t, map[string]string{FileOrgNodes: orgNodesCSV, FileEmployees: employeesCSV})
	ds, err := NewSourceRepository(dir).LoadDataset(ctx, testHorizon)
	require.NoError(t, err)

	repo, err := NewSnapshotRepository(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	_, err = repo.Latest(ctx)
	assert.ErrorIs(t, err, compliance.ErrSnapshotNotFound)

	versions := []string{
		"01900000-0000-7000-8000-000000000001",
		"01900000-0000-7000-8000-000000000002",
		"01900000-0000-7000-8000-000000000003",
	}
	for i, v := range versions {
		snap, err := complianceService.BuildSnapshot(ctx, ds, complianceService.BuildOptions{
			Version:      v,
			RecomputedAt: time.Date(2024, 4, 1+i, 2, 0, 0, 0, time.UTC),
			Horizon:      testHorizon,
			MinGroupSize: 6,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, snap))
	}

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, versions[2], latest.Version)
	assert.Equal(t, 2, latest.Summary.Employees)
	assert.True(t, latest.Tree.IsWithin("e2", "c1"))

	deleted, err := repo.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	_, err = repo.GetByVersion(ctx, versions[0])
	assert.ErrorIs(t, err, compliance.ErrSnapshotNotFound)

	_, err = repo.GetByVersion(ctx, "../"+versions[1])
	assert.ErrorIs(t, err, compliance.ErrSnapshotNotFound)
}
