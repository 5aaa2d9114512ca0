package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset lays out two six-person teams under one leader with a swipe on
// every day of March 2024.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var employees, presence strings.Builder
	employees.WriteString("id,manager_id,location,hire_date,termination_date\n")
	presence.WriteString("employee_id,date,location\n")
	for _, team := range []string{"t-one", "t-two"} {
		for i := 1; i <= 6; i++ {
			id := fmt.Sprintf("%s-e%02d", team, i)
			fmt.Fprintf(&employees, "%s,%s,JKT,2023-01-02,\n", id, team)
			for day := 1; day <= 31; day++ {
				fmt.Fprintf(&presence, "%s,2024-03-%02d,HQ\n", id, day)
			}
		}
	}

	files := map[string]string{
		"org_nodes.csv": "id,parent_id,level,code,name\n" +
			"c1,,country,ID,Indonesia\n" +
			"r1,c1,region,,West\n" +
			"l1,r1,leader,,Leader\n" +
			"t-one,l1,team,,Payments\n" +
			"t-two,l1,team,,Lending\n",
		"employees.csv": employees.String(),
		"presence.csv":  presence.String(),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRecomputeCmd(t *testing.T) {
	dataDir := writeDataset(t)
	snapDir := filepath.Join(t.TempDir(), "snapshots")

	out, err := execute(t, "recompute", "--data-dir", dataDir, "--snapshot-dir", snapDir, "--as-of", "2024-03-31", "--horizon-days", "91")
	require.NoError(t, err)

	var summary compliance.RecomputeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 12, summary.Employees)
	assert.Equal(t, "2024-03-31", summary.Horizon.To.String())
	assert.NotEmpty(t, summary.Version)

	files, err := filepath.Glob(filepath.Join(snapDir, "*.snapshot.zst"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRecomputeCmd_RequiresDataDir(t *testing.T) {
	_, err := execute(t, "recompute")
	assert.ErrorContains(t, err, "data-dir")
}

func TestQueryCmd(t *testing.T) {
	dataDir := writeDataset(t)
	snapDir := filepath.Join(t.TempDir(), "snapshots")
	_, err := execute(t, "recompute", "--data-dir", dataDir, "--snapshot-dir", snapDir, "--as-of", "2024-03-31", "--horizon-days", "91")
	require.NoError(t, err)

	t.Run("from persisted snapshot", func(t *testing.T) {
		out, err := execute(t, "query", "--snapshot-dir", snapDir,
			"--tier", "organization", "--dimension", "team",
			"--from", "2024-03-01", "--to", "2024-03-31")
		require.NoError(t, err)

		var resp compliance.QueryResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, compliance.StatusSuccess, resp.Status)
		require.Len(t, resp.Groups, 2)
		assert.NotContains(t, out, "t-one")
		assert.NotContains(t, out, "t-two-e01")
	})

	t.Run("scope violation", func(t *testing.T) {
		_, err := execute(t, "query", "--snapshot-dir", snapDir,
			"--tier", "team", "--home", "t-one", "--view", "organization", "--dimension", "team",
			"--from", "2024-03-01", "--to", "2024-03-31")
		assert.ErrorIs(t, err, compliance.ErrScopeViolation)
	})

	t.Run("needs a source", func(t *testing.T) {
		_, err := execute(t, "query", "--tier", "organization", "--dimension", "team",
			"--from", "2024-03-01", "--to", "2024-03-31")
		assert.ErrorContains(t, err, "--data-dir or --snapshot-dir")
	})
}

func TestTokenCmd(t *testing.T) {
	out, err := execute(t, "token", "--secret", "cli-secret", "--user", "ops-1", "--tier", "department", "--home", "l1")
	require.NoError(t, err)

	var tok tokenOutput
	require.NoError(t, json.Unmarshal([]byte(out), &tok))

	decoded, err := jwtauth.VerifyToken(jwt.NewJWTService("cli-secret", "1h").JWTAuth(), tok.AccessToken)
	require.NoError(t, err)
	claims, err := decoded.AsMap(context.Background())
	require.NoError(t, err)

	p, err := jwt.PrincipalFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, compliance.Principal{ID: "ops-1", Tier: compliance.RoleTierDepartment, HomeNode: "l1"}, p)

	_, err = execute(t, "token", "--secret", "cli-secret", "--user", "ops-1", "--tier", "planet")
	assert.ErrorIs(t, err, compliance.ErrUnknownRoleTier)
}
