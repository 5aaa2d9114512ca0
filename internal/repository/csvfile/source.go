// Package csvfile reads a compliance dataset from a directory of CSV exports
// and keeps snapshots as compressed files next to it. It backs the operator
// CLI; the API reads from PostgreSQL.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

const (
	FileOrgNodes  = "org_nodes.csv"
	FileEmployees = "employees.csv"
	FilePresence  = "presence.csv"
	FileLeave     = "leave.csv"
	FileHolidays  = "holidays.csv"
)

type sourceRepositoryImpl struct {
	dir string
}

// NewSourceRepository reads from dir. Org nodes and employees are required;
// presence, leave and holiday files may be absent.
func NewSourceRepository(dir string) compliance.SourceRepository {
	return &sourceRepositoryImpl{dir: dir}
}

func (r *sourceRepositoryImpl) LoadDataset(ctx context.Context, horizon calendar.Window) (*compliance.Dataset, error) {
	ds := &compliance.Dataset{Dropped: compliance.DropLog{}}

	err := r.each(ctx, FileOrgNodes, true, []string{"id", "level"}, func(row record) {
		ds.OrgNodes = append(ds.OrgNodes, orgtree.Node{
			ID:       row.get("id"),
			ParentID: row.get("parent_id"),
			Level:    orgtree.Level(row.get("level")),
			Code:     row.get("code"),
			Name:     row.get("name"),
		})
	}, compliance.EntityOrgNode, ds.Dropped)
	if err != nil {
		return nil, err
	}

	err = r.each(ctx, FileEmployees, true, []string{"id", "manager_id", "location", "hire_date"}, func(row record) {
		hire, err := calendar.Parse(row.get("hire_date"))
		if err != nil {
			ds.Dropped.Add(compliance.EntityEmployee, compliance.ReasonMalformed)
			return
		}
		emp := compliance.Employee{
			ID:        row.get("id"),
			ManagerID: row.get("manager_id"),
			Location:  row.get("location"),
			HireDate:  hire,
		}
		if s := row.get("termination_date"); s != "" {
			d, err := calendar.Parse(s)
			if err != nil {
				ds.Dropped.Add(compliance.EntityEmployee, compliance.ReasonMalformed)
				return
			}
			emp.TerminationDate = &d
		}
		ds.Employees = append(ds.Employees, emp)
	}, compliance.EntityEmployee, ds.Dropped)
	if err != nil {
		return nil, err
	}

	err = r.each(ctx, FilePresence, false, []string{"employee_id", "date"}, func(row record) {
		d, err := calendar.Parse(row.get("date"))
		if err != nil {
			ds.Dropped.Add(compliance.EntityPresence, compliance.ReasonMalformed)
			return
		}
		ds.Presence = append(ds.Presence, compliance.PresenceEvent{
			EmployeeID: row.get("employee_id"),
			Date:       d,
			Location:   row.get("location"),
		})
	}, compliance.EntityPresence, ds.Dropped)
	if err != nil {
		return nil, err
	}

	err = r.each(ctx, FileLeave, false, []string{"employee_id", "date"}, func(row record) {
		if status := row.get("status"); status != "" && !strings.EqualFold(status, "approved") {
			return
		}
		d, err := calendar.Parse(row.get("date"))
		if err != nil {
			ds.Dropped.Add(compliance.EntityLeave, compliance.ReasonMalformed)
			return
		}
		ds.Leave = append(ds.Leave, compliance.LeaveRecord{EmployeeID: row.get("employee_id"), Date: d})
	}, compliance.EntityLeave, ds.Dropped)
	if err != nil {
		return nil, err
	}

	err = r.each(ctx, FileHolidays, false, []string{"scope", "date"}, func(row record) {
		d, err := calendar.Parse(row.get("date"))
		if err != nil {
			ds.Dropped.Add(compliance.EntityHoliday, compliance.ReasonMalformed)
			return
		}
		ds.Holidays = append(ds.Holidays, compliance.Holiday{Scope: row.get("scope"), Date: d, Name: row.get("name")})
	}, compliance.EntityHoliday, ds.Dropped)
	if err != nil {
		return nil, err
	}

	return ds, nil
}

type record struct {
	columns map[string]int
	fields  []string
}

func (r record) get(name string) string {
	i, ok := r.columns[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// each streams the rows of one file to fn. Rows whose field count does not
// match the header are counted as malformed for entity.
func (r *sourceRepositoryImpl) each(ctx context.Context, name string, required bool, need []string, fn func(record), entity string, dropped compliance.DropLog) error {
	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: missing header", name)
		}
		return fmt.Errorf("read %s header: %w", name, err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range need {
		if _, ok := columns[c]; !ok {
			return fmt.Errorf("%s: missing column %q", name, c)
		}
	}

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				dropped.Add(entity, compliance.ReasonMalformed)
				continue
			}
			return fmt.Errorf("read %s line %d: %w", name, line, err)
		}
		fn(record{columns: columns, fields: fields})
	}
}
