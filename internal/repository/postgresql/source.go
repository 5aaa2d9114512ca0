package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
	"golang.org/x/sync/errgroup"
)

type sourceRepositoryImpl struct {
	db *database.DB
}

func NewSourceRepository(db *database.DB) compliance.SourceRepository {
	return &sourceRepositoryImpl{db: db}
}

// LoadDataset reads the five source tables in parallel. Rows with NULL in a
// required column are counted as malformed and never reach the dataset;
// everything else is left to the ingest pass.
func (r *sourceRepositoryImpl) LoadDataset(ctx context.Context, horizon calendar.Window) (*compliance.Dataset, error) {
	var (
		nodes    []orgtree.Node
		emps     []compliance.Employee
		presence []compliance.PresenceEvent
		leave    []compliance.LeaveRecord
		holidays []compliance.Holiday

		nodeDrops, empDrops, presenceDrops, leaveDrops, holidayDrops = compliance.DropLog{}, compliance.DropLog{}, compliance.DropLog{}, compliance.DropLog{}, compliance.DropLog{}
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		nodes, err = r.loadOrgNodes(gCtx, nodeDrops)
		return err
	})
	g.Go(func() (err error) {
		emps, err = r.loadEmployees(gCtx, empDrops)
		return err
	})
	g.Go(func() (err error) {
		presence, err = r.loadPresence(gCtx, horizon, presenceDrops)
		return err
	})
	g.Go(func() (err error) {
		leave, err = r.loadLeave(gCtx, horizon, leaveDrops)
		return err
	})
	g.Go(func() (err error) {
		holidays, err = r.loadHolidays(gCtx, horizon, holidayDrops)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	dropped := compliance.DropLog{}
	for _, d := range []compliance.DropLog{nodeDrops, empDrops, presenceDrops, leaveDrops, holidayDrops} {
		dropped.Merge(d)
	}

	return &compliance.Dataset{
		Employees: emps,
		OrgNodes:  nodes,
		Presence:  presence,
		Leave:     leave,
		Holidays:  holidays,
		Dropped:   dropped,
	}, nil
}

func (r *sourceRepositoryImpl) loadOrgNodes(ctx context.Context, dropped compliance.DropLog) ([]orgtree.Node, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT id, parent_id, level, code, name
		FROM compliance_org_nodes
		WHERE deleted_at IS NULL
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query org nodes: %w", err)
	}
	defer rows.Close()

	var out []orgtree.Node
	for rows.Next() {
		var id, parentID, level, code, name *string
		if err := rows.Scan(&id, &parentID, &level, &code, &name); err != nil {
			return nil, fmt.Errorf("scan org node: %w", err)
		}
		if id == nil || level == nil {
			dropped.Add(compliance.EntityOrgNode, compliance.ReasonMalformed)
			continue
		}
		out = append(out, orgtree.Node{
			ID:       *id,
			ParentID: deref(parentID),
			Level:    orgtree.Level(*level),
			Code:     deref(code),
			Name:     deref(name),
		})
	}
	return out, rows.Err()
}

func (r *sourceRepositoryImpl) loadEmployees(ctx context.Context, dropped compliance.DropLog) ([]compliance.Employee, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT id, manager_id, location, hire_date, termination_date
		FROM compliance_employees
		WHERE deleted_at IS NULL
	`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	var out []compliance.Employee
	for rows.Next() {
		var id, managerID, location *string
		var hire, termination *time.Time
		if err := rows.Scan(&id, &managerID, &location, &hire, &termination); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		if id == nil || managerID == nil || location == nil || hire == nil {
			dropped.Add(compliance.EntityEmployee, compliance.ReasonMalformed)
			continue
		}
		emp := compliance.Employee{
			ID:        *id,
			ManagerID: *managerID,
			Location:  *location,
			HireDate:  calendar.FromTime(*hire),
		}
		if termination != nil {
			d := calendar.FromTime(*termination)
			emp.TerminationDate = &d
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (r *sourceRepositoryImpl) loadPresence(ctx context.Context, horizon calendar.Window, dropped compliance.DropLog) ([]compliance.PresenceEvent, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT employee_id, event_date, location
		FROM compliance_presence_events
		WHERE event_date IS NULL OR event_date BETWEEN $1 AND $2
	`
	rows, err := q.Query(ctx, query, horizon.From.Time(), horizon.To.Time())
	if err != nil {
		return nil, fmt.Errorf("query presence events: %w", err)
	}
	defer rows.Close()

	var out []compliance.PresenceEvent
	for rows.Next() {
		var employeeID, location *string
		var date *time.Time
		if err := rows.Scan(&employeeID, &date, &location); err != nil {
			return nil, fmt.Errorf("scan presence event: %w", err)
		}
		if employeeID == nil || date == nil {
			dropped.Add(compliance.EntityPresence, compliance.ReasonMalformed)
			continue
		}
		out = append(out, compliance.PresenceEvent{
			EmployeeID: *employeeID,
			Date:       calendar.FromTime(*date),
			Location:   deref(location),
		})
	}
	return out, rows.Err()
}

// loadLeave returns approved leave only; pending and rejected requests are
// not absences the engine excuses.
func (r *sourceRepositoryImpl) loadLeave(ctx context.Context, horizon calendar.Window, dropped compliance.DropLog) ([]compliance.LeaveRecord, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT employee_id, leave_date
		FROM compliance_leave_records
		WHERE status = 'approved'
		  AND (leave_date IS NULL OR leave_date BETWEEN $1 AND $2)
	`
	rows, err := q.Query(ctx, query, horizon.From.Time(), horizon.To.Time())
	if err != nil {
		return nil, fmt.Errorf("query leave records: %w", err)
	}
	defer rows.Close()

	var out []compliance.LeaveRecord
	for rows.Next() {
		var employeeID *string
		var date *time.Time
		if err := rows.Scan(&employeeID, &date); err != nil {
			return nil, fmt.Errorf("scan leave record: %w", err)
		}
		if employeeID == nil || date == nil {
			dropped.Add(compliance.EntityLeave, compliance.ReasonMalformed)
			continue
		}
		out = append(out, compliance.LeaveRecord{EmployeeID: *employeeID, Date: calendar.FromTime(*date)})
	}
	return out, rows.Err()
}

func (r *sourceRepositoryImpl) loadHolidays(ctx context.Context, horizon calendar.Window, dropped compliance.DropLog) ([]compliance.Holiday, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT scope, holiday_date, name
		FROM compliance_holidays
		WHERE holiday_date IS NULL OR holiday_date BETWEEN $1 AND $2
	`
	rows, err := q.Query(ctx, query, horizon.From.Time(), horizon.To.Time())
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var out []compliance.Holiday
	for rows.Next() {
		var scope, name *string
		var date *time.Time
		if err := rows.Scan(&scope, &date, &name); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		if scope == nil || date == nil {
			dropped.Add(compliance.EntityHoliday, compliance.ReasonMalformed)
			continue
		}
		out = append(out, compliance.Holiday{Scope: *scope, Date: calendar.FromTime(*date), Name: deref(name)})
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
