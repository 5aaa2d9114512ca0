package compliance

import (
	"errors"
	"sort"
	"strings"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

// cleanInput is a dataset after row-level validation. Rows that cannot be
// used are counted in dropped; conflicts that make the whole batch
// untrustworthy are returned as errors instead.
type cleanInput struct {
	tree      *orgtree.Index
	orgNodes  int
	employees map[string]compliance.Employee
	presence  map[string][]compliance.PresenceEvent
	leave     map[string][]calendar.Date
	holidays  []compliance.Holiday
	dropped   compliance.DropLog
}

func sanitize(ds *compliance.Dataset, horizon calendar.Window) (*cleanInput, error) {
	dropped := make(compliance.DropLog)
	dropped.Merge(ds.Dropped)

	nodes, err := sanitizeOrgNodes(ds.OrgNodes, dropped)
	if err != nil {
		return nil, err
	}
	employees, err := sanitizeEmployees(ds.Employees, nodes, dropped)
	if err != nil {
		return nil, err
	}

	all := make([]orgtree.Node, 0, len(nodes)+len(employees))
	for _, n := range nodes {
		all = append(all, n)
	}
	for _, e := range employees {
		all = append(all, orgtree.Node{ID: e.ID, ParentID: e.ManagerID, Level: orgtree.LevelEmployee})
	}
	tree, err := orgtree.Build(all)
	if err != nil {
		var ie *orgtree.IntegrityError
		if errors.As(err, &ie) {
			return nil, &compliance.DataIntegrityError{Kind: ie.Kind, Entity: compliance.EntityOrgNode, EntityID: ie.NodeID, Err: err}
		}
		return nil, err
	}

	return &cleanInput{
		tree:      tree,
		orgNodes:  len(nodes),
		employees: employees,
		presence:  sanitizePresence(ds.Presence, employees, horizon, dropped),
		leave:     sanitizeLeave(ds.Leave, employees, horizon, dropped),
		holidays:  sanitizeHolidays(ds.Holidays, dropped),
		dropped:   dropped,
	}, nil
}

func sanitizeOrgNodes(rows []orgtree.Node, dropped compliance.DropLog) (map[string]orgtree.Node, error) {
	out := make(map[string]orgtree.Node, len(rows))
	for _, n := range rows {
		n.ID = strings.TrimSpace(n.ID)
		n.ParentID = strings.TrimSpace(n.ParentID)
		level, ok := orgtree.ParseLevel(string(n.Level))
		if n.ID == "" || !ok || level == orgtree.LevelEmployee {
			dropped.Add(compliance.EntityOrgNode, compliance.ReasonMalformed)
			continue
		}
		n.Level = level
		if prev, dup := out[n.ID]; dup {
			if prev == n {
				dropped.Add(compliance.EntityOrgNode, compliance.ReasonDuplicate)
				continue
			}
			return nil, &compliance.DataIntegrityError{Kind: orgtree.KindDuplicateNode, Entity: compliance.EntityOrgNode, EntityID: n.ID}
		}
		out[n.ID] = n
	}
	return out, nil
}

func sanitizeEmployees(rows []compliance.Employee, nodes map[string]orgtree.Node, dropped compliance.DropLog) (map[string]compliance.Employee, error) {
	seen := make(map[string]compliance.Employee, len(rows))
	for _, e := range rows {
		e.ID = strings.TrimSpace(e.ID)
		e.ManagerID = strings.TrimSpace(e.ManagerID)
		e.Location = strings.TrimSpace(e.Location)
		if e.ID == "" || e.ManagerID == "" || e.Location == "" ||
			(e.TerminationDate != nil && e.TerminationDate.Before(e.HireDate)) {
			dropped.Add(compliance.EntityEmployee, compliance.ReasonMalformed)
			continue
		}
		if prev, dup := seen[e.ID]; dup {
			if prev.Equal(e) {
				dropped.Add(compliance.EntityEmployee, compliance.ReasonDuplicate)
				continue
			}
			return nil, &compliance.DataIntegrityError{Kind: "duplicate_employee", Entity: compliance.EntityEmployee, EntityID: e.ID}
		}
		if _, clash := nodes[e.ID]; clash {
			return nil, &compliance.DataIntegrityError{Kind: "id_collision", Entity: compliance.EntityEmployee, EntityID: e.ID}
		}
		seen[e.ID] = e
	}

	out := make(map[string]compliance.Employee, len(seen))
	for id, e := range seen {
		manager, ok := nodes[e.ManagerID]
		switch {
		case !ok:
			dropped.Add(compliance.EntityEmployee, compliance.ReasonUnknownTarget)
		case manager.Level != orgtree.LevelTeam:
			dropped.Add(compliance.EntityEmployee, compliance.ReasonNotUnderTeam)
		default:
			out[id] = e
		}
	}
	return out, nil
}

func sanitizePresence(rows []compliance.PresenceEvent, employees map[string]compliance.Employee, horizon calendar.Window, dropped compliance.DropLog) map[string][]compliance.PresenceEvent {
	seen := make(map[compliance.PresenceEvent]struct{}, len(rows))
	kept := make([]compliance.PresenceEvent, 0, len(rows))
	for _, ev := range rows {
		ev.EmployeeID = strings.TrimSpace(ev.EmployeeID)
		ev.Location = strings.TrimSpace(ev.Location)
		switch {
		case ev.EmployeeID == "":
			dropped.Add(compliance.EntityPresence, compliance.ReasonMalformed)
			continue
		case !horizon.Contains(ev.Date):
			dropped.Add(compliance.EntityPresence, compliance.ReasonOutOfHorizon)
			continue
		}
		if _, ok := employees[ev.EmployeeID]; !ok {
			dropped.Add(compliance.EntityPresence, compliance.ReasonUnknownTarget)
			continue
		}
		if _, dup := seen[ev]; dup {
			dropped.Add(compliance.EntityPresence, compliance.ReasonDuplicate)
			continue
		}
		seen[ev] = struct{}{}
		kept = append(kept, ev)
	}
	return groupPresence(kept)
}

func sanitizeLeave(rows []compliance.LeaveRecord, employees map[string]compliance.Employee, horizon calendar.Window, dropped compliance.DropLog) map[string][]calendar.Date {
	seen := make(map[compliance.LeaveRecord]struct{}, len(rows))
	kept := make([]compliance.LeaveRecord, 0, len(rows))
	for _, r := range rows {
		r.EmployeeID = strings.TrimSpace(r.EmployeeID)
		switch {
		case r.EmployeeID == "":
			dropped.Add(compliance.EntityLeave, compliance.ReasonMalformed)
			continue
		case !horizon.Contains(r.Date):
			dropped.Add(compliance.EntityLeave, compliance.ReasonOutOfHorizon)
			continue
		}
		if _, ok := employees[r.EmployeeID]; !ok {
			dropped.Add(compliance.EntityLeave, compliance.ReasonUnknownTarget)
			continue
		}
		if _, dup := seen[r]; dup {
			dropped.Add(compliance.EntityLeave, compliance.ReasonDuplicate)
			continue
		}
		seen[r] = struct{}{}
		kept = append(kept, r)
	}
	return groupLeave(kept)
}

func sanitizeHolidays(rows []compliance.Holiday, dropped compliance.DropLog) []compliance.Holiday {
	type key struct {
		scope string
		date  calendar.Date
	}
	seen := make(map[key]struct{}, len(rows))
	out := make([]compliance.Holiday, 0, len(rows))
	for _, h := range rows {
		h.Scope = strings.TrimSpace(h.Scope)
		if h.Scope == "" {
			dropped.Add(compliance.EntityHoliday, compliance.ReasonMalformed)
			continue
		}
		k := key{scope: strings.ToLower(h.Scope), date: h.Date}
		if _, dup := seen[k]; dup {
			dropped.Add(compliance.EntityHoliday, compliance.ReasonDuplicate)
			continue
		}
		seen[k] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].Date < out[j].Date
	})
	return out
}
