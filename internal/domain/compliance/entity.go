package compliance

import (
	"sort"
	"strings"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

// Employee is one roster row. ManagerID points at the org node the employee
// reports into, normally a team node.
type Employee struct {
	ID              string         `json:"id"`
	ManagerID       string         `json:"manager_id"`
	Location        string         `json:"location"`
	HireDate        calendar.Date  `json:"hire_date"`
	TerminationDate *calendar.Date `json:"termination_date,omitempty"`
}

// ActiveIn clips w to the employee's employment span.
func (e Employee) ActiveIn(w calendar.Window) (calendar.Window, bool) {
	span := calendar.Window{From: e.HireDate, To: w.To}
	if e.TerminationDate != nil {
		span.To = *e.TerminationDate
	}
	if span.From.After(span.To) {
		return calendar.Window{}, false
	}
	return w.Intersect(span)
}

func (e Employee) Equal(o Employee) bool {
	if e.ID != o.ID || e.ManagerID != o.ManagerID || e.Location != o.Location || e.HireDate != o.HireDate {
		return false
	}
	switch {
	case e.TerminationDate == nil && o.TerminationDate == nil:
		return true
	case e.TerminationDate == nil || o.TerminationDate == nil:
		return false
	default:
		return *e.TerminationDate == *o.TerminationDate
	}
}

// PresenceEvent is a raw swipe or check-in; many may exist per day.
type PresenceEvent struct {
	EmployeeID string        `json:"employee_id"`
	Date       calendar.Date `json:"date"`
	Location   string        `json:"location,omitempty"`
}

// LeaveRecord marks one approved day of absence.
type LeaveRecord struct {
	EmployeeID string        `json:"employee_id"`
	Date       calendar.Date `json:"date"`
}

type Holiday = calendar.Holiday

// Dataset is the raw input of one recompute cycle. Dropped carries rows the
// source could not even decode.
type Dataset struct {
	Employees []Employee
	OrgNodes  []orgtree.Node
	Presence  []PresenceEvent
	Leave     []LeaveRecord
	Holidays  []Holiday
	Dropped   DropLog
}

type Dimension string

const (
	DimensionTeam     Dimension = "team"
	DimensionLeader   Dimension = "leader"
	DimensionRegion   Dimension = "region"
	DimensionCountry  Dimension = "country"
	DimensionLocation Dimension = "location"
)

func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case DimensionTeam, DimensionLeader, DimensionRegion, DimensionCountry, DimensionLocation:
		return d, nil
	default:
		return "", ErrUnknownDimension
	}
}

// Level returns the org level a dimension groups by. Location is an employee
// attribute and has no level.
func (d Dimension) Level() (orgtree.Level, bool) {
	switch d {
	case DimensionTeam:
		return orgtree.LevelTeam, true
	case DimensionLeader:
		return orgtree.LevelLeader, true
	case DimensionRegion:
		return orgtree.LevelRegion, true
	case DimensionCountry:
		return orgtree.LevelCountry, true
	default:
		return "", false
	}
}

func (d Dimension) LabelPrefix() string {
	if d == "" {
		return "Group"
	}
	s := string(d)
	return strings.ToUpper(s[:1]) + s[1:]
}

// DimensionForLevel maps an org level back to the dimension that groups by it.
func DimensionForLevel(l orgtree.Level) (Dimension, bool) {
	switch l {
	case orgtree.LevelTeam:
		return DimensionTeam, true
	case orgtree.LevelLeader:
		return DimensionLeader, true
	case orgtree.LevelRegion:
		return DimensionRegion, true
	case orgtree.LevelCountry:
		return DimensionCountry, true
	default:
		return "", false
	}
}

type Tier string

const (
	TierOnTarget         Tier = "on_target"
	TierNearTarget       Tier = "near_target"
	TierBelowTarget      Tier = "below_target"
	TierAtRisk           Tier = "at_risk"
	TierInsufficientData Tier = "insufficient_data"
)

// Classify maps present/eligible to a tier. Cut points are 0.75, 0.70 and
// 0.65 with inclusive lower bounds, compared exactly in integers.
func Classify(present, eligible int) Tier {
	if eligible <= 0 {
		return TierInsufficientData
	}
	p, e := int64(present)*100, int64(eligible)
	switch {
	case p >= 75*e:
		return TierOnTarget
	case p >= 70*e:
		return TierNearTarget
	case p >= 65*e:
		return TierBelowTarget
	default:
		return TierAtRisk
	}
}

// Metric is a compliance value for one scope and window. It is produced by a
// pure rollup and never updated in place.
type Metric struct {
	ScopeID    string          `json:"scope_id"`
	Window     calendar.Window `json:"window"`
	Present    int             `json:"present"`
	Eligible   int             `json:"eligible"`
	Members    int             `json:"members"`
	Suppressed bool            `json:"suppressed"`
}

// Ratio is undefined when there are no eligible days or the metric is
// suppressed.
func (m Metric) Ratio() (float64, bool) {
	if m.Suppressed || m.Eligible <= 0 {
		return 0, false
	}
	return float64(m.Present) / float64(m.Eligible), true
}

func (m Metric) Tier() Tier {
	if m.Suppressed {
		return TierInsufficientData
	}
	return Classify(m.Present, m.Eligible)
}

// CompareRatio orders a and b by ratio without floating point: negative when
// a < b. Undefined ratios sort lowest.
func CompareRatio(a, b Metric) int {
	_, aok := a.Ratio()
	_, bok := b.Ratio()
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	l := int64(a.Present) * int64(b.Eligible)
	r := int64(b.Present) * int64(a.Eligible)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// LabelAssignment maps a real node to its display label under one parent and
// window.
type LabelAssignment struct {
	ParentID string          `json:"parent_id"`
	Window   calendar.Window `json:"window"`
	NodeID   string          `json:"node_id"`
	Label    string          `json:"label"`
	Rank     int             `json:"rank"`
}

// DropLog counts rows discarded during ingestion, keyed by entity and reason.
type DropLog map[DropKey]int

type DropKey struct {
	Entity string
	Reason string
}

type DroppedRows struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

func (d DropLog) Add(entity, reason string) {
	d[DropKey{Entity: entity, Reason: reason}]++
}

func (d DropLog) Merge(o DropLog) {
	for k, v := range o {
		d[k] += v
	}
}

func (d DropLog) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

func (d DropLog) Sorted() []DroppedRows {
	out := make([]DroppedRows, 0, len(d))
	for k, v := range d {
		out = append(out, DroppedRows{Entity: k.Entity, Reason: k.Reason, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

const (
	EntityEmployee = "employee"
	EntityOrgNode  = "org_node"
	EntityPresence = "presence"
	EntityLeave    = "leave"
	EntityHoliday  = "holiday"

	ReasonMalformed     = "malformed"
	ReasonDuplicate     = "duplicate"
	ReasonUnknownTarget = "unknown_reference"
	ReasonOutOfHorizon  = "outside_horizon"
	ReasonNotUnderTeam  = "manager_not_team"
)
