package compliance

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

// EmployeeFacts holds the per-day eligibility and presence of one employee
// over the snapshot horizon. Present is always a subset of Eligible.
type EmployeeFacts struct {
	EmployeeID  string `json:"employee_id"`
	TeamID      string `json:"team_id"`
	Location    string `json:"location"`
	Country     string `json:"country,omitempty"`
	Approximate bool   `json:"approximate,omitempty"`
	Eligible    DaySet `json:"eligible"`
	Present     DaySet `json:"present"`
}

// Counts returns present and eligible days inside w.
func (f *EmployeeFacts) Counts(w calendar.Window) (present, eligible int) {
	return f.Present.CountIn(w), f.Eligible.CountIn(w)
}

// CellKey identifies the smallest unit suppression is decided on.
func (f *EmployeeFacts) CellKey() string {
	return f.TeamID + "\x00" + f.Location
}

type RecomputeSummary struct {
	Version              string          `json:"version"`
	RecomputedAt         time.Time       `json:"recomputed_at"`
	Horizon              calendar.Window `json:"horizon"`
	Employees            int             `json:"employees"`
	OrgNodes             int             `json:"org_nodes"`
	PresenceDays         int             `json:"presence_days"`
	ApproximateEmployees int             `json:"approximate_employees"`
	MinGroupSize         int             `json:"min_group_size"`
	Dropped              []DroppedRows   `json:"dropped"`
	DroppedTotal         int             `json:"dropped_total"`
	Duration             time.Duration   `json:"duration"`
}

// Snapshot is the immutable product of one recompute. It is shared between
// concurrent queries and must not be modified after publication.
type Snapshot struct {
	Version      string
	RecomputedAt time.Time
	Horizon      calendar.Window
	Tree         *orgtree.Index
	Facts        []EmployeeFacts
	Labels       []LabelAssignment
	Summary      RecomputeSummary

	factsByID map[string]int
	labelsBy  map[labelKey][]LabelAssignment
}

type labelKey struct {
	parent string
	window calendar.Window
}

// NewSnapshot sorts facts by employee ID and indexes them.
func NewSnapshot(version string, at time.Time, horizon calendar.Window, tree *orgtree.Index, facts []EmployeeFacts, labels []LabelAssignment, summary RecomputeSummary) *Snapshot {
	sort.Slice(facts, func(i, j int) bool { return facts[i].EmployeeID < facts[j].EmployeeID })
	s := &Snapshot{
		Version:      version,
		RecomputedAt: at,
		Horizon:      horizon,
		Tree:         tree,
		Facts:        facts,
		Labels:       labels,
		Summary:      summary,
	}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.factsByID = make(map[string]int, len(s.Facts))
	for i := range s.Facts {
		s.factsByID[s.Facts[i].EmployeeID] = i
	}
	s.labelsBy = make(map[labelKey][]LabelAssignment)
	for _, l := range s.Labels {
		k := labelKey{parent: l.ParentID, window: l.Window}
		s.labelsBy[k] = append(s.labelsBy[k], l)
	}
}

// LabelsFor returns the precomputed labels of the children of parentID over
// w in rank order. Roots are stored under the empty parent.
func (s *Snapshot) LabelsFor(parentID string, w calendar.Window) ([]LabelAssignment, bool) {
	labels, ok := s.labelsBy[labelKey{parent: parentID, window: w}]
	return labels, ok
}

func (s *Snapshot) FactsFor(employeeID string) (*EmployeeFacts, bool) {
	i, ok := s.factsByID[employeeID]
	if !ok {
		return nil, false
	}
	return &s.Facts[i], true
}

// FactsUnder returns facts of every employee below the given roots, in
// employee ID order. Overlapping roots are counted once.
func (s *Snapshot) FactsUnder(roots []string) []*EmployeeFacts {
	seen := make(map[string]struct{})
	var out []*EmployeeFacts
	for _, root := range roots {
		for _, id := range s.Tree.SubtreeAt(root, orgtree.LevelEmployee) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if f, ok := s.FactsFor(id); ok {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

type snapshotPayload struct {
	Version      string            `json:"version"`
	RecomputedAt time.Time         `json:"recomputed_at"`
	Horizon      calendar.Window   `json:"horizon"`
	Nodes        []orgtree.Node    `json:"nodes"`
	Facts        []EmployeeFacts   `json:"facts"`
	Labels       []LabelAssignment `json:"labels"`
	Summary      RecomputeSummary  `json:"summary"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	p := snapshotPayload{
		Version:      s.Version,
		RecomputedAt: s.RecomputedAt,
		Horizon:      s.Horizon,
		Facts:        s.Facts,
		Labels:       s.Labels,
		Summary:      s.Summary,
	}
	if s.Tree != nil {
		p.Nodes = s.Tree.Nodes()
	}
	return json.Marshal(p)
}

// UnmarshalJSON rebuilds the org index, so a persisted snapshot goes through
// the same integrity checks as a fresh one.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var p snapshotPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	tree, err := orgtree.Build(p.Nodes)
	if err != nil {
		return fmt.Errorf("restore snapshot %s: %w", p.Version, err)
	}
	*s = *NewSnapshot(p.Version, p.RecomputedAt, p.Horizon, tree, p.Facts, p.Labels, p.Summary)
	return nil
}
