package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultHorizonDays = 400

type BuildOptions struct {
	Version      string
	RecomputedAt time.Time
	Horizon      calendar.Window
	MinGroupSize int
}

// BuildSnapshot turns one dataset into an immutable snapshot. It has no side
// effects: identical input and options always produce identical facts and
// labels, whatever the order of the input rows.
func BuildSnapshot(ctx context.Context, ds *compliance.Dataset, opts BuildOptions) (*compliance.Snapshot, error) {
	if ds == nil {
		return nil, errors.New("build snapshot: nil dataset")
	}
	in, err := sanitize(ds, opts.Horizon)
	if err != nil {
		return nil, err
	}

	facts, err := computeFacts(ctx, in, opts.Horizon)
	if err != nil {
		return nil, err
	}

	filter := NewSuppressionFilter(opts.MinGroupSize)
	labels := precomputeLabels(in.tree, facts, opts.Horizon, filter)

	summary := compliance.RecomputeSummary{
		Version:      opts.Version,
		RecomputedAt: opts.RecomputedAt,
		Horizon:      opts.Horizon,
		Employees:    len(facts),
		OrgNodes:     in.orgNodes,
		MinGroupSize: filter.MinGroupSize,
		Dropped:      in.dropped.Sorted(),
		DroppedTotal: in.dropped.Total(),
	}
	for i := range facts {
		summary.PresenceDays += facts[i].Present.Len()
		if facts[i].Approximate {
			summary.ApproximateEmployees++
		}
	}

	return compliance.NewSnapshot(opts.Version, opts.RecomputedAt, opts.Horizon, in.tree, facts, labels, summary), nil
}

// computeFacts evaluates every employee once over the horizon. Top-level
// subtrees are independent and run in parallel.
func computeFacts(ctx context.Context, in *cleanInput, horizon calendar.Window) ([]compliance.EmployeeFacts, error) {
	eligibility := NewEligibilityCalculator(calendar.NewResolver(in.holidays))
	roots := in.tree.Roots()
	parts := make([][]compliance.EmployeeFacts, len(roots))

	g, gCtx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			ids := in.tree.SubtreeAt(root, orgtree.LevelEmployee)
			out := make([]compliance.EmployeeFacts, 0, len(ids))
			for _, id := range ids {
				if err := gCtx.Err(); err != nil {
					return err
				}
				emp := in.employees[id]
				out = append(out, employeeFacts(in.tree, eligibility, emp, in.presence[id], in.leave[id], horizon))
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute employee facts: %w", err)
	}

	var facts []compliance.EmployeeFacts
	for _, p := range parts {
		facts = append(facts, p...)
	}
	return facts, nil
}

func employeeFacts(tree *orgtree.Index, eligibility *EligibilityCalculator, emp compliance.Employee, events []compliance.PresenceEvent, leave []calendar.Date, horizon calendar.Window) compliance.EmployeeFacts {
	country := countryOf(tree, emp.ID)
	team, _ := tree.NearestAt(emp.ID, orgtree.LevelTeam)

	elig := eligibility.Calculate(emp, country, horizon, leave)
	present := NormalizePresence(events, horizon)

	f := compliance.EmployeeFacts{
		EmployeeID:  emp.ID,
		TeamID:      team,
		Location:    emp.Location,
		Country:     country,
		Approximate: elig.IsActive && elig.Approximate,
		Eligible:    compliance.NewDaySet(horizon),
		Present:     compliance.NewDaySet(horizon),
	}
	for _, d := range elig.Dates {
		f.Eligible.Add(d)
	}
	for _, d := range present {
		if f.Eligible.Has(d) {
			f.Present.Add(d)
		}
	}
	return f
}

// countryOf returns the holiday scope of the employee's country: the country
// node's code, or its ID when no code is set.
func countryOf(tree *orgtree.Index, id string) string {
	cid, ok := tree.NearestAt(id, orgtree.LevelCountry)
	if !ok {
		return ""
	}
	n, _ := tree.Node(cid)
	if n.Code != "" {
		return n.Code
	}
	return n.ID
}

// precomputeLabels ranks the children of every group node, and the roots,
// per calendar month of the horizon.
func precomputeLabels(tree *orgtree.Index, facts []compliance.EmployeeFacts, horizon calendar.Window, filter SuppressionFilter) []compliance.LabelAssignment {
	ptrs := make([]*compliance.EmployeeFacts, len(facts))
	for i := range facts {
		ptrs[i] = &facts[i]
	}

	parents := []string{""}
	for _, n := range tree.Nodes() {
		if n.Level.Rank() > orgtree.LevelTeam.Rank() {
			parents = append(parents, n.ID)
		}
	}
	sort.Strings(parents[1:])

	var labels []compliance.LabelAssignment
	for _, parent := range parents {
		children := tree.Roots()
		scoped := ptrs
		if parent != "" {
			children = tree.Children(parent)
			scoped = factsWithin(tree, ptrs, parent)
		}
		if len(children) == 0 {
			continue
		}
		first, _ := tree.Node(children[0])
		dim, ok := compliance.DimensionForLevel(first.Level)
		if !ok {
			continue
		}

		owner := make(map[string]string)
		for _, c := range children {
			for _, id := range tree.SubtreeAt(c, orgtree.LevelEmployee) {
				owner[id] = c
			}
		}
		key := func(f *compliance.EmployeeFacts) string { return owner[f.EmployeeID] }

		for _, month := range horizon.MonthsOf() {
			res := filter.aggregate(parent, scoped, month, nil, key, children...)
			values := make([]compliance.Metric, len(res.Groups))
			for i, g := range res.Groups {
				values[i] = g.Metric
			}
			labels = append(labels, Anonymize(parent, month, dim.LabelPrefix(), values)...)
		}
	}
	return labels
}

func factsWithin(tree *orgtree.Index, facts []*compliance.EmployeeFacts, root string) []*compliance.EmployeeFacts {
	var out []*compliance.EmployeeFacts
	for _, f := range facts {
		if tree.IsWithin(f.EmployeeID, root) {
			out = append(out, f)
		}
	}
	return out
}

type RecomputeConfig struct {
	HorizonDays  int
	MinGroupSize int
	Retain       int
}

// Recomputer runs one recompute cycle at a time: load, build, persist, then
// publish. A failed cycle leaves the previously published snapshot live.
type Recomputer struct {
	source    compliance.SourceRepository
	snapshots compliance.SnapshotRepository
	store     *Store
	metrics   *metrics.Metrics
	cfg       RecomputeConfig
	now       func() time.Time

	mu sync.Mutex
}

// NewRecomputer wires a recompute cycle. snapshots may be nil, in which case
// snapshots are only published in memory.
func NewRecomputer(source compliance.SourceRepository, snapshots compliance.SnapshotRepository, store *Store, m *metrics.Metrics, cfg RecomputeConfig) *Recomputer {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 3
	}
	return &Recomputer{
		source:    source,
		snapshots: snapshots,
		store:     store,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (r *Recomputer) SetClock(now func() time.Time) {
	r.now = now
}

// Horizon is the window of days a snapshot computed at t covers.
func (r *Recomputer) Horizon(t time.Time) calendar.Window {
	end := calendar.FromTime(t)
	return calendar.Window{From: end.AddDays(-(r.cfg.HorizonDays - 1)), To: end}
}

func (r *Recomputer) Recompute(ctx context.Context) (*compliance.RecomputeSummary, error) {
	if !r.mu.TryLock() {
		return nil, compliance.ErrRecomputeInProgress
	}
	defer r.mu.Unlock()

	start := r.now()
	status := "failed"
	defer func() {
		r.metrics.ObserveRecompute(status, time.Since(start))
	}()

	horizon := r.Horizon(start)
	ds, err := r.source.LoadDataset(ctx, horizon)
	if err != nil {
		slog.Error("Failed to load compliance dataset", "horizon", horizon.String(), "error", err)
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	version, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate snapshot version: %w", err)
	}

	snap, err := BuildSnapshot(ctx, ds, BuildOptions{
		Version:      version.String(),
		RecomputedAt: start.UTC(),
		Horizon:      horizon,
		MinGroupSize: r.cfg.MinGroupSize,
	})
	if err != nil {
		if errors.Is(err, compliance.ErrDataIntegrity) {
			status = "integrity_error"
		}
		slog.Error("Recompute aborted, keeping previous snapshot", "error", err)
		return nil, err
	}
	snap.Summary.Duration = time.Since(start)

	for _, d := range snap.Summary.Dropped {
		r.metrics.AddDropped(d.Entity, d.Reason, d.Count)
	}
	if snap.Summary.DroppedTotal > 0 {
		slog.Warn("Dropped input rows during recompute", "version", snap.Version, "dropped", snap.Summary.DroppedTotal)
	}

	if r.snapshots != nil {
		if err := r.snapshots.Save(ctx, snap); err != nil {
			slog.Error("Failed to persist snapshot", "version", snap.Version, "error", err)
			return nil, fmt.Errorf("persist snapshot: %w", err)
		}
		if n, err := r.snapshots.Prune(ctx, r.cfg.Retain); err != nil {
			slog.Warn("Failed to prune old snapshots", "error", err)
		} else if n > 0 {
			slog.Info("Pruned old snapshots", "count", n)
		}
	}

	r.store.Publish(snap)
	r.metrics.SetSnapshotTime(snap.RecomputedAt)
	status = "success"

	slog.Info("Published compliance snapshot",
		"version", snap.Version,
		"employees", snap.Summary.Employees,
		"org_nodes", snap.Summary.OrgNodes,
		"approximate_employees", snap.Summary.ApproximateEmployees,
		"duration", snap.Summary.Duration.String(),
	)
	summary := snap.Summary
	return &summary, nil
}

// Restore publishes the newest persisted snapshot so queries can be served
// before the first scheduled recompute.
func (r *Recomputer) Restore(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}
	snap, err := r.snapshots.Latest(ctx)
	if err != nil {
		if errors.Is(err, compliance.ErrSnapshotNotFound) {
			slog.Info("No persisted snapshot to restore")
			return nil
		}
		return fmt.Errorf("restore snapshot: %w", err)
	}
	r.store.Publish(snap)
	r.metrics.SetSnapshotTime(snap.RecomputedAt)
	slog.Info("Restored compliance snapshot", "version", snap.Version, "recomputed_at", snap.RecomputedAt)
	return nil
}
