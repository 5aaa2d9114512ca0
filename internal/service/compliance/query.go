package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxWindowDays = 366
	DefaultQueryTimeout  = 2 * time.Second

	ratioPlaces = 4
)

type QueryConfig struct {
	MaxWindowDays int
	Timeout       time.Duration
	MinGroupSize  int
}

type QueryServiceImpl struct {
	store   *Store
	scope   compliance.ScopeResolver
	filter  SuppressionFilter
	metrics *metrics.Metrics
	cfg     QueryConfig
}

func NewQueryService(store *Store, scope compliance.ScopeResolver, m *metrics.Metrics, cfg QueryConfig) compliance.QueryService {
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = DefaultMaxWindowDays
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultQueryTimeout
	}
	filter := NewSuppressionFilter(cfg.MinGroupSize)
	cfg.MinGroupSize = filter.MinGroupSize
	return &QueryServiceImpl{
		store:   store,
		scope:   scope,
		filter:  filter,
		metrics: m,
		cfg:     cfg,
	}
}

type parsedQuery struct {
	principal   compliance.Principal
	view        compliance.RoleTier
	dimension   compliance.Dimension
	granularity calendar.Granularity
	window      calendar.Window
}

func (s *QueryServiceImpl) parse(req compliance.QueryRequest) (*parsedQuery, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	q := &parsedQuery{}
	var err error
	if q.dimension, err = compliance.ParseDimension(req.Dimension); err != nil {
		return nil, err
	}
	if q.granularity, err = calendar.ParseGranularity(req.Granularity); err != nil {
		return nil, compliance.ErrUnknownGranularity
	}
	if q.window, err = calendar.ParseWindow(req.From, req.To); err != nil {
		return nil, fmt.Errorf("%w: %v", compliance.ErrInvalidWindow, err)
	}
	if q.window.Days() > s.cfg.MaxWindowDays {
		return nil, fmt.Errorf("%w: window spans %d days, at most %d allowed", compliance.ErrInvalidWindow, q.window.Days(), s.cfg.MaxWindowDays)
	}

	tier, err := compliance.ParseRoleTier(req.Tier)
	if err != nil {
		return nil, err
	}
	q.principal = compliance.Principal{ID: req.Principal, Tier: tier, HomeNode: strings.TrimSpace(req.HomeNode)}
	if strings.TrimSpace(req.View) != "" {
		if q.view, err = compliance.ParseRoleTier(req.View); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// Query runs validate, acquire, resolve scope, roll up, suppress, anonymize
// and shape, in that order. Nothing is computed for a request that fails an
// earlier step.
func (s *QueryServiceImpl) Query(ctx context.Context, req compliance.QueryRequest) (*compliance.QueryResponse, error) {
	start := time.Now()
	outcome := "error"
	suppressed := 0
	defer func() {
		s.metrics.ObserveQuery(outcome, time.Since(start), suppressed)
	}()

	q, err := s.parse(req)
	if err != nil {
		outcome = "invalid"
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	snap, err := s.store.Acquire(acquireCtx, req.SnapshotVersion)
	cancel()
	if err != nil {
		outcome = "unavailable"
		return nil, err
	}
	if !snap.Horizon.Covers(q.window) {
		outcome = "invalid"
		return nil, fmt.Errorf("%w: %s is outside the snapshot horizon %s", compliance.ErrInvalidWindow, q.window, snap.Horizon)
	}

	grant, err := s.scope.Resolve(snap.Tree, q.principal, q.view)
	if err != nil {
		outcome = "rejected"
		slog.Warn("Compliance scope rejected",
			"principal", q.principal.ID, "tier", q.principal.Tier, "view", q.view, "home_node", q.principal.HomeNode, "error", err)
		return nil, err
	}
	roots, err := s.scope.Authorize(snap.Tree, grant, req.DrillDown)
	if err != nil {
		outcome = "rejected"
		if errors.Is(err, compliance.ErrInvalidDrillDown) {
			outcome = "invalid"
		}
		slog.Warn("Compliance drill-down rejected",
			"principal", q.principal.ID, "tier", grant.Tier, "drill_down", req.DrillDown, "error", err)
		return nil, err
	}

	key, expected, err := groupBy(snap.Tree, q.dimension, roots)
	if err != nil {
		outcome = "invalid"
		return nil, err
	}
	parent := ""
	if len(roots) == 1 {
		parent = roots[0]
	}

	facts := snap.FactsUnder(roots)
	res := s.filter.aggregate(parent, facts, q.window, q.window.Buckets(q.granularity), key, expected...)
	labels := s.labels(snap, parent, q, res.Groups)

	resp := s.shape(snap, q, grant.Tier, res, labels)
	suppressed = len(resp.Meta.SuppressedLabels)
	outcome = string(resp.Status)
	return resp, nil
}

// groupBy returns how facts map to groups for the dimension and the groups
// that must be reported even when empty. A group node must lie inside one of
// the roots; employees without one are left out.
func groupBy(tree *orgtree.Index, dim compliance.Dimension, roots []string) (groupKeyFunc, []string, error) {
	level, ok := dim.Level()
	if !ok {
		return func(f *compliance.EmployeeFacts) string { return f.Location }, nil, nil
	}

	if len(roots) == 1 {
		if n, _ := tree.Node(roots[0]); n.Level.Rank() < level.Rank() {
			return nil, nil, compliance.ErrDimensionTooCoarse
		}
	}

	var expected []string
	for _, root := range roots {
		expected = append(expected, tree.SubtreeAt(root, level)...)
	}
	key := func(f *compliance.EmployeeFacts) string {
		id, ok := tree.NearestAt(f.EmployeeID, level)
		if !ok {
			return ""
		}
		for _, root := range roots {
			if tree.IsWithin(id, root) {
				return id
			}
		}
		return ""
	}
	return key, expected, nil
}

// labels ranks the groups as they will be shown. The assignment stored with
// the snapshot is returned only when it is identical to that ranking; trend
// buckets can withhold a cell the monthly pass kept, and a stored rank must
// never reflect a value the response suppresses.
func (s *QueryServiceImpl) labels(snap *compliance.Snapshot, parent string, q *parsedQuery, groups []groupAggregate) []compliance.LabelAssignment {
	values := make([]compliance.Metric, len(groups))
	for i, g := range groups {
		values[i] = g.Metric
	}
	ranked := Anonymize(parent, q.window, q.dimension.LabelPrefix(), values)

	if _, isLevel := q.dimension.Level(); isLevel && snap.Summary.MinGroupSize == s.filter.MinGroupSize {
		if stored, ok := snap.LabelsFor(parent, q.window); ok && sameRanking(stored, ranked) {
			return stored
		}
	}
	return ranked
}

func sameRanking(stored, ranked []compliance.LabelAssignment) bool {
	if len(stored) != len(ranked) {
		return false
	}
	for i := range stored {
		if stored[i].NodeID != ranked[i].NodeID || stored[i].Label != ranked[i].Label || stored[i].Rank != ranked[i].Rank {
			return false
		}
	}
	return true
}

func (s *QueryServiceImpl) shape(snap *compliance.Snapshot, q *parsedQuery, view compliance.RoleTier, res aggregateResult, labels []compliance.LabelAssignment) *compliance.QueryResponse {
	byID := make(map[string]groupAggregate, len(res.Groups))
	for _, g := range res.Groups {
		byID[g.ID] = g
	}

	resp := &compliance.QueryResponse{
		Status: compliance.StatusSuccess,
		Groups: make([]compliance.GroupResult, 0, len(labels)),
		Meta: compliance.ResponseMeta{
			SnapshotVersion:  snap.Version,
			LastUpdated:      snap.RecomputedAt,
			Dimension:        q.dimension,
			Granularity:      q.granularity,
			Window:           q.window,
			View:             view,
			SuppressedLabels: []string{},
			Approximate:      res.Approximate,
			MinGroupSize:     s.filter.MinGroupSize,
		},
	}

	visible := 0
	for _, l := range labels {
		g := byID[l.NodeID]
		resp.Groups = append(resp.Groups, shapeGroup(l.Label, g))
		if g.Metric.Suppressed {
			resp.Meta.SuppressedLabels = append(resp.Meta.SuppressedLabels, l.Label)
			continue
		}
		visible++
	}

	if visible == 0 {
		resp.Status = compliance.StatusSuppressedAll
	}
	if o := res.Overall; !o.Suppressed && o.Eligible > 0 && visible > 0 {
		resp.Meta.Overall = &compliance.OverallResult{
			Ratio:        ratio(o),
			PresentDays:  o.Present,
			EligibleDays: o.Eligible,
			MemberCount:  o.Members,
			Tier:         o.Tier(),
		}
	}
	return resp
}

func shapeGroup(label string, g groupAggregate) compliance.GroupResult {
	out := compliance.GroupResult{
		Label:      label,
		Suppressed: g.Metric.Suppressed,
		Tier:       g.Metric.Tier(),
		Trend:      make([]compliance.TrendPoint, len(g.Trend)),
	}
	for i, p := range g.Trend {
		out.Trend[i] = compliance.TrendPoint{Period: p.Window, Suppressed: p.Suppressed, Tier: p.Tier()}
		if !p.Suppressed && p.Eligible > 0 {
			r := ratio(p)
			out.Trend[i].Ratio = &r
		}
	}
	if g.Metric.Suppressed || g.Metric.Eligible == 0 {
		return out
	}
	r := ratio(g.Metric)
	present, eligible, members := g.Metric.Present, g.Metric.Eligible, g.Metric.Members
	out.Ratio = &r
	out.PresentDays = &present
	out.EligibleDays = &eligible
	out.MemberCount = &members
	return out
}

func ratio(m compliance.Metric) decimal.Decimal {
	return decimal.NewFromInt(int64(m.Present)).DivRound(decimal.NewFromInt(int64(m.Eligible)), ratioPlaces)
}

func (s *QueryServiceImpl) SnapshotInfo(ctx context.Context) (*compliance.SnapshotInfo, error) {
	snap := s.store.Current()
	if snap == nil {
		return nil, &compliance.SnapshotUnavailableError{RetryAfter: s.store.retryAfter}
	}
	return &compliance.SnapshotInfo{
		Version:      snap.Version,
		RecomputedAt: snap.RecomputedAt,
		Horizon:      snap.Horizon,
		Retained:     s.store.Versions(),
		Summary:      snap.Summary,
	}, nil
}
