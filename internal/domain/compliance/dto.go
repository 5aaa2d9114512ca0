package compliance

import (
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/calendar"
	"github.com/shopspring/decimal"
)

// QueryRequest is the structured query sent by the dashboard renderer and the
// query assistant. Principal, Tier and HomeNode come from verified claims.
type QueryRequest struct {
	Principal       string `json:"-" validate:"required"`
	Tier            string `json:"-" validate:"required"`
	HomeNode        string `json:"-"`
	View            string `json:"view,omitempty"`
	Dimension       string `json:"dimension" validate:"required"`
	From            string `json:"from" validate:"required,datetime=2006-01-02"`
	To              string `json:"to" validate:"required,datetime=2006-01-02"`
	Granularity     string `json:"granularity,omitempty"`
	DrillDown       string `json:"drill_down,omitempty" validate:"omitempty,max=128"`
	SnapshotVersion string `json:"snapshot,omitempty" validate:"omitempty,uuid7"`
}

type QueryStatus string

const (
	StatusSuccess       QueryStatus = "success"
	StatusSuppressedAll QueryStatus = "suppressed_all"
)

type QueryResponse struct {
	Status QueryStatus   `json:"status"`
	Groups []GroupResult `json:"groups"`
	Meta   ResponseMeta  `json:"meta"`
}

// GroupResult never carries a real identifier. Numeric fields are nil when
// the group is suppressed.
type GroupResult struct {
	Label        string           `json:"label"`
	Ratio        *decimal.Decimal `json:"ratio"`
	PresentDays  *int             `json:"present_days"`
	EligibleDays *int             `json:"eligible_days"`
	MemberCount  *int             `json:"member_count"`
	Suppressed   bool             `json:"suppressed"`
	Tier         Tier             `json:"tier"`
	Trend        []TrendPoint     `json:"trend"`
}

type TrendPoint struct {
	Period     calendar.Window  `json:"period"`
	Ratio      *decimal.Decimal `json:"ratio"`
	Suppressed bool             `json:"suppressed"`
	Tier       Tier             `json:"tier"`
}

type OverallResult struct {
	Ratio        decimal.Decimal `json:"ratio"`
	PresentDays  int             `json:"present_days"`
	EligibleDays int             `json:"eligible_days"`
	MemberCount  int             `json:"member_count"`
	Tier         Tier            `json:"tier"`
}

type ResponseMeta struct {
	SnapshotVersion  string               `json:"snapshot_version"`
	LastUpdated      time.Time            `json:"last_updated"`
	Dimension        Dimension            `json:"dimension"`
	Granularity      calendar.Granularity `json:"granularity"`
	Window           calendar.Window      `json:"window"`
	View             RoleTier             `json:"view"`
	SuppressedLabels []string             `json:"suppressed_labels"`
	Approximate      bool                 `json:"approximate"`
	MinGroupSize     int                  `json:"min_group_size"`
	Overall          *OverallResult       `json:"overall"`
}

// SnapshotInfo is the operator view of the current snapshot.
type SnapshotInfo struct {
	Version      string           `json:"version"`
	RecomputedAt time.Time        `json:"recomputed_at"`
	Horizon      calendar.Window  `json:"horizon"`
	Retained     []string         `json:"retained_versions"`
	Summary      RecomputeSummary `json:"summary"`
}
