package compliance

import (
	"context"

	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

// QueryService answers scoped aggregate queries against the live snapshot.
type QueryService interface {
	// Query returns a success or suppressed_all response, or a typed error
	// for invalid input, scope violations and a missing snapshot.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// SnapshotInfo describes the snapshot currently being served
	SnapshotInfo(ctx context.Context) (*SnapshotInfo, error)
}

// RecomputeService rebuilds and publishes a snapshot from the sources.
type RecomputeService interface {
	Recompute(ctx context.Context) (*RecomputeSummary, error)
}

// ScopeResolver derives the subtrees a caller may traverse.
type ScopeResolver interface {
	Resolve(tree *orgtree.Index, principal Principal, view RoleTier) (*ScopeGrant, error)
	// Authorize returns the roots to aggregate under: the grant itself when
	// drillDown is empty, or drillDown when it lies inside the grant.
	Authorize(tree *orgtree.Index, grant *ScopeGrant, drillDown string) ([]string, error)
}
