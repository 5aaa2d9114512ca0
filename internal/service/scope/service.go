package scope

import (
	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/orgtree"
)

// anchorLevel is the org level a non-organization tier is rooted at.
var anchorLevel = map[compliance.RoleTier]orgtree.Level{
	compliance.RoleTierTeam:       orgtree.LevelTeam,
	compliance.RoleTierDepartment: orgtree.LevelLeader,
}

type ResolverImpl struct{}

func NewResolver() compliance.ScopeResolver {
	return &ResolverImpl{}
}

// Resolve derives the grant from verified claims only. view selects which
// tier the caller looks through and may never exceed the claimed tier.
func (r *ResolverImpl) Resolve(tree *orgtree.Index, principal compliance.Principal, view compliance.RoleTier) (*compliance.ScopeGrant, error) {
	if !principal.Tier.Valid() {
		return nil, compliance.ErrUnknownRoleTier
	}
	if view == "" {
		view = principal.Tier
	}
	if !view.Valid() {
		return nil, compliance.ErrUnknownRoleTier
	}
	if !principal.Tier.Covers(view) {
		return nil, compliance.ErrScopeViolation
	}

	grant := &compliance.ScopeGrant{Principal: principal.ID, Tier: view}
	if view == compliance.RoleTierOrganization {
		grant.Roots = tree.Roots()
		return grant, nil
	}

	root, ok := tree.NearestAt(principal.HomeNode, anchorLevel[view])
	if !ok {
		return nil, compliance.ErrScopeUnresolvable
	}
	grant.Roots = []string{root}
	return grant, nil
}

// Authorize checks a drill-down against the grant. Unknown nodes are
// reported as violations so callers cannot probe for node existence.
func (r *ResolverImpl) Authorize(tree *orgtree.Index, grant *compliance.ScopeGrant, drillDown string) ([]string, error) {
	if grant == nil || len(grant.Roots) == 0 {
		return nil, compliance.ErrScopeViolation
	}
	if drillDown == "" {
		roots := make([]string, len(grant.Roots))
		copy(roots, grant.Roots)
		return roots, nil
	}

	node, ok := tree.Node(drillDown)
	if !ok {
		return nil, compliance.ErrScopeViolation
	}
	for _, root := range grant.Roots {
		if !tree.IsWithin(drillDown, root) {
			continue
		}
		if node.Level == orgtree.LevelEmployee {
			return nil, compliance.ErrInvalidDrillDown
		}
		return []string{drillDown}, nil
	}
	return nil, compliance.ErrScopeViolation
}
