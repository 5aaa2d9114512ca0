package compliance

import "strings"

// RoleTier is the organisational vantage point claimed by a caller.
type RoleTier string

const (
	RoleTierTeam         RoleTier = "team"
	RoleTierDepartment   RoleTier = "department"
	RoleTierOrganization RoleTier = "organization"
)

var roleTierRank = map[RoleTier]int{
	RoleTierTeam:         1,
	RoleTierDepartment:   2,
	RoleTierOrganization: 3,
}

func ParseRoleTier(s string) (RoleTier, error) {
	t := RoleTier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleTierRank[t]; !ok {
		return "", ErrUnknownRoleTier
	}
	return t, nil
}

func (t RoleTier) Valid() bool {
	_, ok := roleTierRank[t]
	return ok
}

// Covers reports whether a caller holding t may also take the view of o.
func (t RoleTier) Covers(o RoleTier) bool {
	return t.Valid() && o.Valid() && roleTierRank[t] >= roleTierRank[o]
}

// Principal is what the identity collaborator vouches for.
type Principal struct {
	ID       string
	Tier     RoleTier
	HomeNode string
}

// ScopeGrant is derived per request and never persisted.
type ScopeGrant struct {
	Principal string   `json:"principal"`
	Tier      RoleTier `json:"tier"`
	Roots     []string `json:"roots"`
}

type Permission string

const (
	PermissionComplianceQuery Permission = "compliance.query"
	PermissionSnapshot        Permission = "compliance.snapshot"
	PermissionRecompute       Permission = "compliance.recompute"
)

var TierPermissions = map[RoleTier][]Permission{
	RoleTierOrganization: {
		PermissionComplianceQuery,
		PermissionSnapshot,
		PermissionRecompute,
	},
	RoleTierDepartment: {
		PermissionComplianceQuery,
		PermissionSnapshot,
	},
	RoleTierTeam: {
		PermissionComplianceQuery,
	},
}

func HasPermission(tier RoleTier, permission Permission) bool {
	for _, p := range TierPermissions[tier] {
		if p == permission {
			return true
		}
	}
	return false
}
