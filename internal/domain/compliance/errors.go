package compliance

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Invalid: rejected before any computation
	ErrUnknownDimension   = errors.New("unknown dimension")
	ErrInvalidWindow      = errors.New("invalid time window")
	ErrUnknownGranularity = errors.New("unknown granularity")
	ErrInvalidDrillDown   = errors.New("drill-down node must be an existing group node")
	ErrDimensionTooCoarse = errors.New("dimension is coarser than the queried scope")

	// Rejected: authorization failures
	ErrUnknownRoleTier   = errors.New("unknown role tier")
	ErrScopeViolation    = errors.New("requested scope is outside the caller's authorized scope")
	ErrScopeUnresolvable = errors.New("home node cannot anchor the claimed role tier")

	ErrSnapshotUnavailable = errors.New("no complete snapshot is available")
	ErrSnapshotNotFound    = errors.New("snapshot version not found")
	ErrDataIntegrity       = errors.New("data integrity violation")
	ErrRecomputeInProgress = errors.New("a recompute is already running")
)

// SnapshotUnavailableError is returned instead of an empty result while no
// snapshot has been published.
type SnapshotUnavailableError struct {
	RetryAfter time.Duration
}

func (e *SnapshotUnavailableError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrSnapshotUnavailable, e.RetryAfter)
}

func (e *SnapshotUnavailableError) Unwrap() error {
	return ErrSnapshotUnavailable
}

// DataIntegrityError aborts a recompute; the previous snapshot stays live.
type DataIntegrityError struct {
	Kind     string
	Entity   string
	EntityID string
	Err      error
}

func (e *DataIntegrityError) Error() string {
	msg := fmt.Sprintf("data integrity: %s %s %q", e.Kind, e.Entity, e.EntityID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataIntegrityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDataIntegrity}
	}
	return []error{ErrDataIntegrity, e.Err}
}
