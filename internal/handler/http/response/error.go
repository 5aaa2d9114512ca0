package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses. Nothing here ever
// substitutes a number for a failed query.
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var unavailable *compliance.SnapshotUnavailableError
	if errors.As(err, &unavailable) {
		ServiceUnavailable(w, "Compliance data is not available yet", unavailable.RetryAfter)
		return
	}

	switch {
	// Invalid requests
	case errors.Is(err, compliance.ErrUnknownDimension):
		BadRequest(w, err.Error(), map[string]string{"dimension": "must be one of team, leader, region, country, location"})
	case errors.Is(err, compliance.ErrUnknownGranularity):
		BadRequest(w, err.Error(), map[string]string{"granularity": "must be one of day, week, month"})
	case errors.Is(err, compliance.ErrInvalidWindow):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, compliance.ErrInvalidDrillDown):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, compliance.ErrDimensionTooCoarse):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, compliance.ErrUnknownRoleTier):
		BadRequest(w, err.Error(), nil)

	// Scope rejections
	case errors.Is(err, compliance.ErrScopeViolation):
		Forbidden(w, "Requested scope is outside your authorized scope")
	case errors.Is(err, compliance.ErrScopeUnresolvable):
		Forbidden(w, "Your home node cannot anchor the requested view")

	// Snapshot lifecycle
	case errors.Is(err, compliance.ErrSnapshotUnavailable):
		ServiceUnavailable(w, "Compliance data is not available yet", 0)
	case errors.Is(err, compliance.ErrSnapshotNotFound):
		NotFound(w, "Snapshot version not found or no longer retained")
	case errors.Is(err, compliance.ErrRecomputeInProgress):
		Conflict(w, "A recompute is already running")

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
