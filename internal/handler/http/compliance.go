package http

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/compliance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/compliance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type ComplianceHandler interface {
	// Query handles GET /compliance/query
	Query(w http.ResponseWriter, r *http.Request)
	// Snapshot handles GET /compliance/snapshot
	Snapshot(w http.ResponseWriter, r *http.Request)
	// Recompute handles POST /compliance/recompute
	Recompute(w http.ResponseWriter, r *http.Request)
}

type complianceHandlerImpl struct {
	queryService     compliance.QueryService
	recomputeService compliance.RecomputeService
}

func NewComplianceHandler(queryService compliance.QueryService, recomputeService compliance.RecomputeService) ComplianceHandler {
	return &complianceHandlerImpl{
		queryService:     queryService,
		recomputeService: recomputeService,
	}
}

// Query answers one structured aggregate query. Identity comes only from the
// verified token; query parameters cannot override it.
func (h *complianceHandlerImpl) Query(w http.ResponseWriter, r *http.Request) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}
	principal, err := jwt.PrincipalFromClaims(claims)
	if err != nil {
		response.Unauthorized(w, err.Error())
		return
	}

	q := r.URL.Query()
	req := compliance.QueryRequest{
		Principal:       principal.ID,
		Tier:            string(principal.Tier),
		HomeNode:        principal.HomeNode,
		View:            q.Get("view"),
		Dimension:       q.Get("dimension"),
		From:            q.Get("from"),
		To:              q.Get("to"),
		Granularity:     q.Get("granularity"),
		DrillDown:       q.Get("drill_down"),
		SnapshotVersion: q.Get("snapshot"),
	}

	result, err := h.queryService.Query(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *complianceHandlerImpl) Snapshot(w http.ResponseWriter, r *http.Request) {
	info, err := h.queryService.SnapshotInfo(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, info)
}

// Recompute runs to completion even if the caller goes away.
func (h *complianceHandlerImpl) Recompute(w http.ResponseWriter, r *http.Request) {
	summary, err := h.recomputeService.Recompute(context.WithoutCancel(r.Context()))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, summary)
}
