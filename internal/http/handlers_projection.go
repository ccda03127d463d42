package http

import (
	"net/http"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
)

func (s *Server) handleListProjections(w http.ResponseWriter, r *http.Request) {
	params, err := ParseScopeParams(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	sc, err := params.Scope(s.permitted(r), s.now())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	list, err := s.svc.Projections().ListByScope(r.Context(), sc.Filter, sc.Months, sc.Year)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	out := make([]projectionJSON, len(list))
	for i, p := range list {
		out[i] = toProjectionJSON(p)
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	p := req.toDomain()
	if err := s.requireBrand(r, p.Brand); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.svc.CreateProjection(r.Context(), p)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/projections/"+created.ID).
		JSON(toProjectionJSON(created)).
		Write(w)
}

func (s *Server) handleGetProjection(w http.ResponseWriter, r *http.Request) {
	p, err := s.visibleProjection(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toProjectionJSON(p)).Write(w)
}

// handleUpdateProjection replaces brand, period and line items. Moving a
// projection to another brand needs permission on both.
func (s *Server) handleUpdateProjection(w http.ResponseWriter, r *http.Request) {
	current, err := s.visibleProjection(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req projectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	p := req.toDomain()
	if err := s.requireBrand(r, p.Brand); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	p.ID = current.ID
	updated, err := s.svc.UpdateProjection(r.Context(), p)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(toProjectionJSON(updated)).Write(w)
}

func (s *Server) handleDeleteProjection(w http.ResponseWriter, r *http.Request) {
	current, err := s.visibleProjection(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.DeleteProjection(r.Context(), current.ID); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleApproveProjection(w http.ResponseWriter, r *http.Request) {
	current, err := s.visibleProjection(r)
	if err != nil {
		s.fail(w, r, log.OpApprove, err)
		return
	}
	approved, err := s.svc.ApproveProjection(r.Context(), current.ID)
	if err != nil {
		s.fail(w, r, log.OpApprove, err)
		return
	}
	NewResponse().JSON(toProjectionJSON(approved)).Write(w)
}

// handleProjectionRollup returns per-category totals with reimbursements
// kept apart from ordinary spend.
func (s *Server) handleProjectionRollup(w http.ResponseWriter, r *http.Request) {
	p, err := s.visibleProjection(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(toRollupJSON(p)).Write(w)
}

// visibleProjection loads the path's projection. One the caller may not see
// is reported as missing.
func (s *Server) visibleProjection(r *http.Request) (core.Projection, error) {
	p, err := s.svc.Projections().Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		return core.Projection{}, err
	}
	if err := s.requireBrand(r, p.Brand); err != nil {
		return core.Projection{}, core.ErrNotFound
	}
	return p, nil
}
