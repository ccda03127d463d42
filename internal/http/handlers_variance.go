package http

import (
	"net/http"
	"strings"

	"presupuesto/internal/log"
	"presupuesto/internal/variance"
)

func (s *Server) scope(r *http.Request) (variance.Scope, error) {
	params, err := ParseScopeParams(r.URL.Query(), s.now())
	if err != nil {
		return variance.Scope{}, err
	}
	return params.Scope(s.permitted(r), s.now())
}

// handleSpend returns paid and payable totals for the scope.
func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scope(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	h, err := s.svc.SpendHeadline(r.Context(), sc.Filter, sc.Months, sc.Year)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(headlineJSON{Year: sc.Year, Months: sc.Months, Paid: h.Paid, Payable: h.Payable}).Write(w)
}

func (s *Server) handleVariance(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scope(r)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	sum, err := s.svc.Variance(r.Context(), sc)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}

func (s *Server) handleVarianceByCategory(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scope(r)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	out, err := s.svc.VarianceByCategory(r.Context(), sc)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	NewResponse().JSON(out).Write(w)
}

// handleVarianceByBrand reconciles each brand separately. An optional
// comma-separated brands parameter narrows the permitted set.
func (s *Server) handleVarianceByBrand(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scope(r)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	var brands []string
	if raw := strings.TrimSpace(r.URL.Query().Get("brands")); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brands = append(brands, b)
			}
		}
	}
	out, err := s.svc.VarianceByBrand(r.Context(), sc, brands)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	NewResponse().JSON(out).Write(w)
}

// handleRefreshExceeds recomputes the over-budget flag of every projection
// in the scope.
func (s *Server) handleRefreshExceeds(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scope(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	n, err := s.svc.RefreshExceeds(r.Context(), sc)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(map[string]int{"updated": n}).Write(w)
}
