package http

import (
	"net/http"

	"presupuesto/internal/core"
	"presupuesto/internal/visibility"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

// handleReady pings the store when the backend has one.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.fail(w, r, "ready", err)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// handleCatalog lists the caller's brands and the category taxonomy.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	permitted := visibility.New(s.permitted(r))
	out := catalogJSON{Brands: []brandJSON{}}
	for _, b := range s.catalog.DomainBrands() {
		if permitted.Permits(b.Name) {
			out.Brands = append(out.Brands, brandJSON{ID: b.ID, Name: b.Name})
		}
	}
	for _, c := range core.Categories() {
		out.Categories = append(out.Categories, catalogCategoryJSON{
			ID:            int(c),
			Name:          c.String(),
			Subcategories: c.Subcategories(),
		})
	}
	NewResponse().JSON(out).Write(w)
}
