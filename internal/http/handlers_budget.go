package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"presupuesto/internal/budget"
	"presupuesto/internal/core"
	"presupuesto/internal/log"
	"presupuesto/internal/store"
	"presupuesto/internal/visibility"
)

// handleListBudgets returns the visible records of a year. With both brand
// and category it adds the month grid and the displayed base.
func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := s.now().Year()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			s.fail(w, r, log.OpRead, core.ErrInvalidYear)
			return
		}
		year = y
	}
	if err := core.ValidateYear(year); err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	brand := strings.TrimSpace(q.Get("brand"))
	filter := visibility.New(s.permitted(r))
	if brand != "" {
		if err := s.requireBrand(r, brand); err != nil {
			s.fail(w, r, log.OpRead, err)
			return
		}
		filter = filter.Scoped(brand)
	}

	var category core.Category
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		c, err := parseCategory(v)
		if err != nil {
			s.fail(w, r, log.OpRead, err)
			return
		}
		category = c
	}

	records, err := s.svc.Budgets().Query(r.Context(), store.BudgetFilter{Year: year, Brand: brand, Category: category})
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	out := budgetListJSON{Records: []budgetJSON{}}
	var visible []core.MonthlyBudget
	for _, b := range records {
		if filter.Visible(b.Brand) {
			visible = append(visible, b)
			out.Records = append(out.Records, toBudgetJSON(b))
		}
	}
	if brand != "" && category != 0 {
		grid := budget.MonthlyAmounts(visible)
		out.Monthly = grid[:]
		base := budget.DisplayBase(visible)
		out.DisplayBase = &base
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetJSON
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	b := req.toDomain(r.Header.Get(UserHeader))
	if err := s.requireBrand(r, b.Brand); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.svc.CreateBudget(r.Context(), b)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(toBudgetJSON(created)).Write(w)
}

// handleSaveBudget runs one edit session for the path's brand/category/year.
// A partial failure answers 207 with the per-month outcome.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	target, err := s.budgetTarget(r)
	if err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	var req editRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		s.fail(w, r, log.OpSave, err)
		return
	}

	res, err := s.svc.SaveBudget(r.Context(), target, edit, r.Header.Get(UserHeader))
	switch {
	case err == nil:
		NewResponse().JSON(toSaveResultJSON(res)).Write(w)
	case errors.Is(err, core.ErrPartialSave):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Budget saved partially",
			log.FieldBrand, target.Brand,
			log.FieldCategory, target.Category.String(),
			log.FieldYear, target.Year,
			"failed_months", res.Failed())
		NewResponse().Status(http.StatusMultiStatus).JSON(toSaveResultJSON(res)).Write(w)
	default:
		s.fail(w, r, log.OpSave, err)
	}
}

func (s *Server) handleCancelBudgetEdit(w http.ResponseWriter, r *http.Request) {
	target, err := s.budgetTarget(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.CancelBudgetEdit(target); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) budgetTarget(r *http.Request) (budget.Target, error) {
	category, err := parseCategory(pathParam(r, "category"))
	if err != nil {
		return budget.Target{}, err
	}
	year, err := pathInt(r, "year")
	if err != nil {
		return budget.Target{}, err
	}
	target := budget.Target{Brand: pathParam(r, "brand"), Category: category, Year: year}
	if err := target.Validate(); err != nil {
		return budget.Target{}, err
	}
	if err := s.requireBrand(r, target.Brand); err != nil {
		return budget.Target{}, err
	}
	return target, nil
}
