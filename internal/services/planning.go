// Package services wires the planning ledgers, the variance engine, event
// publishing and the result cache into the operations exposed to callers.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"presupuesto/internal/amqp"
	"presupuesto/internal/budget"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/projection"
	"presupuesto/internal/spend"
	"presupuesto/internal/variance"
	"presupuesto/internal/visibility"
)

// Publisher announces planning changes. A nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.PlanningEvent) error
}

type PlanningService struct {
	budgets     *budget.Ledger
	editor      *budget.Editor
	projections *projection.Ledger
	spend       *spend.Aggregator
	engine      *variance.Engine

	publisher Publisher
	results   cache.Cache[[]variance.Summary]
	now       func() time.Time
}

type Deps struct {
	Budgets     *budget.Ledger
	Editor      *budget.Editor
	Projections *projection.Ledger
	Spend       *spend.Aggregator
	Engine      *variance.Engine
	Publisher   Publisher
	Cache       cache.Cache[[]variance.Summary]
	Now         func() time.Time
}

func NewPlanningService(d Deps) *PlanningService {
	editor := d.Editor
	if editor == nil {
		editor = budget.NewEditor(d.Budgets)
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &PlanningService{
		budgets:     d.Budgets,
		editor:      editor,
		projections: d.Projections,
		spend:       d.Spend,
		engine:      d.Engine,
		publisher:   d.Publisher,
		results:     d.Cache,
		now:         now,
	}
}

// Budgets

func (s *PlanningService) Budgets() *budget.Ledger { return s.budgets }

func (s *PlanningService) CreateBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	created, err := s.budgets.Create(ctx, b)
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	s.invalidate(ctx, created.Year)
	ev := amqp.NewPlanningEvent(amqp.BudgetCreated, created.Brand, created.Year, s.now())
	ev.Month = created.Month
	ev.Category = created.Category.String()
	s.publish(ctx, ev)
	return created, nil
}

// SaveBudget runs one edit session for target through the editor: it opens
// the session, applies edit and saves it. A partial failure leaves the
// session open, so another category of the same brand/year stays blocked
// until this one is saved again or cancelled.
func (s *PlanningService) SaveBudget(ctx context.Context, target budget.Target, edit budget.Edit, user string) (budget.SaveResult, error) {
	if err := s.stage(target, edit); err != nil {
		if !errors.Is(err, budget.ErrSessionActive) {
			_ = s.editor.Cancel(target)
		}
		return budget.SaveResult{}, err
	}
	res, err := s.editor.Save(ctx, target, user)
	if err != nil && !errors.Is(err, core.ErrPartialSave) {
		_ = s.editor.Cancel(target)
		return res, err
	}
	if saved := len(res.Months) - len(res.Failed()); saved > 0 {
		s.invalidate(ctx, target.Year)
		ev := amqp.NewPlanningEvent(amqp.BudgetSaved, target.Brand, target.Year, s.now())
		ev.Category = target.Category.String()
		s.publish(ctx, ev)
		s.refreshExceeds(ctx, visibility.Single(target.Brand), nil, target.Year)
	}
	return res, err
}

// CancelBudgetEdit discards the open session for target.
func (s *PlanningService) CancelBudgetEdit(target budget.Target) error {
	return s.editor.Cancel(target)
}

func (s *PlanningService) stage(target budget.Target, edit budget.Edit) error {
	switch v := edit.(type) {
	case budget.BaseEdit:
		return s.editor.EnterBase(target, v.Amount)
	case budget.IndividualEdit:
		if err := s.editor.EnterIndividual(target); err != nil {
			return err
		}
		months := make([]int, 0, len(v.Amounts))
		for m := range v.Amounts {
			months = append(months, m)
		}
		sort.Ints(months)
		for _, m := range months {
			if err := s.editor.SetMonth(target, m, v.Amounts[m]); err != nil {
				return err
			}
		}
		return nil
	default:
		return budget.ErrNoEdit
	}
}

// Projections

func (s *PlanningService) Projections() *projection.Ledger { return s.projections }

func (s *PlanningService) CreateProjection(ctx context.Context, p core.Projection) (core.Projection, error) {
	created, err := s.projections.Create(ctx, p)
	if err != nil {
		return core.Projection{}, err
	}
	return s.afterProjectionWrite(ctx, amqp.ProjectionCreated, created)
}

func (s *PlanningService) UpdateProjection(ctx context.Context, p core.Projection) (core.Projection, error) {
	updated, err := s.projections.Update(ctx, p)
	if err != nil {
		return core.Projection{}, err
	}
	return s.afterProjectionWrite(ctx, amqp.ProjectionUpdated, updated)
}

func (s *PlanningService) ApproveProjection(ctx context.Context, id string) (core.Projection, error) {
	approved, err := s.projections.Approve(ctx, id)
	if err != nil {
		return core.Projection{}, err
	}
	s.invalidate(ctx, approved.Year)
	s.publish(ctx, s.projectionEvent(amqp.ProjectionApproved, approved))
	return approved, nil
}

func (s *PlanningService) DeleteProjection(ctx context.Context, id string) error {
	current, err := s.projections.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projections.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, current.Year)
	s.publish(ctx, s.projectionEvent(amqp.ProjectionDeleted, current))
	return nil
}

// afterProjectionWrite recomputes the over-budget flag of p and returns the
// stored projection with it.
func (s *PlanningService) afterProjectionWrite(ctx context.Context, t amqp.EventType, p core.Projection) (core.Projection, error) {
	s.invalidate(ctx, p.Year)
	s.refreshExceeds(ctx, visibility.Single(p.Brand), []int{p.Month}, p.Year)
	s.publish(ctx, s.projectionEvent(t, p))
	fresh, err := s.projections.Get(ctx, p.ID)
	if err != nil {
		return p, nil
	}
	return fresh, nil
}

func (s *PlanningService) projectionEvent(t amqp.EventType, p core.Projection) *amqp.PlanningEvent {
	ev := amqp.NewPlanningEvent(t, p.Brand, p.Year, s.now())
	ev.Month = p.Month
	ev.ProjectionID = p.ID
	return ev
}

// Read side

func (s *PlanningService) SpendHeadline(ctx context.Context, f visibility.Filter, months []int, year int) (spend.Headline, error) {
	return s.spend.Headline(ctx, f, months, year, s.engine.SpendField())
}

func (s *PlanningService) Variance(ctx context.Context, sc variance.Scope) (variance.Summary, error) {
	out, err := s.cached(ctx, "scope", sc, nil, func() ([]variance.Summary, error) {
		sum, err := s.engine.Reconcile(ctx, sc)
		if err != nil {
			return nil, err
		}
		return []variance.Summary{sum}, nil
	})
	if err != nil {
		return variance.Summary{}, err
	}
	return out[0], nil
}

func (s *PlanningService) VarianceByCategory(ctx context.Context, sc variance.Scope) ([]variance.Summary, error) {
	return s.cached(ctx, "category", sc, nil, func() ([]variance.Summary, error) {
		return s.engine.ByCategory(ctx, sc)
	})
}

func (s *PlanningService) VarianceByBrand(ctx context.Context, sc variance.Scope, brands []string) ([]variance.Summary, error) {
	return s.cached(ctx, "brand", sc, brands, func() ([]variance.Summary, error) {
		return s.engine.ByBrand(ctx, sc, brands)
	})
}

// RefreshExceeds recomputes and stores projection flags for a whole scope.
func (s *PlanningService) RefreshExceeds(ctx context.Context, sc variance.Scope) (int, error) {
	n, err := s.engine.RefreshExceeds(ctx, sc)
	if n > 0 {
		s.invalidate(ctx, sc.Year)
	}
	return n, err
}

func (s *PlanningService) refreshExceeds(ctx context.Context, f visibility.Filter, months []int, year int) {
	if _, err := s.engine.RefreshExceeds(ctx, variance.Scope{Filter: f, Months: months, Year: year}); err != nil {
		slog.WarnContext(ctx, "Failed to refresh projection budget flags",
			"brand", f.Selected(),
			"year", year,
			"error", err)
	}
}

func (s *PlanningService) cached(ctx context.Context, kind string, sc variance.Scope, brands []string, compute func() ([]variance.Summary, error)) ([]variance.Summary, error) {
	if s.results == nil {
		return compute()
	}
	key := cacheKey(kind, sc, brands)
	if v, ok := s.results.Get(key); ok {
		slog.DebugContext(ctx, "Variance cache hit", "key", key)
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	s.results.Set(key, v)
	return v, nil
}

// cacheKey starts with the year so a write can drop every entry of its year.
func cacheKey(kind string, sc variance.Scope, brands []string) string {
	permitted := sc.Filter.Brands()
	sort.Strings(permitted)
	months := make([]string, len(sc.Months))
	for i, m := range sc.Months {
		months[i] = strconv.Itoa(m)
	}
	sorted := append([]string(nil), brands...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s",
		yearPrefix(sc.Year), kind, sc.Filter.Selected(), strings.Join(permitted, ","),
		int(sc.Category), strings.Join(months, ","), strings.Join(sorted, ","))
}

func yearPrefix(year int) string {
	return "variance:" + strconv.Itoa(year)
}

func (s *PlanningService) invalidate(ctx context.Context, year int) {
	if s.results == nil {
		return
	}
	if n := s.results.DeletePrefix(yearPrefix(year) + "|"); n > 0 {
		slog.DebugContext(ctx, "Variance cache invalidated", "year", year, "entries", n)
	}
}

// publish is best effort; the write already succeeded.
func (s *PlanningService) publish(ctx context.Context, ev *amqp.PlanningEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		level := slog.LevelError
		if errors.Is(err, amqp.ErrCircuitOpen) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Failed to publish planning event",
			"type", string(ev.Type),
			"brand", ev.Brand,
			"year", ev.Year,
			"error", err)
	}
}
