package variance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"presupuesto/internal/budget"
	"presupuesto/internal/core"
	"presupuesto/internal/projection"
	"presupuesto/internal/spend"
	"presupuesto/internal/visibility"
)

// Scope is one reconciliation request. A zero Category covers all categories.
type Scope struct {
	Filter   visibility.Filter
	Months   []int
	Year     int
	Category core.Category
}

// Summary is the reconciled result for one scope, category or brand.
type Summary struct {
	Brand         string          `json:"brand,omitempty"`
	Category      core.Category   `json:"category,omitempty"`
	Budget        decimal.Decimal `json:"budget"`
	Projection    decimal.Decimal `json:"projection"`
	Reimbursement decimal.Decimal `json:"reimbursement"`
	Spend         decimal.Decimal `json:"spend"`
	ExceedsBudget bool            `json:"exceeds_budget"`
	Comparison    Comparison      `json:"comparison"`
}

func newSummary(b, p, r, s decimal.Decimal) Summary {
	return Summary{
		Budget:        b,
		Projection:    p,
		Reimbursement: r,
		Spend:         s,
		ExceedsBudget: ExceedsBudget(p, b),
		Comparison:    Compute(b, p, s),
	}
}

// Engine pulls the three aggregates for a scope and reconciles them. The
// aggregates are read concurrently; nothing is written except by
// RefreshExceeds.
type Engine struct {
	budgets     *budget.Ledger
	projections *projection.Ledger
	spend       *spend.Aggregator
	field       spend.Field
	parallelism int
}

type Option func(*Engine)

// WithSpendField selects the invoice amount used as realized spend.
func WithSpendField(f spend.Field) Option {
	return func(e *Engine) { e.field = f }
}

// WithParallelism bounds the number of brands reconciled at once by ByBrand.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

func NewEngine(b *budget.Ledger, p *projection.Ledger, s *spend.Aggregator, opts ...Option) *Engine {
	e := &Engine{budgets: b, projections: p, spend: s, field: spend.Subtotal, parallelism: 4}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SpendField is the invoice amount counted as spend.
func (e *Engine) SpendField() spend.Field { return e.field }

// Reconcile computes the summary of scope. A failure of any aggregate fails
// the whole call; partial totals are never returned.
func (e *Engine) Reconcile(ctx context.Context, sc Scope) (Summary, error) {
	var (
		b      decimal.Decimal
		totals projection.Totals
		s      decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b, err = e.budgets.Sum(gctx, sc.Filter, sc.Months, sc.Year, sc.Category)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = e.projections.ScopeTotals(gctx, sc.Filter, sc.Months, sc.Year, sc.Category)
		return err
	})
	g.Go(func() error {
		var err error
		s, err = e.spend.TotalByCategory(gctx, sc.Filter, sc.Months, sc.Year, sc.Category, spend.Progress, e.field)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("reconcile: %w", err)
	}

	sum := newSummary(b, totals.Ordinary, totals.Reimbursement, s)
	sum.Brand = sc.Filter.Selected()
	sum.Category = sc.Category
	slog.DebugContext(ctx, "Scope reconciled",
		"brand", sum.Brand,
		"year", sc.Year,
		"months", sc.Months,
		"anchor_is_projection", sum.Comparison.AnchorIsProjection)
	return sum, nil
}

// ByCategory reconciles every category of scope, in canonical order. The
// scope's own Category is ignored.
func (e *Engine) ByCategory(ctx context.Context, sc Scope) ([]Summary, error) {
	var budgets, ordinary, reimb, spent []core.CategoryTotal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = e.budgets.SumByCategory(gctx, sc.Filter, sc.Months, sc.Year)
		return err
	})
	g.Go(func() error {
		var err error
		ordinary, reimb, err = e.projections.ScopeRollups(gctx, sc.Filter, sc.Months, sc.Year)
		return err
	})
	g.Go(func() error {
		var err error
		spent, err = e.spend.ByCategory(gctx, sc.Filter, sc.Months, sc.Year, spend.Progress, e.field)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile by category: %w", err)
	}

	out := make([]Summary, 0, len(core.Categories()))
	for i, c := range core.Categories() {
		sum := newSummary(budgets[i].Total, ordinary[i].Total, reimb[i].Total, spent[i].Total)
		sum.Brand = sc.Filter.Selected()
		sum.Category = c
		out = append(out, sum)
	}
	return out, nil
}

// ByBrand reconciles each brand separately. With no brands given it covers
// every brand visible through the scope's filter; brands outside the caller's
// permitted set are skipped. Results are sorted by brand.
func (e *Engine) ByBrand(ctx context.Context, sc Scope, brands []string) ([]Summary, error) {
	if len(brands) == 0 {
		brands = sc.Filter.Brands()
	}
	var visible []string
	for _, b := range brands {
		if sc.Filter.Visible(b) {
			visible = append(visible, b)
		}
	}
	sort.Strings(visible)

	out := make([]Summary, len(visible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, b := range visible {
		g.Go(func() error {
			scoped := sc
			scoped.Filter = sc.Filter.Scoped(b)
			sum, err := e.Reconcile(gctx, scoped)
			if err != nil {
				return fmt.Errorf("brand %s: %w", b, err)
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshExceeds recomputes the over-budget flag of every projection in scope
// against the budget of its own brand and month, and persists the flags that
// changed. It returns how many were updated.
func (e *Engine) RefreshExceeds(ctx context.Context, sc Scope) (int, error) {
	ps, err := e.projections.ListByScope(ctx, sc.Filter, sc.Months, sc.Year)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, p := range ps {
		b, err := e.budgets.Sum(ctx, visibility.Single(p.Brand), []int{p.Month}, p.Year, 0)
		if err != nil {
			return updated, err
		}
		exceeds := ExceedsBudget(projection.TotalsOf(p).Ordinary, b)
		if exceeds == p.ExceedsBudget {
			continue
		}
		if err := e.projections.SetExceedsBudget(ctx, p.ID, exceeds); err != nil {
			return updated, err
		}
		updated++
	}
	if updated > 0 {
		slog.InfoContext(ctx, "Projection budget flags refreshed", "year", sc.Year, "updated", updated)
	}
	return updated, nil
}
