// Package projection manages spend projections and their line items.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
	"presupuesto/internal/visibility"
)

// Ledger enforces the projection state machine on top of a ProjectionStore.
// Role checks are the caller's business.
type Ledger struct {
	store store.ProjectionStore
	now   func() time.Time
}

func NewLedger(s store.ProjectionStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: s, now: now}
}

// ListByScope returns the visible projections for months of year.
func (l *Ledger) ListByScope(ctx context.Context, f visibility.Filter, months []int, year int) ([]core.Projection, error) {
	ps, err := l.store.ListProjections(ctx, store.ProjectionFilter{Year: year, Months: months, Brand: f.Selected()})
	if err != nil {
		return nil, fmt.Errorf("list projections: %w", err)
	}
	out := ps[:0:0]
	for _, p := range ps {
		if p.Year == year && store.MatchMonth(months, p.Month) && f.Visible(p.Brand) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (core.Projection, error) {
	p, err := l.store.GetProjection(ctx, id)
	if err != nil {
		return core.Projection{}, fmt.Errorf("get projection: %w", err)
	}
	return p, nil
}

// Create stores a new projection. New projections always start Pending.
func (l *Ledger) Create(ctx context.Context, p core.Projection) (core.Projection, error) {
	p.ID = ""
	p.Status = core.ProjectionPending
	p.CreatedAt = l.now()
	p.ModifiedAt = nil
	p.ExceedsBudget = false
	p.LineItems = normalize(p.LineItems)
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	created, err := l.store.CreateProjection(ctx, p)
	if err != nil {
		return core.Projection{}, fmt.Errorf("create projection: %w", err)
	}
	slog.InfoContext(ctx, "Projection created",
		"projection_id", created.ID,
		"brand", created.Brand,
		"month", created.Month,
		"year", created.Year,
		"line_items", len(created.LineItems))
	return created, nil
}

// Update replaces brand, period and line items of an existing projection.
// Status only changes through Approve, so the stored status is kept.
func (l *Ledger) Update(ctx context.Context, p core.Projection) (core.Projection, error) {
	current, err := l.Get(ctx, p.ID)
	if err != nil {
		return core.Projection{}, err
	}
	p.Status = current.Status
	p.CreatedAt = current.CreatedAt
	p.ExceedsBudget = current.ExceedsBudget
	p.LineItems = normalize(p.LineItems)
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	now := l.now()
	p.ModifiedAt = &now
	updated, err := l.store.UpdateProjection(ctx, p)
	if err != nil {
		return core.Projection{}, fmt.Errorf("update projection: %w", err)
	}
	slog.InfoContext(ctx, "Projection updated", "projection_id", updated.ID, "status", string(updated.Status))
	return updated, nil
}

func (l *Ledger) Delete(ctx context.Context, id string) error {
	if err := l.store.DeleteProjection(ctx, id); err != nil {
		return fmt.Errorf("delete projection: %w", err)
	}
	slog.InfoContext(ctx, "Projection deleted", "projection_id", id)
	return nil
}

// Approve moves a Pending projection to Approved. Any other starting status
// fails with core.ErrInvalidTransition.
func (l *Ledger) Approve(ctx context.Context, id string) (core.Projection, error) {
	current, err := l.Get(ctx, id)
	if err != nil {
		return core.Projection{}, err
	}
	if current.Status != core.ProjectionPending {
		return core.Projection{}, fmt.Errorf("approve projection %s (%s): %w", id, current.Status, core.ErrInvalidTransition)
	}
	approved, err := l.store.ApproveProjection(ctx, id)
	if err != nil {
		return core.Projection{}, fmt.Errorf("approve projection: %w", err)
	}
	slog.InfoContext(ctx, "Projection approved", "projection_id", id, "brand", approved.Brand)
	return approved, nil
}

// SetExceedsBudget persists the derived over-budget flag.
func (l *Ledger) SetExceedsBudget(ctx context.Context, id string, exceeds bool) error {
	if err := l.store.SetExceedsBudget(ctx, id, exceeds); err != nil {
		return fmt.Errorf("set exceeds budget: %w", err)
	}
	return nil
}

// ScopeTotals sums the line items of every visible projection in scope. A
// zero category sums all categories.
func (l *Ledger) ScopeTotals(ctx context.Context, f visibility.Filter, months []int, year int, category core.Category) (Totals, error) {
	ps, err := l.ListByScope(ctx, f, months, year)
	if err != nil {
		return Totals{}, err
	}
	t := Totals{Ordinary: decimal.Zero, Reimbursement: decimal.Zero}
	for _, p := range ps {
		for _, li := range p.LineItems {
			if category != 0 && li.Category != category {
				continue
			}
			t.add(li)
		}
	}
	return t, nil
}

// ScopeRollups rolls up the line items of every visible projection in scope
// by category, ordinary and reimbursement items apart.
func (l *Ledger) ScopeRollups(ctx context.Context, f visibility.Filter, months []int, year int) (ordinary, reimbursement []core.CategoryTotal, err error) {
	ps, err := l.ListByScope(ctx, f, months, year)
	if err != nil {
		return nil, nil, err
	}
	var ord, reimb []core.LineItem
	for _, p := range ps {
		s := SplitLineItems(p)
		ord = append(ord, s.Ordinary...)
		reimb = append(reimb, s.Reimbursement...)
	}
	return RollupByCategory(ord), RollupByCategory(reimb), nil
}

func normalize(items []core.LineItem) []core.LineItem {
	out := make([]core.LineItem, len(items))
	for i, li := range items {
		li.Amount = core.RoundAmount(li.Amount)
		out[i] = li
	}
	return out
}
