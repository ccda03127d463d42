// Package budget owns monthly budget records: querying, guarded creation and
// the base/individual edit-and-save protocol.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
	"presupuesto/internal/visibility"
)

var (
	ErrNoEdit        = errors.New("no edit to save")
	ErrSessionActive = errors.New("another category is being edited")
	ErrNoSession     = errors.New("no active edit session")
	ErrWrongMode     = errors.New("operation not valid in current edit mode")
)

// Ledger reads and writes MonthlyBudget records through a BudgetStore.
type Ledger struct {
	store store.BudgetStore
	now   func() time.Time
}

func NewLedger(s store.BudgetStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: s, now: now}
}

// MonthResult is the outcome of one month's upsert.
type MonthResult struct {
	Month   int
	Record  core.MonthlyBudget
	Created bool
	Err     error
}

// SaveResult holds one entry per month, in month order.
type SaveResult struct {
	Target Target
	Months []MonthResult
}

// Failed returns the months that were not saved.
func (r SaveResult) Failed() []int {
	var out []int
	for _, m := range r.Months {
		if m.Err != nil {
			out = append(out, m.Month)
		}
	}
	return out
}

// Query returns the records matching f.
func (l *Ledger) Query(ctx context.Context, f store.BudgetFilter) ([]core.MonthlyBudget, error) {
	records, err := l.store.ListMonthlyBudgets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list monthly budgets: %w", err)
	}
	return records, nil
}

// Create inserts a brand-new record. It refuses to overwrite an existing
// record for the same brand/category/month/year.
func (l *Ledger) Create(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if err := b.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	existing, err := l.Query(ctx, store.BudgetFilter{Year: b.Year, Months: []int{b.Month}, Category: b.Category, Brand: b.Brand})
	if err != nil {
		return core.MonthlyBudget{}, err
	}
	if len(existing) > 0 {
		return core.MonthlyBudget{}, &core.DuplicateBudgetError{Brand: b.Brand, Category: b.Category, Month: b.Month, Year: b.Year}
	}
	b.LastModifiedAt = l.now()
	created, err := l.store.CreateMonthlyBudget(ctx, b)
	if err != nil {
		return core.MonthlyBudget{}, fmt.Errorf("create monthly budget: %w", err)
	}
	slog.InfoContext(ctx, "Monthly budget created",
		"brand", created.Brand,
		"category", created.Category.String(),
		"month", created.Month,
		"year", created.Year)
	return created, nil
}

// Save applies edit to the 12 months of target, updating records that exist
// and creating the rest. Months are written in order 1..12 and a failure on one
// month does not stop the others. When any month fails the returned error is a
// *core.PartialSaveError naming them; the SaveResult is always complete.
func (l *Ledger) Save(ctx context.Context, target Target, edit Edit, user string) (SaveResult, error) {
	if err := target.Validate(); err != nil {
		return SaveResult{}, err
	}
	if err := validateEdit(edit); err != nil {
		return SaveResult{}, err
	}

	existing, err := l.Query(ctx, store.BudgetFilter{Year: target.Year, Category: target.Category, Brand: target.Brand})
	if err != nil {
		return SaveResult{}, err
	}
	byMonth := make(map[int]core.MonthlyBudget, len(existing))
	for _, r := range existing {
		byMonth[r.Month] = r
	}

	result := SaveResult{Target: target, Months: make([]MonthResult, 0, 12)}
	for _, m := range core.AllMonths() {
		if err := ctx.Err(); err != nil {
			result.Months = append(result.Months, MonthResult{Month: m, Err: err})
			continue
		}
		current, exists := byMonth[m]
		record := l.apply(target, m, current, exists, edit, user)

		var saved core.MonthlyBudget
		if exists {
			saved, err = l.store.UpdateMonthlyBudget(ctx, record)
		} else {
			saved, err = l.store.CreateMonthlyBudget(ctx, record)
		}
		if err != nil {
			slog.WarnContext(ctx, "Monthly budget upsert failed",
				"brand", target.Brand,
				"category", target.Category.String(),
				"year", target.Year,
				"month", m,
				"error", err)
			result.Months = append(result.Months, MonthResult{Month: m, Err: err})
			continue
		}
		result.Months = append(result.Months, MonthResult{Month: m, Record: saved, Created: !exists})
	}

	failed := result.Failed()
	slog.InfoContext(ctx, "Monthly budgets saved",
		"brand", target.Brand,
		"category", target.Category.String(),
		"year", target.Year,
		"mode", modeName(edit),
		"failed", len(failed))
	if len(failed) > 0 {
		causes := make(map[int]error, len(failed))
		for _, mr := range result.Months {
			if mr.Err != nil {
				causes[mr.Month] = mr.Err
			}
		}
		return result, &core.PartialSaveError{Failed: failed, Causes: causes}
	}
	return result, nil
}

// apply builds the record to write for month m.
func (l *Ledger) apply(target Target, m int, current core.MonthlyBudget, exists bool, edit Edit, user string) core.MonthlyBudget {
	record := core.MonthlyBudget{
		Brand:          target.Brand,
		Category:       target.Category,
		Month:          m,
		Year:           target.Year,
		LastModifiedAt: l.now(),
		LastModifiedBy: user,
	}
	if exists {
		record.ID = current.ID
		record.Amount = current.Amount
		record.BaseAmount = current.BaseAmount
	}
	switch v := edit.(type) {
	case BaseEdit:
		base := core.RoundAmount(v.Amount)
		record.Amount = base
		record.BaseAmount = &base
	case IndividualEdit:
		if a, ok := v.Amounts[m]; ok {
			record.Amount = core.RoundAmount(a)
		}
	}
	return record
}

// Sum totals the budget of every visible brand over months of year. A zero
// category sums all categories. Missing records count as zero.
func (l *Ledger) Sum(ctx context.Context, f visibility.Filter, months []int, year int, category core.Category) (decimal.Decimal, error) {
	records, err := l.Query(ctx, store.BudgetFilter{Year: year, Months: months, Category: category, Brand: f.Selected()})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range records {
		if !f.Visible(r.Brand) || !store.MatchMonth(months, r.Month) {
			continue
		}
		total = total.Add(r.Amount)
	}
	return total, nil
}

// SumByCategory totals the visible budget per category in canonical order.
// Every category is present, with zero when nothing was budgeted.
func (l *Ledger) SumByCategory(ctx context.Context, f visibility.Filter, months []int, year int) ([]core.CategoryTotal, error) {
	records, err := l.Query(ctx, store.BudgetFilter{Year: year, Months: months, Brand: f.Selected()})
	if err != nil {
		return nil, err
	}
	totals := make(map[core.Category]decimal.Decimal)
	for _, r := range records {
		if !f.Visible(r.Brand) || !store.MatchMonth(months, r.Month) {
			continue
		}
		totals[r.Category] = totals[r.Category].Add(r.Amount)
	}
	out := make([]core.CategoryTotal, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		out = append(out, core.CategoryTotal{Category: c, Total: totals[c]})
	}
	return out, nil
}

// MonthlyAmounts lays records of one brand/category/year out by month, with
// zero for months that have no record.
func MonthlyAmounts(records []core.MonthlyBudget) [12]decimal.Decimal {
	var out [12]decimal.Decimal
	for i := range out {
		out[i] = decimal.Zero
	}
	for _, r := range records {
		if r.Month >= 1 && r.Month <= 12 {
			out[r.Month-1] = r.Amount
		}
	}
	return out
}

// DisplayBase is the uniform amount shown for a brand/category/year outside
// an edit session: the stored base when it is positive, otherwise the average
// of the 12 monthly amounts. A stored base of exactly zero also falls back to
// the average.
func DisplayBase(records []core.MonthlyBudget) decimal.Decimal {
	for _, r := range records {
		if r.BaseAmount != nil && r.BaseAmount.IsPositive() {
			return *r.BaseAmount
		}
	}
	months := MonthlyAmounts(records)
	return core.Sum(months[:]...).Div(decimal.NewFromInt(12)).Round(2)
}

func modeName(e Edit) string {
	switch e.(type) {
	case BaseEdit:
		return "base"
	case IndividualEdit:
		return "individual"
	}
	return "none"
}
