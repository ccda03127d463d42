// Package spend sums invoice amounts over a period, brand, category and
// status scope. It never writes.
package spend

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
	"presupuesto/internal/visibility"
)

// Field selects which invoice amount is summed.
type Field int

const (
	Total Field = iota
	Subtotal
)

func (f Field) String() string {
	if f == Subtotal {
		return "subtotal"
	}
	return "total"
}

// ParseField accepts "subtotal" or "total" (empty means total).
func ParseField(s string) (Field, error) {
	switch s {
	case "", "total":
		return Total, nil
	case "subtotal":
		return Subtotal, nil
	}
	return Total, fmt.Errorf("unknown spend field %q", s)
}

// Status groupings used by callers.
var (
	Paid     = []core.InvoiceStatus{core.InvoicePaid}
	Payable  = []core.InvoiceStatus{core.InvoicePending, core.InvoiceAuthorized}
	Progress = []core.InvoiceStatus{core.InvoicePaid, core.InvoiceEntered}
)

type Aggregator struct {
	invoices store.InvoiceStore
}

func NewAggregator(s store.InvoiceStore) *Aggregator {
	return &Aggregator{invoices: s}
}

// Headline holds the dashboard metrics for a scope.
type Headline struct {
	Paid    decimal.Decimal
	Payable decimal.Decimal
}

// TotalByStatus sums field over visible invoices issued in months of year
// whose status is in statuses. No category filter is applied.
func (a *Aggregator) TotalByStatus(ctx context.Context, f visibility.Filter, months []int, year int, statuses []core.InvoiceStatus, field Field) (decimal.Decimal, error) {
	return a.TotalByCategory(ctx, f, months, year, 0, statuses, field)
}

// TotalByCategory is TotalByStatus narrowed to one category. A zero category
// means all categories.
func (a *Aggregator) TotalByCategory(ctx context.Context, f visibility.Filter, months []int, year int, category core.Category, statuses []core.InvoiceStatus, field Field) (decimal.Decimal, error) {
	invs, err := a.list(ctx, f, months, year, category, statuses)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, inv := range invs {
		total = total.Add(amountOf(inv, field))
	}
	return total, nil
}

// ByCategory sums field per category in canonical order, with every category
// present.
func (a *Aggregator) ByCategory(ctx context.Context, f visibility.Filter, months []int, year int, statuses []core.InvoiceStatus, field Field) ([]core.CategoryTotal, error) {
	invs, err := a.list(ctx, f, months, year, 0, statuses)
	if err != nil {
		return nil, err
	}
	sums := make(map[core.Category]decimal.Decimal)
	for _, inv := range invs {
		sums[inv.Category] = sums[inv.Category].Add(amountOf(inv, field))
	}
	out := make([]core.CategoryTotal, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		out = append(out, core.CategoryTotal{Category: c, Total: sums[c]})
	}
	return out, nil
}

// Headline returns paid and payable totals for the scope, summing field.
func (a *Aggregator) Headline(ctx context.Context, f visibility.Filter, months []int, year int, field Field) (Headline, error) {
	invs, err := a.list(ctx, f, months, year, 0, nil)
	if err != nil {
		return Headline{}, err
	}
	h := Headline{Paid: decimal.Zero, Payable: decimal.Zero}
	for _, inv := range invs {
		switch {
		case store.MatchStatus(Paid, inv.Status):
			h.Paid = h.Paid.Add(amountOf(inv, field))
		case store.MatchStatus(Payable, inv.Status):
			h.Payable = h.Payable.Add(amountOf(inv, field))
		}
	}
	return h, nil
}

func (a *Aggregator) list(ctx context.Context, f visibility.Filter, months []int, year int, category core.Category, statuses []core.InvoiceStatus) ([]core.Invoice, error) {
	invs, err := a.invoices.ListInvoices(ctx, store.InvoiceFilter{
		Year:     year,
		Months:   months,
		Brand:    f.Selected(),
		Category: category,
		Statuses: statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := invs[:0:0]
	for _, inv := range invs {
		if !f.Visible(inv.Brand) {
			continue
		}
		if inv.IssueDate.Year() != year || !store.MatchMonth(months, int(inv.IssueDate.Month())) {
			continue
		}
		if category != 0 && inv.Category != category {
			continue
		}
		if !store.MatchStatus(statuses, inv.Status) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func amountOf(inv core.Invoice, field Field) decimal.Decimal {
	if field == Subtotal {
		return inv.Subtotal
	}
	return inv.Total
}
