// Package store declares the request/response persistence port the planning
// core consumes. Adapters live in store/memory and storage.
package store

import (
	"context"

	"presupuesto/internal/core"
)

// Filters. Zero values mean "any".
type (
	BudgetFilter struct {
		Year     int
		Months   []int
		Category core.Category
		Brand    string
	}

	InvoiceFilter struct {
		Year     int
		Months   []int
		Brand    string
		Category core.Category
		Statuses []core.InvoiceStatus
	}

	ProjectionFilter struct {
		Year   int
		Months []int
		Brand  string
	}
)

// Ports for outbound adapters.
type (
	BudgetStore interface {
		ListMonthlyBudgets(ctx context.Context, f BudgetFilter) ([]core.MonthlyBudget, error)
		CreateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error)
		UpdateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error)
	}

	// InvoiceStore is read-only: invoices belong to the invoicing workflow.
	InvoiceStore interface {
		ListInvoices(ctx context.Context, f InvoiceFilter) ([]core.Invoice, error)
	}

	ProjectionStore interface {
		ListProjections(ctx context.Context, f ProjectionFilter) ([]core.Projection, error)
		GetProjection(ctx context.Context, id string) (core.Projection, error)
		CreateProjection(ctx context.Context, p core.Projection) (core.Projection, error)
		UpdateProjection(ctx context.Context, p core.Projection) (core.Projection, error)
		DeleteProjection(ctx context.Context, id string) error
		ApproveProjection(ctx context.Context, id string) (core.Projection, error)
		SetExceedsBudget(ctx context.Context, id string, exceeds bool) error
	}

	// Store is everything a backend provides.
	Store interface {
		BudgetStore
		InvoiceStore
		ProjectionStore
	}
)

// MatchMonth reports whether m is selected by months (nil selects all).
func MatchMonth(months []int, m int) bool {
	if len(months) == 0 {
		return true
	}
	for _, x := range months {
		if x == m {
			return true
		}
	}
	return false
}

// MatchStatus reports whether s is selected by statuses (nil selects all).
func MatchStatus(statuses []core.InvoiceStatus, s core.InvoiceStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}
