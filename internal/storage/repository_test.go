package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

var fixedNow = func() time.Time { return time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC) }

func openTemp(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "presupuesto.db"), fixedNow)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	r := &Repository{dialect: Postgres}
	if got := r.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Fatalf("unexpected rebind %q", got)
	}
	r.dialect = SQLite
	if got := r.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite must keep ?, got %q", got)
	}
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	repo, err := OpenSQLite(path, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	repo.Close()

	version, dirty, err := MigrationVersion(SQLite, path)
	if err != nil || dirty || version != 1 {
		t.Fatalf("expected clean version 1, got %d dirty=%v err=%v", version, dirty, err)
	}
	// reopening is a no-op migration
	again, err := OpenSQLite(path, fixedNow)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestBudgetsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	base := decimal.RequireFromString("1000.50")
	b := core.MonthlyBudget{Brand: "Norte", Category: core.CategoryDigital, Month: 2, Year: 2025, Amount: base, BaseAmount: &base, LastModifiedBy: "ana"}
	created, err := repo.CreateMonthlyBudget(ctx, b)
	if err != nil || created.ID == "" {
		t.Fatalf("create: %+v err=%v", created, err)
	}

	_, err = repo.CreateMonthlyBudget(ctx, b)
	var dup *core.DuplicateBudgetError
	if !errors.As(err, &dup) || dup.Month != 2 {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	b.Amount = decimal.NewFromInt(20)
	updated, err := repo.UpdateMonthlyBudget(ctx, b)
	if err != nil || updated.ID != created.ID {
		t.Fatalf("update: %+v err=%v", updated, err)
	}

	b.Month = 3
	if _, err := repo.UpdateMonthlyBudget(ctx, b); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := repo.ListMonthlyBudgets(ctx, store.BudgetFilter{Year: 2025, Months: []int{1, 2}, Category: core.CategoryDigital, Brand: "Norte"})
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 record, got %d err=%v", len(got), err)
	}
	if !got[0].Amount.Equal(decimal.NewFromInt(20)) || got[0].BaseAmount == nil || !got[0].BaseAmount.Equal(base) {
		t.Fatalf("unexpected record %+v", got[0])
	}
	if !got[0].LastModifiedAt.Equal(fixedNow()) || got[0].LastModifiedBy != "ana" {
		t.Fatalf("unexpected audit fields %+v", got[0])
	}

	none, err := repo.ListMonthlyBudgets(ctx, store.BudgetFilter{Year: 2024})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no records, got %d err=%v", len(none), err)
	}
}

func TestInvoicesFilter(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	for _, inv := range []core.Invoice{
		{Brand: "Norte", Category: core.CategoryDigital, Subtotal: decimal.NewFromInt(100), Total: decimal.NewFromInt(116), Status: core.InvoicePaid, IssueDate: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)},
		{Brand: "Norte", Category: core.CategoryDigital, Subtotal: decimal.NewFromInt(50), Total: decimal.NewFromInt(58), Status: core.InvoicePending, IssueDate: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{Brand: "Norte", Category: core.CategoryEvents, Subtotal: decimal.NewFromInt(70), Total: decimal.NewFromInt(81), Status: core.InvoicePaid, IssueDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{Brand: "Norte", Category: core.CategoryDigital, Subtotal: decimal.NewFromInt(9), Total: decimal.NewFromInt(9), Status: core.InvoicePaid, IssueDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
	} {
		if _, err := repo.InsertInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name   string
		filter store.InvoiceFilter
		want   int
	}{
		{"year", store.InvoiceFilter{Year: 2025}, 3},
		{"months", store.InvoiceFilter{Year: 2025, Months: []int{1, 2, 3}}, 2},
		{"status", store.InvoiceFilter{Year: 2025, Statuses: []core.InvoiceStatus{core.InvoicePaid}}, 2},
		{"category", store.InvoiceFilter{Year: 2025, Category: core.CategoryEvents}, 1},
		{"brand", store.InvoiceFilter{Year: 2025, Brand: "Sur"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.ListInvoices(ctx, tc.filter)
			if err != nil || len(got) != tc.want {
				t.Fatalf("expected %d invoices, got %d err=%v", tc.want, len(got), err)
			}
		})
	}
}

func TestProjectionsLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	p, err := repo.CreateProjection(ctx, core.Projection{
		Brand: "Norte", Month: 4, Year: 2025, Status: core.ProjectionPending,
		LineItems: []core.LineItem{
			{Category: core.CategoryDigital, Subcategory: "Meta Ads", Amount: decimal.NewFromInt(500)},
			{Category: core.CategoryEvents, Subcategory: "Lanzamientos", Amount: decimal.NewFromInt(200), IsReimbursement: true, Notes: "stand"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(p.LineItems) != 2 || p.LineItems[1].Notes != "stand" || !p.LineItems[1].IsReimbursement {
		t.Fatalf("line items not persisted in order: %+v", p.LineItems)
	}

	p.LineItems = p.LineItems[:1]
	updated, err := repo.UpdateProjection(ctx, p)
	if err != nil || len(updated.LineItems) != 1 || updated.ModifiedAt == nil {
		t.Fatalf("update: %+v err=%v", updated, err)
	}

	approved, err := repo.ApproveProjection(ctx, p.ID)
	if err != nil || approved.Status != core.ProjectionApproved {
		t.Fatalf("approve: %+v err=%v", approved, err)
	}
	if _, err := repo.ApproveProjection(ctx, p.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := repo.ApproveProjection(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SetExceedsBudget(ctx, p.ID, true); err != nil {
		t.Fatal(err)
	}
	list, err := repo.ListProjections(ctx, store.ProjectionFilter{Year: 2025, Months: []int{4}, Brand: "Norte"})
	if err != nil || len(list) != 1 || !list[0].ExceedsBudget || len(list[0].LineItems) != 1 {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}

	if err := repo.DeleteProjection(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetProjection(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteProjection(ctx, p.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
