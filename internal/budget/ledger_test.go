package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
	"presupuesto/internal/store/memory"
	"presupuesto/internal/visibility"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

// flakyStore fails the upsert of selected months.
type flakyStore struct {
	*memory.Store
	failMonths map[int]bool
	listErr    error
	calls      []int
}

func (f *flakyStore) ListMonthlyBudgets(ctx context.Context, bf store.BudgetFilter) ([]core.MonthlyBudget, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListMonthlyBudgets(ctx, bf)
}

func (f *flakyStore) CreateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	f.calls = append(f.calls, b.Month)
	if f.failMonths[b.Month] {
		return core.MonthlyBudget{}, core.Unavailable("create", errors.New("timeout"))
	}
	return f.Store.CreateMonthlyBudget(ctx, b)
}

func (f *flakyStore) UpdateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	f.calls = append(f.calls, b.Month)
	if f.failMonths[b.Month] {
		return core.MonthlyBudget{}, core.Unavailable("update", errors.New("timeout"))
	}
	return f.Store.UpdateMonthlyBudget(ctx, b)
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func target() Target {
	return Target{Brand: "Norte", Category: core.CategoryDigital, Year: 2025}
}

func TestCreateDuplicateGuard(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New(fixedNow), fixedNow)
	b := core.MonthlyBudget{Brand: "Norte", Category: core.CategoryDigital, Month: 5, Year: 2025, Amount: amount("100")}

	if _, err := l.Create(ctx, b); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := l.Create(ctx, b)
	var dup *core.DuplicateBudgetError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateBudgetError, got %v", err)
	}
	if dup.Brand != "Norte" || dup.Category != core.CategoryDigital || dup.Month != 5 || dup.Year != 2025 {
		t.Fatalf("unexpected duplicate identity %+v", dup)
	}

	recs, _ := l.Query(ctx, store.BudgetFilter{Year: 2025, Brand: "Norte"})
	if len(recs) != 1 || !recs[0].Amount.Equal(amount("100")) {
		t.Fatalf("existing record must stay unchanged: %+v", recs)
	}
}

func TestCreateValidates(t *testing.T) {
	l := NewLedger(memory.New(fixedNow), fixedNow)
	_, err := l.Create(context.Background(), core.MonthlyBudget{Brand: "Norte", Category: core.CategoryDigital, Month: 0, Year: 2025})
	if !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestSaveBaseFillsAllMonths(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(fixedNow)
	l := NewLedger(mem, fixedNow)

	// month 4 already exists with a manual amount
	if _, err := l.Create(ctx, core.MonthlyBudget{Brand: "Norte", Category: core.CategoryDigital, Month: 4, Year: 2025, Amount: amount("50")}); err != nil {
		t.Fatal(err)
	}

	res, err := l.Save(ctx, target(), BaseEdit{Amount: amount("1000")}, "ana")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(res.Months) != 12 {
		t.Fatalf("expected 12 results, got %d", len(res.Months))
	}
	if res.Months[3].Created {
		t.Fatalf("month 4 should be updated in place")
	}

	recs, _ := l.Query(ctx, store.BudgetFilter{Year: 2025, Brand: "Norte", Category: core.CategoryDigital})
	if len(recs) != 12 {
		t.Fatalf("expected 12 records, got %d", len(recs))
	}
	for _, r := range recs {
		if !r.Amount.Equal(amount("1000")) {
			t.Fatalf("month %d amount %s", r.Month, r.Amount)
		}
		if r.BaseAmount == nil || !r.BaseAmount.Equal(amount("1000")) {
			t.Fatalf("month %d base %v", r.Month, r.BaseAmount)
		}
		if r.LastModifiedBy != "ana" {
			t.Fatalf("month %d modified by %q", r.Month, r.LastModifiedBy)
		}
	}
}

func TestSaveIndividualLeavesOtherMonths(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New(fixedNow), fixedNow)
	if _, err := l.Save(ctx, target(), BaseEdit{Amount: amount("1000")}, "ana"); err != nil {
		t.Fatal(err)
	}

	edit := IndividualEdit{Amounts: map[int]decimal.Decimal{6: amount("2500")}}
	if _, err := l.Save(ctx, target(), edit, "luis"); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, _ := l.Query(ctx, store.BudgetFilter{Year: 2025, Brand: "Norte", Category: core.CategoryDigital})
	for _, r := range recs {
		want := amount("1000")
		if r.Month == 6 {
			want = amount("2500")
		}
		if !r.Amount.Equal(want) {
			t.Fatalf("month %d: expected %s, got %s", r.Month, want, r.Amount)
		}
		if r.BaseAmount == nil || !r.BaseAmount.Equal(amount("1000")) {
			t.Fatalf("month %d: base must be preserved, got %v", r.Month, r.BaseAmount)
		}
	}
	if got := DisplayBase(recs); !got.Equal(amount("1000")) {
		t.Fatalf("display base should stay the stored base, got %s", got)
	}
}

func TestSavePartialFailureContinues(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New(fixedNow), failMonths: map[int]bool{3: true, 7: true}}
	l := NewLedger(fs, fixedNow)

	res, err := l.Save(ctx, target(), BaseEdit{Amount: amount("800")}, "ana")
	var partial *core.PartialSaveError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialSaveError, got %v", err)
	}
	if len(partial.Failed) != 2 || partial.Failed[0] != 3 || partial.Failed[1] != 7 {
		t.Fatalf("unexpected failed months %v", partial.Failed)
	}
	if !errors.Is(partial.Causes[3], core.ErrTransportUnavailable) {
		t.Fatalf("cause should be kept, got %v", partial.Causes[3])
	}
	if len(fs.calls) != 12 {
		t.Fatalf("all 12 months must be attempted, got %v", fs.calls)
	}
	for i, m := range fs.calls {
		if m != i+1 {
			t.Fatalf("months must be written in order, got %v", fs.calls)
		}
	}
	if len(res.Months) != 12 || res.Months[2].Err == nil || res.Months[3].Err != nil {
		t.Fatalf("unexpected per-month results %+v", res.Months)
	}

	recs, _ := fs.Store.ListMonthlyBudgets(ctx, store.BudgetFilter{Year: 2025})
	if len(recs) != 10 {
		t.Fatalf("expected 10 stored months, got %d", len(recs))
	}
}

func TestSaveListFailure(t *testing.T) {
	fs := &flakyStore{Store: memory.New(fixedNow), listErr: core.Unavailable("list", errors.New("down"))}
	l := NewLedger(fs, fixedNow)
	_, err := l.Save(context.Background(), target(), BaseEdit{Amount: amount("1")}, "ana")
	if !errors.Is(err, core.ErrTransportUnavailable) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(fs.calls) != 0 {
		t.Fatalf("nothing should be written, got %v", fs.calls)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	l := NewLedger(memory.New(fixedNow), fixedNow)
	ctx := context.Background()
	cases := []struct {
		name   string
		target Target
		edit   Edit
		want   error
	}{
		{"negative base", target(), BaseEdit{Amount: amount("-1")}, core.ErrInvalidAmount},
		{"bad month", target(), IndividualEdit{Amounts: map[int]decimal.Decimal{13: amount("1")}}, core.ErrInvalidMonth},
		{"no edit", target(), nil, ErrNoEdit},
		{"empty brand", Target{Category: core.CategoryDigital, Year: 2025}, BaseEdit{}, core.ErrEmptyBrand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Save(ctx, tc.target, tc.edit, "x"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSumRespectsVisibility(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New(fixedNow), fixedNow)
	for _, b := range []core.MonthlyBudget{
		{Brand: "Norte", Category: core.CategoryDigital, Month: 1, Year: 2025, Amount: amount("100")},
		{Brand: "Norte", Category: core.CategoryEvents, Month: 2, Year: 2025, Amount: amount("50")},
		{Brand: "Sur", Category: core.CategoryDigital, Month: 1, Year: 2025, Amount: amount("300")},
		{Brand: "Centro", Category: core.CategoryDigital, Month: 1, Year: 2025, Amount: amount("999")},
	} {
		if _, err := l.Create(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	f := visibility.New([]string{"Norte", "Sur"})

	cases := []struct {
		name     string
		filter   visibility.Filter
		months   []int
		category core.Category
		want     string
	}{
		{"all permitted", f, []int{1, 2}, 0, "450"},
		{"one category", f, []int{1, 2}, core.CategoryDigital, "400"},
		{"one month", f, []int{2}, 0, "50"},
		{"selected brand", f.Scoped("Sur"), []int{1, 2}, 0, "300"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := l.Sum(ctx, tc.filter, tc.months, 2025, tc.category)
			if err != nil || !got.Equal(amount(tc.want)) {
				t.Fatalf("expected %s, got %s err=%v", tc.want, got, err)
			}
		})
	}

	byCat, err := l.SumByCategory(ctx, f, []int{1, 2}, 2025)
	if err != nil || len(byCat) != 7 {
		t.Fatalf("expected 7 categories, got %d err=%v", len(byCat), err)
	}
	if byCat[0].Category != core.CategoryDigital || !byCat[0].Total.Equal(amount("400")) {
		t.Fatalf("unexpected first category %+v", byCat[0])
	}
	if !byCat[6].Total.IsZero() {
		t.Fatalf("empty categories must be zero, got %s", byCat[6].Total)
	}
}

func TestDisplayBase(t *testing.T) {
	zero := decimal.Zero
	base := amount("1200")
	mk := func(m int, a string, b *decimal.Decimal) core.MonthlyBudget {
		return core.MonthlyBudget{Month: m, Amount: amount(a), BaseAmount: b}
	}

	if got := DisplayBase([]core.MonthlyBudget{mk(1, "900", &base)}); !got.Equal(base) {
		t.Fatalf("stored base should win, got %s", got)
	}
	// zero base falls back to the average of the 12 months
	if got := DisplayBase([]core.MonthlyBudget{mk(1, "600", &zero), mk(2, "600", nil)}); !got.Equal(amount("100")) {
		t.Fatalf("expected average 100, got %s", got)
	}
	if got := DisplayBase(nil); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
