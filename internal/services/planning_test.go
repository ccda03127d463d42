package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/amqp"
	"presupuesto/internal/budget"
	"presupuesto/internal/cache"
	"presupuesto/internal/core"
	"presupuesto/internal/projection"
	"presupuesto/internal/spend"
	"presupuesto/internal/store"
	"presupuesto/internal/store/memory"
	"presupuesto/internal/variance"
	"presupuesto/internal/visibility"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.PlanningEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.PlanningEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// failingBudgets fails the upsert of one month of one category.
type failingBudgets struct {
	*memory.Store
	category core.Category
	month    int
}

func (f *failingBudgets) CreateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if b.Category == f.category && b.Month == f.month {
		return core.MonthlyBudget{}, core.Unavailable("insert", errors.New("timeout"))
	}
	return f.Store.CreateMonthlyBudget(ctx, b)
}

func newService(t *testing.T, budgets store.BudgetStore, mem *memory.Store, pub Publisher) (*PlanningService, *cache.LRU[[]variance.Summary]) {
	t.Helper()
	bl := budget.NewLedger(budgets, fixedNow)
	pl := projection.NewLedger(mem, fixedNow)
	sa := spend.NewAggregator(mem)
	results := cache.NewLRU[[]variance.Summary](32, time.Minute)
	svc := NewPlanningService(Deps{
		Budgets:     bl,
		Projections: pl,
		Spend:       sa,
		Engine:      variance.NewEngine(bl, pl, sa),
		Publisher:   pub,
		Cache:       results,
		Now:         fixedNow,
	})
	return svc, results
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSaveBudgetPublishesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(fixedNow)
	pub := &recordingPublisher{}
	svc, results := newService(t, mem, mem, pub)
	f := visibility.New([]string{"Norte"})
	sc := variance.Scope{Filter: f, Months: []int{6}, Year: 2025}

	before, err := svc.Variance(ctx, sc)
	if err != nil || !before.Budget.IsZero() {
		t.Fatalf("unexpected initial variance %+v err=%v", before, err)
	}
	if results.Size() != 1 {
		t.Fatalf("variance should be cached, size=%d", results.Size())
	}

	target := budget.Target{Brand: "Norte", Category: core.CategoryDigital, Year: 2025}
	if _, err := svc.SaveBudget(ctx, target, budget.BaseEdit{Amount: dec("1000")}, "ana"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if results.Size() != 0 {
		t.Fatalf("save should invalidate the year, size=%d", results.Size())
	}
	after, err := svc.Variance(ctx, sc)
	if err != nil || !after.Budget.Equal(dec("1000")) {
		t.Fatalf("expected fresh budget 1000, got %+v err=%v", after, err)
	}
	if got := pub.types(); len(got) != 1 || got[0] != amqp.BudgetSaved {
		t.Fatalf("expected one budget.saved event, got %v", got)
	}
	if ts := pub.events[0].Timestamp; !ts.Equal(fixedNow()) {
		t.Fatalf("event should carry the injected clock, got %v", ts)
	}
}

func TestSaveBudgetIndividualThroughEditor(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(fixedNow)
	svc, _ := newService(t, mem, mem, nil)
	target := budget.Target{Brand: "Norte", Category: core.CategoryEvents, Year: 2025}

	if _, err := svc.SaveBudget(ctx, target, budget.BaseEdit{Amount: dec("10000")}, "ana"); err != nil {
		t.Fatal(err)
	}
	edit := budget.IndividualEdit{Amounts: map[int]decimal.Decimal{6: dec("5000")}}
	if _, err := svc.SaveBudget(ctx, target, edit, "ana"); err != nil {
		t.Fatal(err)
	}
	recs, _ := svc.Budgets().Query(ctx, store.BudgetFilter{Year: 2025, Brand: "Norte", Category: core.CategoryEvents})
	for _, r := range recs {
		want := dec("10000")
		if r.Month == 6 {
			want = dec("5000")
		}
		if !r.Amount.Equal(want) || !r.BaseAmount.Equal(dec("10000")) {
			t.Fatalf("month %d: amount %s base %v", r.Month, r.Amount, r.BaseAmount)
		}
	}
}

func TestPartialSaveBlocksOtherCategory(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(fixedNow)
	flaky := &failingBudgets{Store: mem, category: core.CategoryDigital, month: 4}
	svc, _ := newService(t, flaky, mem, nil)

	digital := budget.Target{Brand: "Norte", Category: core.CategoryDigital, Year: 2025}
	_, err := svc.SaveBudget(ctx, digital, budget.BaseEdit{Amount: dec("1")}, "ana")
	var partial *core.PartialSaveError
	if !errors.As(err, &partial) || len(partial.Failed) != 1 || partial.Failed[0] != 4 {
		t.Fatalf("expected month 4 to fail, got %v", err)
	}

	events := budget.Target{Brand: "Norte", Category: core.CategoryEvents, Year: 2025}
	if _, err := svc.SaveBudget(ctx, events, budget.BaseEdit{Amount: dec("1")}, "ana"); !errors.Is(err, budget.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if err := svc.CancelBudgetEdit(digital); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveBudget(ctx, events, budget.BaseEdit{Amount: dec("1")}, "ana"); err != nil {
		t.Fatalf("after cancel: %v", err)
	}
}

func TestProjectionWritesRefreshExceeds(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(fixedNow)
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	svc, _ := newService(t, mem, mem, pub)

	if _, err := svc.CreateBudget(ctx, core.MonthlyBudget{Brand: "Norte", Category: core.CategoryDigital, Month: 6, Year: 2025, Amount: dec("400")}); err != nil {
		t.Fatal(err)
	}
	p, err := svc.CreateProjection(ctx, core.Projection{Brand: "Norte", Month: 6, Year: 2025, LineItems: []core.LineItem{
		{Category: core.CategoryDigital, Subcategory: "Meta Ads", Amount: dec("500")},
	}})
	if err != nil {
		t.Fatalf("create projection despite publisher failure: %v", err)
	}
	if !p.ExceedsBudget {
		t.Fatalf("500 against 400 should be flagged")
	}

	p.LineItems[0].Amount = dec("300")
	p, err = svc.UpdateProjection(ctx, p)
	if err != nil || p.ExceedsBudget {
		t.Fatalf("flag should clear after update: %+v err=%v", p, err)
	}

	if _, err := svc.ApproveProjection(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ApproveProjection(ctx, p.ID); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := svc.DeleteProjection(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	want := []amqp.EventType{amqp.BudgetCreated, amqp.ProjectionCreated, amqp.ProjectionUpdated, amqp.ProjectionApproved, amqp.ProjectionDeleted}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestCacheKeySeparatesScopes(t *testing.T) {
	f := visibility.New([]string{"Sur", "Norte"})
	a := cacheKey("scope", variance.Scope{Filter: f, Months: []int{1}, Year: 2025}, nil)
	b := cacheKey("scope", variance.Scope{Filter: visibility.New([]string{"Norte", "Sur"}), Months: []int{1}, Year: 2025}, nil)
	if a != b {
		t.Fatalf("permitted order must not matter: %q vs %q", a, b)
	}
	c := cacheKey("scope", variance.Scope{Filter: f.Scoped("Sur"), Months: []int{1}, Year: 2025}, nil)
	d := cacheKey("scope", variance.Scope{Filter: f, Months: []int{1, 2}, Year: 2025}, nil)
	if a == c || a == d {
		t.Fatalf("different scopes must not share keys")
	}
}
