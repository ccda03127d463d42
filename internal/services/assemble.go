package services

import (
	"time"

	"presupuesto/internal/budget"
	"presupuesto/internal/cache"
	"presupuesto/internal/projection"
	"presupuesto/internal/spend"
	"presupuesto/internal/store"
	"presupuesto/internal/variance"
)

// Options tune a PlanningService built by NewFromStore.
type Options struct {
	Now         func() time.Time
	Publisher   Publisher
	Cache       cache.Cache[[]variance.Summary]
	SpendField  *spend.Field // nil keeps the engine default
	Parallelism int
}

// NewFromStore builds the ledgers, aggregator and engine over one store.
func NewFromStore(st store.Store, o Options) *PlanningService {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	budgets := budget.NewLedger(st, now)
	projections := projection.NewLedger(st, now)
	agg := spend.NewAggregator(st)

	var engineOpts []variance.Option
	if o.SpendField != nil {
		engineOpts = append(engineOpts, variance.WithSpendField(*o.SpendField))
	}
	if o.Parallelism > 0 {
		engineOpts = append(engineOpts, variance.WithParallelism(o.Parallelism))
	}

	return NewPlanningService(Deps{
		Budgets:     budgets,
		Editor:      budget.NewEditor(budgets),
		Projections: projections,
		Spend:       agg,
		Engine:      variance.NewEngine(budgets, projections, agg, engineOpts...),
		Publisher:   o.Publisher,
		Cache:       o.Cache,
		Now:         now,
	})
}
