package budget

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Editor holds at most one edit session per brand/year scope. Opening a
// session for a second category while one is active fails with
// ErrSessionActive; the first one must be saved or cancelled.
type Editor struct {
	ledger *Ledger

	mu     sync.Mutex
	active map[scopeKey]*session
}

type scopeKey struct {
	brand string
	year  int
}

type session struct {
	target Target
	edit   Edit
}

func NewEditor(l *Ledger) *Editor {
	return &Editor{ledger: l, active: make(map[scopeKey]*session)}
}

func (e *Editor) lookup(target Target) (*session, error) {
	s, ok := e.active[scopeKey{target.Brand, target.Year}]
	if !ok {
		return nil, ErrNoSession
	}
	if s.target.Category != target.Category {
		return nil, ErrSessionActive
	}
	return s, nil
}

func (e *Editor) open(target Target) (*session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	key := scopeKey{target.Brand, target.Year}
	if s, ok := e.active[key]; ok {
		if s.target.Category != target.Category {
			return nil, ErrSessionActive
		}
		return s, nil
	}
	s := &session{target: target}
	e.active[key] = s
	return s, nil
}

// EnterBase starts (or switches to) base mode for target. Any individual
// overrides in progress for the same category are discarded.
func (e *Editor) EnterBase(target Target, amount decimal.Decimal) error {
	if err := core.ValidateAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.open(target)
	if err != nil {
		return err
	}
	s.edit = BaseEdit{Amount: core.RoundAmount(amount)}
	return nil
}

// EnterIndividual starts (or switches to) individual mode for target. A base
// amount in progress is discarded.
func (e *Editor) EnterIndividual(target Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.open(target)
	if err != nil {
		return err
	}
	if _, ok := s.edit.(IndividualEdit); !ok {
		s.edit = IndividualEdit{Amounts: make(map[int]decimal.Decimal)}
	}
	return nil
}

// SetMonth records an override for one month. The session must be in
// individual mode.
func (e *Editor) SetMonth(target Target, month int, amount decimal.Decimal) error {
	if err := core.ValidateMonth(month); err != nil {
		return err
	}
	if err := core.ValidateAmount(amount); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.lookup(target)
	if err != nil {
		return err
	}
	ind, ok := s.edit.(IndividualEdit)
	if !ok {
		return ErrWrongMode
	}
	ind.Amounts[month] = core.RoundAmount(amount)
	return nil
}

// Pending returns the edit in progress for target, if any.
func (e *Editor) Pending(target Target) (Edit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.lookup(target)
	if err != nil || s.edit == nil {
		return nil, false
	}
	return cloneEdit(s.edit), true
}

// Cancel discards the session for target without writing anything.
func (e *Editor) Cancel(target Target) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.lookup(target); err != nil {
		return err
	}
	delete(e.active, scopeKey{target.Brand, target.Year})
	return nil
}

// Save writes the pending edit through the ledger. The session is closed when
// every month was written; after a partial failure it stays open so the same
// edit can be saved again.
func (e *Editor) Save(ctx context.Context, target Target, user string) (SaveResult, error) {
	e.mu.Lock()
	s, err := e.lookup(target)
	if err != nil {
		e.mu.Unlock()
		return SaveResult{}, err
	}
	if s.edit == nil {
		e.mu.Unlock()
		return SaveResult{}, ErrNoEdit
	}
	edit := cloneEdit(s.edit)
	e.mu.Unlock()

	res, err := e.ledger.Save(ctx, target, edit, user)
	if err != nil && !errors.Is(err, core.ErrPartialSave) {
		return res, err
	}
	if err == nil {
		e.mu.Lock()
		if cur, ok := e.active[scopeKey{target.Brand, target.Year}]; ok && cur == s {
			delete(e.active, scopeKey{target.Brand, target.Year})
		}
		e.mu.Unlock()
	}
	return res, err
}

func cloneEdit(e Edit) Edit {
	if ind, ok := e.(IndividualEdit); ok {
		amounts := make(map[int]decimal.Decimal, len(ind.Amounts))
		for m, a := range ind.Amounts {
			amounts[m] = a
		}
		return IndividualEdit{Amounts: amounts}
	}
	return e
}
