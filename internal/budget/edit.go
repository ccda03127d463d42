package budget

import (
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Edit is the pending change of an editing session. It is either a BaseEdit
// or an IndividualEdit; the two are never mixed.
type Edit interface {
	isEdit()
}

// BaseEdit fills all 12 months with Amount and records it as their base.
type BaseEdit struct {
	Amount decimal.Decimal
}

// IndividualEdit overrides single months. Months without an entry keep their
// stored amount. BaseAmount is never touched.
type IndividualEdit struct {
	Amounts map[int]decimal.Decimal
}

func (BaseEdit) isEdit()       {}
func (IndividualEdit) isEdit() {}

// Target is the brand/category/year a session edits.
type Target struct {
	Brand    string
	Category core.Category
	Year     int
}

func (t Target) Validate() error {
	if t.Brand == "" {
		return core.ErrEmptyBrand
	}
	if !t.Category.Valid() {
		return core.ErrInvalidCategory
	}
	return core.ValidateYear(t.Year)
}

func validateEdit(e Edit) error {
	switch v := e.(type) {
	case BaseEdit:
		return core.ValidateAmount(v.Amount)
	case IndividualEdit:
		for m, a := range v.Amounts {
			if err := core.ValidateMonth(m); err != nil {
				return err
			}
			if err := core.ValidateAmount(a); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return ErrNoEdit
	default:
		return ErrNoEdit
	}
}
