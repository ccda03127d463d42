package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoicePending    InvoiceStatus = "Pendiente"
	InvoiceAuthorized InvoiceStatus = "Autorizada"
	InvoicePaid       InvoiceStatus = "Pagada"
	InvoiceEntered    InvoiceStatus = "Ingresada"

	ProjectionPending  ProjectionStatus = "Pendiente"
	ProjectionApproved ProjectionStatus = "Aprobada"
)

type (
	InvoiceStatus    string
	ProjectionStatus string

	Brand struct {
		ID   string
		Name string
	}

	MonthlyBudget struct {
		ID       string
		Brand    string
		Category Category
		Month    int // 1-12
		Year     int
		Amount   decimal.Decimal
		// BaseAmount is the last uniform fill for this brand/category/year.
		// Nil when the record was never part of a base fill.
		BaseAmount     *decimal.Decimal
		LastModifiedAt time.Time
		LastModifiedBy string
	}

	Invoice struct {
		ID        string
		Brand     string
		Category  Category
		Subtotal  decimal.Decimal
		Total     decimal.Decimal
		Status    InvoiceStatus
		IssueDate time.Time
	}

	LineItem struct {
		ID              string
		Category        Category
		Subcategory     string
		Amount          decimal.Decimal
		IsReimbursement bool
		Notes           string
	}

	Projection struct {
		ID            string
		Brand         string
		Month         int // 1-12
		Year          int
		Status        ProjectionStatus
		CreatedAt     time.Time
		ModifiedAt    *time.Time
		ExceedsBudget bool // derived, recomputed by the variance engine
		LineItems     []LineItem
	}
)

// Key identifies the unique slot of a monthly budget.
type BudgetKey struct {
	Brand    string
	Category Category
	Month    int
	Year     int
}

// Key returns the unique slot of the record.
func (b MonthlyBudget) Key() BudgetKey {
	return BudgetKey{Brand: b.Brand, Category: b.Category, Month: b.Month, Year: b.Year}
}

func (b MonthlyBudget) Validate() error {
	if strings.TrimSpace(b.Brand) == "" {
		return ErrEmptyBrand
	}
	if !b.Category.Valid() {
		return ErrInvalidCategory
	}
	if err := ValidateMonth(b.Month); err != nil {
		return err
	}
	if err := ValidateYear(b.Year); err != nil {
		return err
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return err
	}
	if b.BaseAmount != nil {
		return ValidateAmount(*b.BaseAmount)
	}
	return nil
}

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoiceAuthorized, InvoicePaid, InvoiceEntered:
		return true
	}
	return false
}

// Valid reports whether s is a known projection status.
func (s ProjectionStatus) Valid() bool {
	return s == ProjectionPending || s == ProjectionApproved
}

func (li LineItem) Validate() error {
	if !li.Category.Valid() {
		return ErrInvalidCategory
	}
	if !ValidPair(li.Category, li.Subcategory) {
		return ErrInvalidSubcategory
	}
	if err := ValidateAmount(li.Amount); err != nil {
		return err
	}
	if len(li.Notes) > 500 {
		return ErrNotesTooLong
	}
	return nil
}

func (p Projection) Validate() error {
	if strings.TrimSpace(p.Brand) == "" {
		return ErrEmptyBrand
	}
	if err := ValidateMonth(p.Month); err != nil {
		return err
	}
	if err := ValidateYear(p.Year); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return ErrInvalidStatus
	}
	for _, li := range p.LineItems {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMonth accepts 1..12.
func ValidateMonth(m int) error {
	if m < 1 || m > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// ValidateYear accepts a plausible planning year.
func ValidateYear(y int) error {
	if y < 2000 || y > 2100 {
		return ErrInvalidYear
	}
	return nil
}
