package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidYear          = errors.New("invalid year")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidSubcategory   = errors.New("invalid subcategory for category")
	ErrNotesTooLong         = errors.New("notes too long (max 500 characters)")
	ErrEmptyBrand           = errors.New("empty brand")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateBudget      = errors.New("duplicate monthly budget")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrPartialSave          = errors.New("partial save failure")
	ErrTransportUnavailable = errors.New("store unavailable")
)

// DuplicateBudgetError identifies the record that already exists for the key.
type DuplicateBudgetError struct {
	Brand    string
	Category Category
	Month    int
	Year     int
}

func (e *DuplicateBudgetError) Error() string {
	return fmt.Sprintf("budget already exists for %s / %s / %s %d",
		e.Brand, e.Category, MonthName(e.Month), e.Year)
}

func (e *DuplicateBudgetError) Unwrap() error { return ErrDuplicateBudget }

// PartialSaveError lists the months whose upsert failed, in month order.
type PartialSaveError struct {
	Failed []int
	Causes map[int]error
}

func (e *PartialSaveError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, m := range e.Failed {
		parts[i] = strconv.Itoa(m)
	}
	return fmt.Sprintf("%d of 12 months not saved: [%s]", len(e.Failed), strings.Join(parts, ","))
}

func (e *PartialSaveError) Unwrap() error { return ErrPartialSave }

// Unavailable wraps a transport failure so callers can match ErrTransportUnavailable
// while keeping the underlying cause in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransportUnavailable, err)
}
