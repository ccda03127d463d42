package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

const budgetColumns = `id, brand, category, month, year, amount, base_amount, last_modified_at, last_modified_by`

func (r *Repository) ListMonthlyBudgets(ctx context.Context, f store.BudgetFilter) ([]core.MonthlyBudget, error) {
	q := `SELECT ` + budgetColumns + ` FROM monthly_budgets WHERE 1=1`
	var args []any
	if f.Year != 0 {
		q += ` AND year = ?`
		args = append(args, f.Year)
	}
	var clause string
	clause, args = monthsClause("month", f.Months, args)
	q += clause
	if f.Category != 0 {
		q += ` AND category = ?`
		args = append(args, int(f.Category))
	}
	if f.Brand != "" {
		q += ` AND brand = ?`
		args = append(args, f.Brand)
	}
	q += ` ORDER BY brand, year, category, month`

	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, wrap("list monthly budgets", err)
	}
	defer rows.Close()

	var out []core.MonthlyBudget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, wrap("scan monthly budget", err)
		}
		out = append(out, b)
	}
	return out, wrap("iterate monthly budgets", rows.Err())
}

func (r *Repository) CreateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if err := b.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.LastModifiedAt.IsZero() {
		b.LastModifiedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO monthly_budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		b.ID, b.Brand, int(b.Category), b.Month, b.Year, b.Amount, nullDecimal(b.BaseAmount), b.LastModifiedAt.UTC(), b.LastModifiedBy)
	if isUniqueViolation(err) {
		return core.MonthlyBudget{}, &core.DuplicateBudgetError{Brand: b.Brand, Category: b.Category, Month: b.Month, Year: b.Year}
	}
	if err != nil {
		return core.MonthlyBudget{}, wrap("insert monthly budget", err)
	}
	return b, nil
}

// UpdateMonthlyBudget rewrites the record stored under b's key.
func (r *Repository) UpdateMonthlyBudget(ctx context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if err := b.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	if b.LastModifiedAt.IsZero() {
		b.LastModifiedAt = r.now()
	}
	row := r.db.QueryRowContext(ctx, r.rebind(`UPDATE monthly_budgets
		SET amount = ?, base_amount = ?, last_modified_at = ?, last_modified_by = ?
		WHERE brand = ? AND category = ? AND month = ? AND year = ?
		RETURNING id`),
		b.Amount, nullDecimal(b.BaseAmount), b.LastModifiedAt.UTC(), b.LastModifiedBy,
		b.Brand, int(b.Category), b.Month, b.Year)
	if err := row.Scan(&b.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.MonthlyBudget{}, fmt.Errorf("monthly budget %s/%s/%d/%d: %w", b.Brand, b.Category, b.Month, b.Year, core.ErrNotFound)
		}
		return core.MonthlyBudget{}, wrap("update monthly budget", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(s scanner) (core.MonthlyBudget, error) {
	var (
		b        core.MonthlyBudget
		category int
		base     decimal.NullDecimal
	)
	if err := s.Scan(&b.ID, &b.Brand, &category, &b.Month, &b.Year, &b.Amount, &base, &b.LastModifiedAt, &b.LastModifiedBy); err != nil {
		return core.MonthlyBudget{}, err
	}
	b.Category = core.Category(category)
	if base.Valid {
		v := base.Decimal
		b.BaseAmount = &v
	}
	return b, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
