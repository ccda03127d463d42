package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

const projectionColumns = `id, brand, month, year, status, exceeds_budget, created_at, modified_at`

func (r *Repository) ListProjections(ctx context.Context, f store.ProjectionFilter) ([]core.Projection, error) {
	q := `SELECT ` + projectionColumns + ` FROM projections WHERE 1=1`
	var args []any
	if f.Year != 0 {
		q += ` AND year = ?`
		args = append(args, f.Year)
	}
	var clause string
	clause, args = monthsClause("month", f.Months, args)
	q += clause
	if f.Brand != "" {
		q += ` AND brand = ?`
		args = append(args, f.Brand)
	}
	q += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, wrap("list projections", err)
	}
	var out []core.Projection
	for rows.Next() {
		p, err := scanProjection(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("scan projection", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrap("iterate projections", err)
	}
	rows.Close()

	// line items are loaded after the cursor is closed; SQLite runs on one conn
	for i := range out {
		items, err := r.lineItems(ctx, r.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].LineItems = items
	}
	return out, nil
}

func (r *Repository) GetProjection(ctx context.Context, id string) (core.Projection, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+projectionColumns+` FROM projections WHERE id = ?`), id)
	p, err := scanProjection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Projection{}, fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Projection{}, wrap("get projection", err)
	}
	if p.LineItems, err = r.lineItems(ctx, r.db, id); err != nil {
		return core.Projection{}, err
	}
	return p, nil
}

func (r *Repository) CreateProjection(ctx context.Context, p core.Projection) (core.Projection, error) {
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO projections (`+projectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.Brand, p.Month, p.Year, string(p.Status), p.ExceedsBudget, p.CreatedAt.UTC(), nullTime(p.ModifiedAt))
		if err != nil {
			return wrap("insert projection", err)
		}
		return r.writeLineItems(ctx, tx, p.ID, p.LineItems)
	})
	if err != nil {
		return core.Projection{}, err
	}
	return r.GetProjection(ctx, p.ID)
}

// UpdateProjection replaces header fields and the whole line item list.
func (r *Repository) UpdateProjection(ctx context.Context, p core.Projection) (core.Projection, error) {
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	now := r.now()
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`UPDATE projections SET brand = ?, month = ?, year = ?, status = ?, exceeds_budget = ?, modified_at = ? WHERE id = ?`),
			p.Brand, p.Month, p.Year, string(p.Status), p.ExceedsBudget, now.UTC(), p.ID)
		if err != nil {
			return wrap("update projection", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("projection %s: %w", p.ID, core.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM projection_line_items WHERE projection_id = ?`), p.ID); err != nil {
			return wrap("delete line items", err)
		}
		return r.writeLineItems(ctx, tx, p.ID, p.LineItems)
	})
	if err != nil {
		return core.Projection{}, err
	}
	return r.GetProjection(ctx, p.ID)
}

func (r *Repository) DeleteProjection(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM projection_line_items WHERE projection_id = ?`), id); err != nil {
			return wrap("delete line items", err)
		}
		res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM projections WHERE id = ?`), id)
		if err != nil {
			return wrap("delete projection", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
		}
		return nil
	})
}

// ApproveProjection flips Pending to Approved in one conditional update.
func (r *Repository) ApproveProjection(ctx context.Context, id string) (core.Projection, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE projections SET status = ?, modified_at = ? WHERE id = ? AND status = ?`),
		string(core.ProjectionApproved), r.now().UTC(), id, string(core.ProjectionPending))
	if err != nil {
		return core.Projection{}, wrap("approve projection", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := r.GetProjection(ctx, id)
		if err != nil {
			return core.Projection{}, err
		}
		return core.Projection{}, fmt.Errorf("projection %s is %s: %w", id, current.Status, core.ErrInvalidTransition)
	}
	return r.GetProjection(ctx, id)
}

func (r *Repository) SetExceedsBudget(ctx context.Context, id string, exceeds bool) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE projections SET exceeds_budget = ? WHERE id = ?`), exceeds, id)
	if err != nil {
		return wrap("set exceeds budget", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repository) lineItems(ctx context.Context, q queryer, projectionID string) ([]core.LineItem, error) {
	rows, err := q.QueryContext(ctx, r.rebind(`SELECT id, category, subcategory, amount, is_reimbursement, notes
		FROM projection_line_items WHERE projection_id = ? ORDER BY position`), projectionID)
	if err != nil {
		return nil, wrap("list line items", err)
	}
	defer rows.Close()

	items := []core.LineItem{}
	for rows.Next() {
		var (
			li       core.LineItem
			category int
		)
		if err := rows.Scan(&li.ID, &category, &li.Subcategory, &li.Amount, &li.IsReimbursement, &li.Notes); err != nil {
			return nil, wrap("scan line item", err)
		}
		li.Category = core.Category(category)
		items = append(items, li)
	}
	return items, wrap("iterate line items", rows.Err())
}

func (r *Repository) writeLineItems(ctx context.Context, tx *sql.Tx, projectionID string, items []core.LineItem) error {
	for i, li := range items {
		if li.ID == "" {
			li.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, r.rebind(`INSERT INTO projection_line_items
			(id, projection_id, position, category, subcategory, amount, is_reimbursement, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			li.ID, projectionID, i, int(li.Category), li.Subcategory, li.Amount, li.IsReimbursement, li.Notes)
		if err != nil {
			return wrap("insert line item", err)
		}
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrap("commit", tx.Commit())
}

func scanProjection(s scanner) (core.Projection, error) {
	var (
		p        core.Projection
		status   string
		modified sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Brand, &p.Month, &p.Year, &status, &p.ExceedsBudget, &p.CreatedAt, &modified); err != nil {
		return core.Projection{}, err
	}
	p.Status = core.ProjectionStatus(status)
	if modified.Valid {
		t := modified.Time
		p.ModifiedAt = &t
	}
	return p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
