package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

// ListInvoices filters by issue year in SQL and by month of issue in Go, so
// the query stays portable across dialects.
func (r *Repository) ListInvoices(ctx context.Context, f store.InvoiceFilter) ([]core.Invoice, error) {
	q := `SELECT id, brand, category, subtotal, total, status, issue_date FROM invoices WHERE 1=1`
	var args []any
	if f.Year != 0 {
		q += ` AND issue_date >= ? AND issue_date < ?`
		args = append(args,
			time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(f.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC))
	}
	if f.Brand != "" {
		q += ` AND brand = ?`
		args = append(args, f.Brand)
	}
	if f.Category != 0 {
		q += ` AND category = ?`
		args = append(args, int(f.Category))
	}
	if len(f.Statuses) > 0 {
		q += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY issue_date, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(q), args...)
	if err != nil {
		return nil, wrap("list invoices", err)
	}
	defer rows.Close()

	var out []core.Invoice
	for rows.Next() {
		var (
			inv      core.Invoice
			category int
			status   string
		)
		if err := rows.Scan(&inv.ID, &inv.Brand, &category, &inv.Subtotal, &inv.Total, &status, &inv.IssueDate); err != nil {
			return nil, wrap("scan invoice", err)
		}
		inv.Category = core.Category(category)
		inv.Status = core.InvoiceStatus(status)
		if !store.MatchMonth(f.Months, int(inv.IssueDate.Month())) {
			continue
		}
		out = append(out, inv)
	}
	return out, wrap("iterate invoices", rows.Err())
}

// InsertInvoice loads an invoice produced by the invoicing workflow. The
// planning core never writes invoices; this exists for imports and fixtures.
func (r *Repository) InsertInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if !inv.Category.Valid() {
		return core.Invoice{}, core.ErrInvalidCategory
	}
	if !inv.Status.Valid() {
		return core.Invoice{}, core.ErrInvalidStatus
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO invoices (id, brand, category, subtotal, total, status, issue_date) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		inv.ID, inv.Brand, int(inv.Category), inv.Subtotal, inv.Total, string(inv.Status), inv.IssueDate.UTC())
	if err != nil {
		return core.Invoice{}, wrap("insert invoice", err)
	}
	return inv, nil
}
