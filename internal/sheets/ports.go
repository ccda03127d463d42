package sheets

import (
	"context"
	"time"

	"presupuesto/internal/variance"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the variance report of a year with a fresh snapshot.
	ReportWriter interface {
		WriteVarianceReport(ctx context.Context, r Report) error
	}
)

// Report is one export of brand-level variance for a planning year.
type Report struct {
	Year        int
	GeneratedAt time.Time
	// Rows are brand summaries, usually in catalog order.
	Rows []variance.Summary
}
