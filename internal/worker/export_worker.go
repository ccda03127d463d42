package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"presupuesto/internal/amqp"
	"presupuesto/internal/period"
	"presupuesto/internal/sheets"
	"presupuesto/internal/variance"
	"presupuesto/internal/visibility"
)

// VarianceSource computes per-brand variance for a scope.
type VarianceSource interface {
	VarianceByBrand(ctx context.Context, sc variance.Scope, brands []string) ([]variance.Summary, error)
}

// ExportWorker keeps the spreadsheet report of each year in step with
// planning writes. Events trigger an export of their year; a periodic pass
// covers anything the queue missed.
type ExportWorker struct {
	source VarianceSource
	writer sheets.ReportWriter
	brands []string
	now    func() time.Time

	mu         sync.Mutex
	lastExport map[int]time.Time
}

func NewExportWorker(source VarianceSource, writer sheets.ReportWriter, brands []string, now func() time.Time) *ExportWorker {
	if now == nil {
		now = time.Now
	}
	return &ExportWorker{
		source:     source,
		writer:     writer,
		brands:     append([]string(nil), brands...),
		now:        now,
		lastExport: make(map[int]time.Time),
	}
}

// HandleEvent exports the event's year unless an export that started after
// the event already covers it.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.PlanningEvent) error {
	slog.InfoContext(ctx, "Processing planning event",
		"type", string(ev.Type),
		"brand", ev.Brand,
		"year", ev.Year)

	if last, ok := w.lastExported(ev.Year); ok && !ev.Timestamp.IsZero() && last.After(ev.Timestamp) {
		slog.DebugContext(ctx, "Event already covered by a later export",
			"type", string(ev.Type),
			"year", ev.Year,
			"last_export", last.Format(time.RFC3339))
		return nil
	}
	return w.ExportYear(ctx, ev.Year)
}

// ExportYear recomputes brand variance for year and replaces its report.
func (w *ExportWorker) ExportYear(ctx context.Context, year int) error {
	started := w.now()
	months, err := w.months(year, started)
	if err != nil {
		return err
	}

	sc := variance.Scope{Filter: visibility.New(w.brands), Months: months, Year: year}
	rows, err := w.source.VarianceByBrand(ctx, sc, w.brands)
	if err != nil {
		return fmt.Errorf("compute variance for %d: %w", year, err)
	}

	report := sheets.Report{Year: year, GeneratedAt: started, Rows: rows}
	if err := w.writer.WriteVarianceReport(ctx, report); err != nil {
		return fmt.Errorf("write variance report for %d: %w", year, err)
	}

	w.mu.Lock()
	w.lastExport[year] = started
	w.mu.Unlock()

	slog.InfoContext(ctx, "Exported variance report",
		"year", year,
		"months", len(months),
		"brands", len(rows),
		"duration_ms", w.now().Sub(started).Milliseconds())
	return nil
}

// ExportCurrent exports the current year. It is the periodic backup for
// events lost while the worker was down.
func (w *ExportWorker) ExportCurrent(ctx context.Context) error {
	return w.ExportYear(ctx, w.now().Year())
}

// Run exports on start and then every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	if err := w.ExportCurrent(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ExportCurrent(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export failed", "error", err)
			}
		}
	}
}

// months covers year-to-date for the running year and the whole year
// otherwise.
func (w *ExportWorker) months(year int, now time.Time) ([]int, error) {
	sel := period.Selection{Mode: period.Quarter, Quarter: period.AllQuarters}
	if year == now.Year() {
		sel = period.Selection{Mode: period.YTD}
	}
	return period.ResolveAt(sel, now)
}

func (w *ExportWorker) lastExported(year int) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.lastExport[year]
	return t, ok
}
