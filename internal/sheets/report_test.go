package sheets

import (
	"testing"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/variance"
)

func TestReportValues(t *testing.T) {
	over := variance.Summary{
		Brand:         "Sur",
		Category:      core.CategoryEvents,
		Budget:        decimal.NewFromInt(100),
		Projection:    decimal.NewFromInt(150),
		Reimbursement: decimal.NewFromInt(20),
		Spend:         decimal.NewFromInt(120),
		ExceedsBudget: true,
	}
	over.Comparison = variance.Compute(over.Budget, over.Projection, over.Spend)

	r := Report{Year: 2025, Rows: []variance.Summary{over, {}}}
	rows := r.Values()
	if len(rows) != 4 {
		t.Fatalf("expected header, 2 rows and total, got %d", len(rows))
	}

	tests := []struct {
		name string
		row  int
		col  int
		want any
	}{
		{"brand", 1, 0, "Sur"},
		{"category", 1, 1, "Eventos"},
		{"budget", 1, 2, "100.00"},
		{"reimbursement", 1, 4, "20.00"},
		{"within budget", 1, 6, "100.00"},
		{"overflow", 1, 7, "20.00"},
		{"exceeds", 1, 10, "Sí"},
		{"unnamed brand", 2, 0, "Todas"},
		{"all categories", 2, 1, "Todas"},
		{"zero row does not exceed", 2, 10, "No"},
		{"total label", 3, 0, "Total"},
		{"total projection", 3, 3, "150.00"},
		{"total exceeds", 3, 10, "Sí"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rows[tt.row][tt.col]; got != tt.want {
				t.Fatalf("row %d col %d = %v, want %v", tt.row, tt.col, got, tt.want)
			}
		})
	}
}

func TestReportValuesEmpty(t *testing.T) {
	rows := Report{Year: 2025}.Values()
	if len(rows) != 2 {
		t.Fatalf("expected header and total, got %d rows", len(rows))
	}
	if rows[1][2] != "0.00" || rows[1][8] != "0.0%" {
		t.Fatalf("unexpected empty total %v", rows[1])
	}
}
