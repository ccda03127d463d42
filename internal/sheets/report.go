package sheets

import (
	"strconv"

	"github.com/shopspring/decimal"

	"presupuesto/internal/variance"
)

// Header is the first row of every exported report.
var Header = []any{
	"Marca", "Categoría", "Presupuesto", "Proyección", "Reembolsos", "Gasto",
	"Gasto en presupuesto", "Sobregiro", "% Proyección", "% Gasto", "Excede",
}

// Values renders the report as a values matrix: the header, one row per
// summary and a closing total row.
func (r Report) Values() [][]any {
	out := make([][]any, 0, len(r.Rows)+2)
	out = append(out, Header)

	var total variance.Summary
	for _, s := range r.Rows {
		out = append(out, summaryRow(s, label(s)))
		total.Budget = total.Budget.Add(s.Budget)
		total.Projection = total.Projection.Add(s.Projection)
		total.Reimbursement = total.Reimbursement.Add(s.Reimbursement)
		total.Spend = total.Spend.Add(s.Spend)
	}
	total.ExceedsBudget = variance.ExceedsBudget(total.Projection, total.Budget)
	total.Comparison = variance.Compute(total.Budget, total.Projection, total.Spend)
	out = append(out, summaryRow(total, "Total"))
	return out
}

func label(s variance.Summary) string {
	if s.Brand == "" {
		return "Todas"
	}
	return s.Brand
}

func summaryRow(s variance.Summary, name string) []any {
	cat := "Todas"
	if s.Category.Valid() {
		cat = s.Category.String()
	}
	c := s.Comparison
	return []any{
		name,
		cat,
		amount(s.Budget),
		amount(s.Projection),
		amount(s.Reimbursement),
		amount(s.Spend),
		amount(c.SpendWithinBudget),
		amount(c.SpendOverflow),
		percent(c.PctProjection),
		percent(c.PctSpendGreen + c.PctSpendRed),
		yesNo(s.ExceedsBudget),
	}
}

func amount(d decimal.Decimal) string { return d.StringFixed(2) }

func percent(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) + "%" }

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}
