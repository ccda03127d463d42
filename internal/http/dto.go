package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/budget"
	"presupuesto/internal/core"
	"presupuesto/internal/projection"
)

type budgetJSON struct {
	ID             string           `json:"id,omitempty"`
	Brand          string           `json:"brand"`
	Category       core.Category    `json:"category"`
	Month          int              `json:"month"`
	Year           int              `json:"year"`
	Amount         decimal.Decimal  `json:"amount"`
	BaseAmount     *decimal.Decimal `json:"base_amount,omitempty"`
	LastModifiedAt *time.Time       `json:"last_modified_at,omitempty"`
	LastModifiedBy string           `json:"last_modified_by,omitempty"`
}

func toBudgetJSON(b core.MonthlyBudget) budgetJSON {
	out := budgetJSON{
		ID:             b.ID,
		Brand:          b.Brand,
		Category:       b.Category,
		Month:          b.Month,
		Year:           b.Year,
		Amount:         b.Amount,
		BaseAmount:     b.BaseAmount,
		LastModifiedBy: b.LastModifiedBy,
	}
	if !b.LastModifiedAt.IsZero() {
		t := b.LastModifiedAt
		out.LastModifiedAt = &t
	}
	return out
}

func (j budgetJSON) toDomain(user string) core.MonthlyBudget {
	return core.MonthlyBudget{
		Brand:          sanitizeInput(j.Brand),
		Category:       j.Category,
		Month:          j.Month,
		Year:           j.Year,
		Amount:         core.RoundAmount(j.Amount),
		LastModifiedBy: user,
	}
}

type budgetListJSON struct {
	Records     []budgetJSON      `json:"records"`
	Monthly     []decimal.Decimal `json:"monthly,omitempty"`
	DisplayBase *decimal.Decimal  `json:"display_base,omitempty"`
}

// editRequest is the body of a budget save. Mode selects which of Amount or
// Amounts applies.
type editRequest struct {
	Mode    string                  `json:"mode"`
	Amount  *decimal.Decimal        `json:"amount,omitempty"`
	Amounts map[int]decimal.Decimal `json:"amounts,omitempty"`
}

func (e editRequest) toEdit() (budget.Edit, error) {
	switch e.Mode {
	case "base":
		if e.Amount == nil || len(e.Amounts) > 0 {
			return nil, fmt.Errorf("%w: base mode takes only amount", errMalformedBody)
		}
		return budget.BaseEdit{Amount: core.RoundAmount(*e.Amount)}, nil
	case "individual":
		if e.Amount != nil || len(e.Amounts) == 0 {
			return nil, fmt.Errorf("%w: individual mode takes only amounts", errMalformedBody)
		}
		amounts := make(map[int]decimal.Decimal, len(e.Amounts))
		for m, a := range e.Amounts {
			amounts[m] = core.RoundAmount(a)
		}
		return budget.IndividualEdit{Amounts: amounts}, nil
	default:
		return nil, fmt.Errorf("%w: mode must be base or individual", errMalformedBody)
	}
}

type monthResultJSON struct {
	Month   int             `json:"month"`
	Amount  decimal.Decimal `json:"amount"`
	Created bool            `json:"created"`
	Error   string          `json:"error,omitempty"`
}

type saveResultJSON struct {
	Brand    string            `json:"brand"`
	Category core.Category     `json:"category"`
	Year     int               `json:"year"`
	Months   []monthResultJSON `json:"months"`
	Failed   []int             `json:"failed"`
}

func toSaveResultJSON(r budget.SaveResult) saveResultJSON {
	out := saveResultJSON{
		Brand:    r.Target.Brand,
		Category: r.Target.Category,
		Year:     r.Target.Year,
		Months:   make([]monthResultJSON, 0, len(r.Months)),
		Failed:   r.Failed(),
	}
	if out.Failed == nil {
		out.Failed = []int{}
	}
	for _, m := range r.Months {
		mj := monthResultJSON{Month: m.Month, Amount: m.Record.Amount, Created: m.Created}
		if m.Err != nil {
			mj.Error = m.Err.Error()
		}
		out.Months = append(out.Months, mj)
	}
	return out
}

type lineItemJSON struct {
	ID              string          `json:"id,omitempty"`
	Category        core.Category   `json:"category"`
	Subcategory     string          `json:"subcategory"`
	Amount          decimal.Decimal `json:"amount"`
	IsReimbursement bool            `json:"is_reimbursement"`
	Notes           string          `json:"notes,omitempty"`
}

type projectionJSON struct {
	ID            string                `json:"id"`
	Brand         string                `json:"brand"`
	Month         int                   `json:"month"`
	Year          int                   `json:"year"`
	Status        core.ProjectionStatus `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	ModifiedAt    *time.Time            `json:"modified_at,omitempty"`
	ExceedsBudget bool                  `json:"exceeds_budget"`
	LineItems     []lineItemJSON        `json:"line_items"`
}

func toProjectionJSON(p core.Projection) projectionJSON {
	out := projectionJSON{
		ID:            p.ID,
		Brand:         p.Brand,
		Month:         p.Month,
		Year:          p.Year,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		ModifiedAt:    p.ModifiedAt,
		ExceedsBudget: p.ExceedsBudget,
		LineItems:     make([]lineItemJSON, len(p.LineItems)),
	}
	for i, li := range p.LineItems {
		out.LineItems[i] = lineItemJSON{
			ID:              li.ID,
			Category:        li.Category,
			Subcategory:     li.Subcategory,
			Amount:          li.Amount,
			IsReimbursement: li.IsReimbursement,
			Notes:           li.Notes,
		}
	}
	return out
}

// monthJSON decodes a month given as 1-12 or as a Spanish month name.
type monthJSON int

func (m *monthJSON) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		n, err := parseMonth(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		*m = monthJSON(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = monthJSON(n)
	return nil
}

// projectionRequest is the writable part of a projection.
type projectionRequest struct {
	Brand     string         `json:"brand"`
	Month     monthJSON      `json:"month"`
	Year      int            `json:"year"`
	LineItems []lineItemJSON `json:"line_items"`
}

func (req projectionRequest) toDomain() core.Projection {
	p := core.Projection{
		Brand:     sanitizeInput(req.Brand),
		Month:     int(req.Month),
		Year:      req.Year,
		Status:    core.ProjectionPending,
		LineItems: make([]core.LineItem, len(req.LineItems)),
	}
	for i, li := range req.LineItems {
		p.LineItems[i] = core.LineItem{
			ID:              li.ID,
			Category:        li.Category,
			Subcategory:     sanitizeInput(li.Subcategory),
			Amount:          li.Amount,
			IsReimbursement: li.IsReimbursement,
			Notes:           sanitizeInput(li.Notes),
		}
	}
	return p
}

type categoryTotalJSON struct {
	Category      core.Category   `json:"category"`
	Total         decimal.Decimal `json:"total"`
	Subcategories []string        `json:"subcategories"`
}

func toCategoryTotalsJSON(in []core.CategoryTotal) []categoryTotalJSON {
	out := make([]categoryTotalJSON, len(in))
	for i, ct := range in {
		subs := ct.Subcategories
		if subs == nil {
			subs = []string{}
		}
		out[i] = categoryTotalJSON{Category: ct.Category, Total: ct.Total, Subcategories: subs}
	}
	return out
}

type rollupJSON struct {
	ProjectionID  string              `json:"projection_id"`
	Ordinary      []categoryTotalJSON `json:"ordinary"`
	Reimbursement []categoryTotalJSON `json:"reimbursement"`
	Totals        struct {
		Ordinary      decimal.Decimal `json:"ordinary"`
		Reimbursement decimal.Decimal `json:"reimbursement"`
	} `json:"totals"`
}

func toRollupJSON(p core.Projection) rollupJSON {
	split := projection.SplitLineItems(p)
	totals := projection.TotalsOf(p)
	out := rollupJSON{
		ProjectionID:  p.ID,
		Ordinary:      toCategoryTotalsJSON(projection.RollupByCategory(split.Ordinary)),
		Reimbursement: toCategoryTotalsJSON(projection.RollupByCategory(split.Reimbursement)),
	}
	out.Totals.Ordinary = totals.Ordinary
	out.Totals.Reimbursement = totals.Reimbursement
	return out
}

type headlineJSON struct {
	Year    int             `json:"year"`
	Months  []int           `json:"months"`
	Paid    decimal.Decimal `json:"paid"`
	Payable decimal.Decimal `json:"payable"`
}

type brandJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type catalogJSON struct {
	Brands     []brandJSON           `json:"brands"`
	Categories []catalogCategoryJSON `json:"categories"`
}

type catalogCategoryJSON struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}
