package projection

import (
	"sort"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
)

// Split partitions line items by their reimbursement flag.
type Split struct {
	Ordinary      []core.LineItem
	Reimbursement []core.LineItem
}

// Totals keeps ordinary and reimbursement sums apart.
type Totals struct {
	Ordinary      decimal.Decimal
	Reimbursement decimal.Decimal
}

func (t *Totals) add(li core.LineItem) {
	if li.IsReimbursement {
		t.Reimbursement = t.Reimbursement.Add(li.Amount)
		return
	}
	t.Ordinary = t.Ordinary.Add(li.Amount)
}

func SplitLineItems(p core.Projection) Split {
	var s Split
	for _, li := range p.LineItems {
		if li.IsReimbursement {
			s.Reimbursement = append(s.Reimbursement, li)
		} else {
			s.Ordinary = append(s.Ordinary, li)
		}
	}
	return s
}

// TotalsOf returns the ordinary and reimbursement totals of p.
func TotalsOf(p core.Projection) Totals {
	t := Totals{Ordinary: decimal.Zero, Reimbursement: decimal.Zero}
	for _, li := range p.LineItems {
		t.add(li)
	}
	return t
}

// RollupByCategory sums items per category. Every category appears in
// canonical order, zero when untouched, with its distinct subcategories in
// canonical order.
func RollupByCategory(items []core.LineItem) []core.CategoryTotal {
	sums := make(map[core.Category]decimal.Decimal)
	subs := make(map[core.Category]map[string]struct{})
	for _, li := range items {
		if !li.Category.Valid() {
			continue
		}
		sums[li.Category] = sums[li.Category].Add(li.Amount)
		if subs[li.Category] == nil {
			subs[li.Category] = make(map[string]struct{})
		}
		subs[li.Category][li.Subcategory] = struct{}{}
	}

	out := make([]core.CategoryTotal, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		ct := core.CategoryTotal{Category: c, Total: sums[c], Subcategories: []string{}}
		for s := range subs[c] {
			ct.Subcategories = append(ct.Subcategories, s)
		}
		sort.Slice(ct.Subcategories, func(i, j int) bool {
			return c.SubcategoryIndex(ct.Subcategories[i]) < c.SubcategoryIndex(ct.Subcategories[j])
		})
		out = append(out, ct)
	}
	return out
}
