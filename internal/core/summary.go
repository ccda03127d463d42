package core

import "github.com/shopspring/decimal"

// CategoryTotal is an amount aggregated for one category, along with the
// subcategories that contributed to it in canonical order.
type CategoryTotal struct {
	Category      Category
	Total         decimal.Decimal
	Subcategories []string
}

// MonthAmount is an amount attached to a month number.
type MonthAmount struct {
	Month  int // 1-12
	Amount decimal.Decimal
}
