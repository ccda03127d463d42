// Package period turns a dashboard period selection into the concrete months
// it covers. Nothing here reads the clock: callers pass the current month or
// time explicitly.
package period

import (
	"fmt"
	"strings"
	"time"

	"presupuesto/internal/core"
)

const (
	YTD     Mode = "YTD"
	Month   Mode = "Month"
	Quarter Mode = "Quarter"

	AllQuarters = "Todos"
)

type Mode string

// Selection is a period mode plus the value that disambiguates it.
type Selection struct {
	Mode    Mode
	Month   int    // used by Month
	Quarter string // Q1..Q4 or Todos, used by Quarter
}

var quarters = map[string][]int{
	"Q1":        {1, 2, 3},
	"Q2":        {4, 5, 6},
	"Q3":        {7, 8, 9},
	"Q4":        {10, 11, 12},
	AllQuarters: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
}

// Resolve returns the ordered months covered by sel. currentMonth anchors YTD.
func Resolve(sel Selection, currentMonth int) ([]int, error) {
	switch sel.Mode {
	case YTD:
		if currentMonth < 1 || currentMonth > 12 {
			return nil, fmt.Errorf("%w: current month %d", core.ErrInvalidPeriod, currentMonth)
		}
		months := make([]int, currentMonth)
		for i := range months {
			months[i] = i + 1
		}
		return months, nil
	case Month:
		if sel.Month < 1 || sel.Month > 12 {
			return nil, fmt.Errorf("%w: month %d", core.ErrInvalidPeriod, sel.Month)
		}
		return []int{sel.Month}, nil
	case Quarter:
		months, ok := quarters[normalizeQuarter(sel.Quarter)]
		if !ok {
			return nil, fmt.Errorf("%w: quarter %q", core.ErrInvalidPeriod, sel.Quarter)
		}
		return append([]int(nil), months...), nil
	default:
		return nil, fmt.Errorf("%w: mode %q", core.ErrInvalidPeriod, sel.Mode)
	}
}

// ResolveAt is Resolve with the current month taken from now.
func ResolveAt(sel Selection, now time.Time) ([]int, error) {
	return Resolve(sel, int(now.Month()))
}

// DefaultSelection is the selection a dashboard opens with: the month of now.
func DefaultSelection(now time.Time) Selection {
	return Selection{Mode: Month, Month: int(now.Month())}
}

// QuarterOf returns the quarter tag that contains month m.
func QuarterOf(m int) (string, error) {
	if err := core.ValidateMonth(m); err != nil {
		return "", fmt.Errorf("%w: month %d", core.ErrInvalidPeriod, m)
	}
	return fmt.Sprintf("Q%d", (m-1)/3+1), nil
}

// ParseMode accepts the mode names case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ytd":
		return YTD, nil
	case "month", "mes":
		return Month, nil
	case "quarter", "trimestre":
		return Quarter, nil
	}
	return "", fmt.Errorf("%w: mode %q", core.ErrInvalidPeriod, s)
}

func normalizeQuarter(q string) string {
	q = strings.TrimSpace(q)
	if strings.EqualFold(q, AllQuarters) {
		return AllQuarters
	}
	return strings.ToUpper(q)
}
