package core

import "strings"

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthName returns the Spanish month name for 1-12, or "" when out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

// ParseMonthName resolves a Spanish month name (case-insensitive). "Setiembre"
// is accepted as a regional spelling of September.
func ParseMonthName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "Setiembre") {
		return 9, nil
	}
	for i, n := range monthNames {
		if strings.EqualFold(n, name) {
			return i + 1, nil
		}
	}
	return 0, ErrInvalidMonth
}

// AllMonths returns 1..12.
func AllMonths() []int {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}
