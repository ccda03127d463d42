// Package visibility decides which brands a caller may see. Aggregators take a
// Filter value instead of resolving permissions themselves.
package visibility

import "strings"

// Filter is either a drill-down on one selected brand or the caller's whole
// permitted set.
type Filter struct {
	permitted map[string]struct{}
	selected  string
}

// New returns a filter over the caller's permitted brands.
func New(permitted []string) Filter {
	set := make(map[string]struct{}, len(permitted))
	for _, b := range permitted {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		set[b] = struct{}{}
	}
	return Filter{permitted: set}
}

// Single returns a filter that only matches brand.
func Single(brand string) Filter {
	return Filter{selected: strings.TrimSpace(brand)}
}

// Scoped narrows f to one brand for a drill-down view. An empty brand keeps
// the aggregate view.
func (f Filter) Scoped(brand string) Filter {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return f
	}
	return Filter{permitted: f.permitted, selected: brand}
}

// Visible reports whether records of brand belong to the filter's scope.
func (f Filter) Visible(brand string) bool {
	if f.selected != "" {
		return brand == f.selected
	}
	_, ok := f.permitted[brand]
	return ok
}

// Selected returns the drill-down brand, or "" in the aggregate view.
func (f Filter) Selected() string {
	return f.selected
}

// Brands returns the brands a store query can be narrowed to. A nil result
// means no narrowing beyond Visible is possible.
func (f Filter) Brands() []string {
	if f.selected != "" {
		return []string{f.selected}
	}
	out := make([]string, 0, len(f.permitted))
	for b := range f.permitted {
		out = append(out, b)
	}
	return out
}

// Permits reports whether brand is in the caller's permitted set, ignoring any
// drill-down selection.
func (f Filter) Permits(brand string) bool {
	_, ok := f.permitted[brand]
	return ok
}
