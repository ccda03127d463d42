package visibility

import (
	"sort"
	"testing"
)

func TestVisible(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		brand  string
		want   bool
	}{
		{"permitted brand in aggregate view", New([]string{"Norte", "Sur"}), "Norte", true},
		{"unpermitted brand in aggregate view", New([]string{"Norte", "Sur"}), "Centro", false},
		{"empty permitted set", New(nil), "Norte", false},
		{"selected brand exact match", Single("Sur"), "Sur", true},
		{"selected brand excludes others", Single("Sur"), "Norte", false},
		{"drill-down overrides permitted set", New([]string{"Norte"}).Scoped("Sur"), "Norte", false},
		{"empty drill-down keeps aggregate", New([]string{"Norte"}).Scoped(" "), "Norte", true},
		{"blank permitted entries are ignored", New([]string{" ", ""}), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Visible(tt.brand); got != tt.want {
				t.Errorf("Visible(%q) = %v, want %v", tt.brand, got, tt.want)
			}
		})
	}
}

func TestBrandsAndPermits(t *testing.T) {
	f := New([]string{"Sur", "Norte", "Sur"})
	got := f.Brands()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "Norte" || got[1] != "Sur" {
		t.Fatalf("unexpected brands %v", got)
	}

	scoped := f.Scoped("Norte")
	if b := scoped.Brands(); len(b) != 1 || b[0] != "Norte" {
		t.Fatalf("unexpected scoped brands %v", b)
	}
	if scoped.Selected() != "Norte" {
		t.Fatalf("unexpected selection %q", scoped.Selected())
	}
	if !scoped.Permits("Sur") || scoped.Permits("Centro") {
		t.Fatalf("Permits should consult the permitted set only")
	}
}
