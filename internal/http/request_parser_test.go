package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/core"
	"presupuesto/internal/period"
)

var may2025 = time.Date(2025, 5, 14, 10, 0, 0, 0, time.UTC)

func TestParseScopeParams(t *testing.T) {
	tests := []struct {
		name       string
		query      url.Values
		wantMonths []int
		wantYear   int
		wantCat    core.Category
		wantErr    error
	}{
		{
			name:       "defaults to current month",
			query:      url.Values{},
			wantMonths: []int{5},
			wantYear:   2025,
		},
		{
			name:       "explicit month by name",
			query:      url.Values{"mode": {"month"}, "month": {"marzo"}, "year": {"2024"}},
			wantMonths: []int{3},
			wantYear:   2024,
		},
		{
			name:       "quarter implies quarter mode",
			query:      url.Values{"quarter": {"q3"}},
			wantMonths: []int{7, 8, 9},
			wantYear:   2025,
		},
		{
			name:       "ytd uses current month",
			query:      url.Values{"mode": {"YTD"}},
			wantMonths: []int{1, 2, 3, 4, 5},
			wantYear:   2025,
		},
		{
			name:       "category by name",
			query:      url.Values{"category": {"eventos"}},
			wantMonths: []int{5},
			wantYear:   2025,
			wantCat:    core.CategoryEvents,
		},
		{
			name:       "category by id",
			query:      url.Values{"category": {"7"}},
			wantMonths: []int{5},
			wantYear:   2025,
			wantCat:    core.CategoryOther,
		},
		{name: "bad mode", query: url.Values{"mode": {"weekly"}}, wantErr: core.ErrInvalidPeriod},
		{name: "bad month", query: url.Values{"month": {"13"}}, wantErr: core.ErrInvalidPeriod},
		{name: "bad quarter", query: url.Values{"quarter": {"Q5"}}, wantErr: core.ErrInvalidPeriod},
		{name: "bad year", query: url.Values{"year": {"1999"}}, wantErr: core.ErrInvalidYear},
		{name: "bad category", query: url.Values{"category": {"Radio"}}, wantErr: core.ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseScopeParams(tt.query, may2025)
			if err == nil {
				_, err = params.Scope([]string{"Norte"}, may2025)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			sc, _ := params.Scope([]string{"Norte"}, may2025)
			if !slices.Equal(sc.Months, tt.wantMonths) {
				t.Errorf("Months = %v, want %v", sc.Months, tt.wantMonths)
			}
			if sc.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", sc.Year, tt.wantYear)
			}
			if sc.Category != tt.wantCat {
				t.Errorf("Category = %v, want %v", sc.Category, tt.wantCat)
			}
		})
	}
}

func TestScopeParams_BrandDrillDown(t *testing.T) {
	params := ScopeParams{Selection: period.Selection{Mode: period.Month, Month: 2}, Year: 2025, Brand: "Sur"}

	if _, err := params.Scope([]string{"Norte"}, may2025); !errors.Is(err, errBrandNotPermitted) {
		t.Fatalf("expected errBrandNotPermitted, got %v", err)
	}

	sc, err := params.Scope([]string{"Norte", "Sur"}, may2025)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Filter.Selected() != "Sur" || sc.Filter.Visible("Norte") {
		t.Fatalf("expected drill-down on Sur, got %+v", sc.Filter)
	}
}

func TestPermittedBrands(t *testing.T) {
	fallback := []string{"Norte", "Centro", "Sur"}

	req := httptest.NewRequest(http.MethodGet, "/variance", nil)
	if got := PermittedBrands(req, fallback); !slices.Equal(got, fallback) {
		t.Errorf("no header: got %v", got)
	}

	req.Header.Set(PermittedBrandsHeader, " Norte , ,Sur")
	if got := PermittedBrands(req, fallback); !slices.Equal(got, []string{"Norte", "Sur"}) {
		t.Errorf("header: got %v", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"mode":"base","amount":"1200"}`},
		{name: "unknown field", body: `{"mode":"base","amount":"1","extra":true}`, wantErr: true},
		{name: "trailing data", body: `{"mode":"base"}{}`, wantErr: true},
		{name: "not json", body: `mode=base`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPut, "/budgets/Norte/Digital/2025", strings.NewReader(tt.body))
			var req editRequest
			err := decodeJSON(w, r, &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errMalformedBody) {
				t.Fatalf("expected errMalformedBody, got %v", err)
			}
		})
	}
}

func TestEditRequest_ToEdit(t *testing.T) {
	one := decimal.NewFromInt(1000)
	tests := []struct {
		name    string
		req     editRequest
		wantErr bool
	}{
		{name: "base", req: editRequest{Mode: "base", Amount: &one}},
		{name: "base without amount", req: editRequest{Mode: "base"}, wantErr: true},
		{name: "individual", req: editRequest{Mode: "individual", Amounts: map[int]decimal.Decimal{3: one}}},
		{name: "individual with amount", req: editRequest{Mode: "individual", Amount: &one, Amounts: map[int]decimal.Decimal{3: one}}, wantErr: true},
		{name: "unknown mode", req: editRequest{Mode: "mixed"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.toEdit()
			if (err != nil) != tt.wantErr {
				t.Fatalf("toEdit() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Norte\x00\x07 "); got != "Norte" {
		t.Errorf("sanitizeInput() = %q", got)
	}
	if got := sanitizeInput("línea 1\nlínea 2"); got != "línea 1\nlínea 2" {
		t.Errorf("newlines should survive: %q", got)
	}
}
