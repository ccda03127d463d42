package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"presupuesto/internal/config"
	ports "presupuesto/internal/sheets"
	"presupuesto/internal/variance"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

// fakeSheets records the Sheets v4 calls the client makes.
type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	calls   []string
	written [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get")
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
		}
		f.calls = append(f.calls, "add")
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear")
		f.calls = append(f.calls, "clear:"+rng)
		_, _ = io.WriteString(w, `{"spreadsheetId":"sheet-1"}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		f.calls = append(f.calls, "update:"+r.URL.Query().Get("valueInputOption"))
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(vr.Values)})
	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "sheet-1", "Variance",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func sampleReport() ports.Report {
	norte := variance.Summary{
		Brand:      "Norte",
		Budget:     decimal.NewFromInt(1000),
		Projection: decimal.NewFromInt(800),
		Spend:      decimal.NewFromInt(500),
	}
	norte.Comparison = variance.Compute(norte.Budget, norte.Projection, norte.Spend)
	sur := variance.Summary{
		Brand:         "Sur",
		Budget:        decimal.NewFromInt(500),
		Projection:    decimal.NewFromInt(700),
		Spend:         decimal.NewFromInt(600),
		ExceedsBudget: true,
	}
	sur.Comparison = variance.Compute(sur.Budget, sur.Projection, sur.Spend)
	return ports.Report{
		Year:        2025,
		GeneratedAt: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC),
		Rows:        []variance.Summary{norte, sur},
	}
}

func TestWriteVarianceReport_CreatesSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2024 Variance"}}
	c := newTestClient(t, fake)

	if err := c.WriteVarianceReport(context.Background(), sampleReport()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := []string{"get", "add", "clear:'2025 Variance'!A:Z", "update:USER_ENTERED"}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	// header + 2 brands + total + blank + timestamp
	if len(fake.written) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(fake.written))
	}
	if fake.written[0][0] != "Marca" {
		t.Errorf("header not first: %v", fake.written[0])
	}
	if fake.written[3][0] != "Total" || fake.written[3][2] != "1500.00" {
		t.Errorf("unexpected total row: %v", fake.written[3])
	}
	if fake.written[5][1] != "2025-05-10T09:00:00Z" {
		t.Errorf("unexpected timestamp row: %v", fake.written[5])
	}
}

func TestWriteVarianceReport_ReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2025 Variance"}}
	c := newTestClient(t, fake)

	r := sampleReport()
	r.GeneratedAt = time.Time{}
	if err := c.WriteVarianceReport(context.Background(), r); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, call := range fake.calls {
		if call == "add" {
			t.Fatalf("sheet should not be re-created: %v", fake.calls)
		}
	}
	if len(fake.written) != 4 {
		t.Fatalf("expected 4 rows without timestamp, got %d", len(fake.written))
	}
}

func TestWriteVarianceReport_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.WriteVarianceReport(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error with uninitialized service")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Variance")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewOAuthHTTPClient(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{"missing client", Credentials{TokenJSON: `{}`}, "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)"},
		{"missing token", Credentials{ClientJSON: testClientJSON}, "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)"},
		{"invalid client", Credentials{ClientJSON: "invalid-json", TokenJSON: `{"access_token":"test"}`}, "oauth config"},
		{"invalid token", Credentials{ClientJSON: testClientJSON, TokenJSON: "invalid-json"}, "oauth token"},
		{"unreadable token file", Credentials{ClientJSON: testClientJSON, TokenFile: filepath.Join(dir, "missing.json")}, "read oauth token"},
		{"token from file", Credentials{ClientJSON: testClientJSON, TokenFile: tokenFile}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc, err := newOAuthHTTPClient(context.Background(), tt.creds)
			if tt.wantErr == "" {
				if err != nil || hc == nil {
					t.Fatalf("expected client, got err=%v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewFromConfig_InvalidCredentials(t *testing.T) {
	cfg := &config.Config{
		GoogleSpreadsheetID:   "sheet-1",
		GoogleReportSheet:     "Variance",
		GoogleOAuthClientJSON: "invalid-json",
		GoogleOAuthTokenJSON:  `{"access_token":"test"}`,
	}
	_, err := NewFromConfig(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "sheets service") {
		t.Fatalf("expected sheets service error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Variance", 2025, "2025 Variance"},
		{"Reporte Marcas", 2024, "2024 Reporte Marcas"},
		{"", 2023, ""},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("2025 O'Brien"); got != "'2025 O''Brien'" {
		t.Fatalf("unexpected quoting %q", got)
	}
}
