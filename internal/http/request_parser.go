// This file parses query scopes, path parameters and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"presupuesto/internal/core"
	"presupuesto/internal/period"
	"presupuesto/internal/variance"
	"presupuesto/internal/visibility"
)

const (
	// PermittedBrandsHeader carries the caller's comma-separated brand list,
	// set by the authenticating proxy in front of the API.
	PermittedBrandsHeader = "X-Permitted-Brands"
	UserHeader            = "X-User"

	maxBodyBytes = 1 << 20
)

var (
	errBrandNotPermitted = errors.New("brand not permitted")
	errMalformedBody     = errors.New("malformed request body")
	errMalformedParam    = errors.New("malformed parameter")
)

// ScopeParams is the raw scope of a read request.
type ScopeParams struct {
	Selection period.Selection
	Year      int
	Brand     string
	Category  core.Category
}

// ParseScopeParams reads mode, month, quarter, year, brand and category.
// Without a mode the selection is the month of now, or the quarter when one
// is given.
func ParseScopeParams(q url.Values, now time.Time) (ScopeParams, error) {
	p := ScopeParams{
		Selection: period.DefaultSelection(now),
		Year:      now.Year(),
		Brand:     strings.TrimSpace(q.Get("brand")),
	}

	quarter := strings.TrimSpace(q.Get("quarter"))
	if v := strings.TrimSpace(q.Get("mode")); v != "" {
		mode, err := period.ParseMode(v)
		if err != nil {
			return ScopeParams{}, err
		}
		p.Selection.Mode = mode
	} else if quarter != "" {
		p.Selection.Mode = period.Quarter
	}
	p.Selection.Quarter = quarter

	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := parseMonth(v)
		if err != nil {
			return ScopeParams{}, fmt.Errorf("%w: month %q", core.ErrInvalidPeriod, v)
		}
		p.Selection.Month = m
	}

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return ScopeParams{}, fmt.Errorf("%w: year %q", core.ErrInvalidYear, v)
		}
		p.Year = y
	}
	if err := core.ValidateYear(p.Year); err != nil {
		return ScopeParams{}, err
	}

	if v := strings.TrimSpace(q.Get("category")); v != "" {
		c, err := parseCategory(v)
		if err != nil {
			return ScopeParams{}, err
		}
		p.Category = c
	}
	return p, nil
}

// Scope resolves p into a variance scope for a caller permitted to see
// permitted. A drill-down brand outside that set is refused.
func (p ScopeParams) Scope(permitted []string, now time.Time) (variance.Scope, error) {
	months, err := period.ResolveAt(p.Selection, now)
	if err != nil {
		return variance.Scope{}, err
	}
	filter := visibility.New(permitted)
	if p.Brand != "" {
		if !filter.Permits(p.Brand) {
			return variance.Scope{}, fmt.Errorf("%w: %s", errBrandNotPermitted, p.Brand)
		}
		filter = filter.Scoped(p.Brand)
	}
	return variance.Scope{Filter: filter, Months: months, Year: p.Year, Category: p.Category}, nil
}

// PermittedBrands reads the permitted brand header, falling back when it is
// absent.
func PermittedBrands(r *http.Request, fallback []string) []string {
	raw := r.Header.Get(PermittedBrandsHeader)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// parseMonth accepts 1-12 or a Spanish month name.
func parseMonth(v string) (int, error) {
	if m, err := strconv.Atoi(v); err == nil {
		return m, core.ValidateMonth(m)
	}
	return core.ParseMonthName(v)
}

// parseCategory accepts a display name or the numeric id.
func parseCategory(v string) (core.Category, error) {
	if c, err := core.ParseCategory(v); err == nil {
		return c, nil
	}
	if n, err := strconv.Atoi(v); err == nil && core.Category(n).Valid() {
		return core.Category(n), nil
	}
	return 0, fmt.Errorf("%w: %q", core.ErrInvalidCategory, v)
}

// pathParam returns the unescaped chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(raw)
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(pathParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errMalformedParam, name)
	}
	return n, nil
}

// decodeJSON reads a single JSON document into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
