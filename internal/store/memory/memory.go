package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"presupuesto/internal/core"
	"presupuesto/internal/store"
)

// Store keeps budgets, invoices and projections in process memory. It backs
// tests and the default "memory" backend.
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	budgets     map[core.BudgetKey]core.MonthlyBudget
	invoices    []core.Invoice
	projections map[string]core.Projection
	order       []string // projection ids in creation order
}

var _ store.Store = (*Store)(nil)

func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:         now,
		budgets:     make(map[core.BudgetKey]core.MonthlyBudget),
		projections: make(map[string]core.Projection),
	}
}

// NewFromFiles seeds invoices from base/seed_invoices.csv when present.
// Each line is: brand,category,subtotal,total,status,YYYY-MM-DD
func NewFromFiles(base string, now func() time.Time) *Store {
	s := New(now)
	for i, line := range readLines(filepath.Join(base, "seed_invoices.csv")) {
		inv, err := parseInvoiceLine(line)
		if err != nil {
			continue
		}
		inv.ID = fmt.Sprintf("seed:%d", i+1)
		s.invoices = append(s.invoices, inv)
	}
	return s
}

// AddInvoices records invoices produced by the invoicing workflow.
func (s *Store) AddInvoices(invs ...core.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range invs {
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		s.invoices = append(s.invoices, inv)
	}
}

func (s *Store) ListMonthlyBudgets(_ context.Context, f store.BudgetFilter) ([]core.MonthlyBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MonthlyBudget
	for _, b := range s.budgets {
		if f.Year != 0 && b.Year != f.Year {
			continue
		}
		if !store.MatchMonth(f.Months, b.Month) {
			continue
		}
		if f.Category != 0 && b.Category != f.Category {
			continue
		}
		if f.Brand != "" && b.Brand != f.Brand {
			continue
		}
		out = append(out, cloneBudget(b))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Brand != b.Brand {
			return a.Brand < b.Brand
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Month < b.Month
	})
	return out, nil
}

func (s *Store) CreateMonthlyBudget(_ context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if err := b.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.budgets[b.Key()]; exists {
		return core.MonthlyBudget{}, &core.DuplicateBudgetError{Brand: b.Brand, Category: b.Category, Month: b.Month, Year: b.Year}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.LastModifiedAt.IsZero() {
		b.LastModifiedAt = s.now()
	}
	s.budgets[b.Key()] = cloneBudget(b)
	return cloneBudget(b), nil
}

func (s *Store) UpdateMonthlyBudget(_ context.Context, b core.MonthlyBudget) (core.MonthlyBudget, error) {
	if err := b.Validate(); err != nil {
		return core.MonthlyBudget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[b.Key()]
	if !ok {
		return core.MonthlyBudget{}, fmt.Errorf("monthly budget %s/%s/%d/%d: %w", b.Brand, b.Category, b.Month, b.Year, core.ErrNotFound)
	}
	b.ID = existing.ID
	if b.LastModifiedAt.IsZero() {
		b.LastModifiedAt = s.now()
	}
	s.budgets[b.Key()] = cloneBudget(b)
	return cloneBudget(b), nil
}

func (s *Store) ListInvoices(_ context.Context, f store.InvoiceFilter) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Invoice
	for _, inv := range s.invoices {
		if f.Year != 0 && inv.IssueDate.Year() != f.Year {
			continue
		}
		if !store.MatchMonth(f.Months, int(inv.IssueDate.Month())) {
			continue
		}
		if f.Brand != "" && inv.Brand != f.Brand {
			continue
		}
		if f.Category != 0 && inv.Category != f.Category {
			continue
		}
		if !store.MatchStatus(f.Statuses, inv.Status) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) ListProjections(_ context.Context, f store.ProjectionFilter) ([]core.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Projection
	for _, id := range s.order {
		p := s.projections[id]
		if f.Year != 0 && p.Year != f.Year {
			continue
		}
		if !store.MatchMonth(f.Months, p.Month) {
			continue
		}
		if f.Brand != "" && p.Brand != f.Brand {
			continue
		}
		out = append(out, cloneProjection(p))
	}
	return out, nil
}

func (s *Store) GetProjection(_ context.Context, id string) (core.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projections[id]
	if !ok {
		return core.Projection{}, fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	return cloneProjection(p), nil
}

func (s *Store) CreateProjection(_ context.Context, p core.Projection) (core.Projection, error) {
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.projections[p.ID]; exists {
		return core.Projection{}, fmt.Errorf("projection %s already exists", p.ID)
	}
	for i := range p.LineItems {
		if p.LineItems[i].ID == "" {
			p.LineItems[i].ID = uuid.NewString()
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.projections[p.ID] = cloneProjection(p)
	s.order = append(s.order, p.ID)
	return cloneProjection(p), nil
}

func (s *Store) UpdateProjection(_ context.Context, p core.Projection) (core.Projection, error) {
	if err := p.Validate(); err != nil {
		return core.Projection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projections[p.ID]
	if !ok {
		return core.Projection{}, fmt.Errorf("projection %s: %w", p.ID, core.ErrNotFound)
	}
	for i := range p.LineItems {
		if p.LineItems[i].ID == "" {
			p.LineItems[i].ID = uuid.NewString()
		}
	}
	p.CreatedAt = existing.CreatedAt
	now := s.now()
	p.ModifiedAt = &now
	s.projections[p.ID] = cloneProjection(p)
	return cloneProjection(p), nil
}

func (s *Store) DeleteProjection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projections[id]; !ok {
		return fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	delete(s.projections, id)
	for i, x := range s.order {
		if x == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ApproveProjection(_ context.Context, id string) (core.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projections[id]
	if !ok {
		return core.Projection{}, fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	if p.Status != core.ProjectionPending {
		return core.Projection{}, fmt.Errorf("projection %s is %s: %w", id, p.Status, core.ErrInvalidTransition)
	}
	p.Status = core.ProjectionApproved
	now := s.now()
	p.ModifiedAt = &now
	s.projections[id] = p
	return cloneProjection(p), nil
}

func (s *Store) SetExceedsBudget(_ context.Context, id string, exceeds bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projections[id]
	if !ok {
		return fmt.Errorf("projection %s: %w", id, core.ErrNotFound)
	}
	p.ExceedsBudget = exceeds
	s.projections[id] = p
	return nil
}

func cloneBudget(b core.MonthlyBudget) core.MonthlyBudget {
	if b.BaseAmount != nil {
		base := *b.BaseAmount
		b.BaseAmount = &base
	}
	return b
}

func cloneProjection(p core.Projection) core.Projection {
	p.LineItems = append([]core.LineItem(nil), p.LineItems...)
	if p.ModifiedAt != nil {
		m := *p.ModifiedAt
		p.ModifiedAt = &m
	}
	return p
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func parseInvoiceLine(line string) (core.Invoice, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return core.Invoice{}, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	cat, err := core.ParseCategory(parts[1])
	if err != nil {
		return core.Invoice{}, err
	}
	subtotal, err := core.ParseAmount(parts[2])
	if err != nil {
		return core.Invoice{}, err
	}
	total, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.Invoice{}, err
	}
	status := core.InvoiceStatus(parts[4])
	if !status.Valid() {
		return core.Invoice{}, core.ErrInvalidStatus
	}
	issued, err := time.Parse("2006-01-02", parts[5])
	if err != nil {
		return core.Invoice{}, err
	}
	return core.Invoice{
		Brand:     parts[0],
		Category:  cat,
		Subtotal:  subtotal,
		Total:     total,
		Status:    status,
		IssueDate: issued,
	}, nil
}
