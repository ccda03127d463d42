package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"presupuesto/internal/budget"
	"presupuesto/internal/config"
	"presupuesto/internal/core"
	"presupuesto/internal/period"
	"presupuesto/internal/storage"
	"presupuesto/internal/store"
	"presupuesto/internal/variance"
	"presupuesto/internal/visibility"
)

// Opener builds the App a command runs against. The caller closes it.
type Opener func(ctx context.Context) (*App, error)

// CtlOptions wire the command tree to its environment.
type CtlOptions struct {
	Open        Opener
	Now         func() time.Time
	CatalogPath string
}

type ctl struct {
	open        Opener
	now         func() time.Time
	catalogPath string
}

// NewRootCommand returns the presupuestoctl command tree.
func NewRootCommand(opts CtlOptions) *cobra.Command {
	c := &ctl{open: opts.Open, now: opts.Now, catalogPath: opts.CatalogPath}
	if c.now == nil {
		c.now = time.Now
	}
	if c.catalogPath == "" {
		c.catalogPath = "./catalog.toml"
	}

	root := &cobra.Command{
		Use:           "presupuestoctl",
		Short:         "Dealership marketing budget CLI",
		Long:          "Plan monthly budgets, approve projections and reconcile them against invoiced spend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		c.migrateCommand(),
		c.varianceCommand(),
		c.budgetCommand(),
		c.projectionCommand(),
		c.catalogCommand(),
		c.exportCommand(),
		c.sheetsCommand(),
	)
	return root
}

// withApp opens the app for the duration of fn.
func (c *ctl) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

// Migrate

func (c *ctl) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening a SQL backend runs its migrations.
			return c.withApp(cmd, func(_ context.Context, app *App) error {
				backendType := "memory"
				if app.Config != nil {
					backendType = app.Config.DataBackend
				}
				if backendType == "memory" {
					fmt.Fprintln(cmd.OutOrStdout(), "  Memory backend has no migrations.")
					return nil
				}
				dialect, dsn := storage.SQLite, app.Config.SQLiteDBPath
				if backendType == "postgres" {
					dialect, dsn = storage.Postgres, app.Config.DatabaseURL
				}
				version, dirty, err := storage.MigrationVersion(dialect, dsn)
				if err != nil {
					return err
				}
				if dirty {
					return fmt.Errorf("schema version %d is dirty", version)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  Migrations applied (%s, version %d).\n", backendType, version)
				return nil
			})
		},
	}
}

// Variance

type scopeFlags struct {
	year    int
	mode    string
	month   int
	quarter string
	brand   string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "Planning year (default current year)")
	cmd.Flags().StringVar(&f.mode, "mode", "ytd", "Period mode: ytd, month or quarter")
	cmd.Flags().IntVarP(&f.month, "month", "m", 0, "Month for --mode month (default current month)")
	cmd.Flags().StringVarP(&f.quarter, "quarter", "q", period.AllQuarters, "Quarter for --mode quarter: Q1..Q4 or Todos")
	cmd.Flags().StringVarP(&f.brand, "brand", "b", "", "Drill down to one brand")
}

func (f *scopeFlags) scope(now time.Time, catalog config.Catalog) (variance.Scope, period.Selection, error) {
	mode, err := period.ParseMode(f.mode)
	if err != nil {
		return variance.Scope{}, period.Selection{}, err
	}
	sel := period.Selection{Mode: mode, Month: f.month, Quarter: f.quarter}
	if mode == period.Month && sel.Month == 0 {
		sel.Month = int(now.Month())
	}
	months, err := period.ResolveAt(sel, now)
	if err != nil {
		return variance.Scope{}, sel, err
	}
	year := f.year
	if year == 0 {
		year = now.Year()
	}
	if err := core.ValidateYear(year); err != nil {
		return variance.Scope{}, sel, err
	}

	filter := visibility.New(catalog.BrandNames())
	if f.brand != "" {
		if !catalog.HasBrand(f.brand) {
			return variance.Scope{}, sel, fmt.Errorf("unknown brand %q", f.brand)
		}
		filter = filter.Scoped(f.brand)
	}
	return variance.Scope{Filter: filter, Months: months, Year: year}, sel, nil
}

func describe(sel period.Selection) string {
	switch sel.Mode {
	case period.Month:
		if q, err := period.QuarterOf(sel.Month); err == nil {
			return fmt.Sprintf("%s (%s)", core.MonthName(sel.Month), q)
		}
		return core.MonthName(sel.Month)
	case period.Quarter:
		return sel.Quarter
	}
	return "YTD"
}

func (c *ctl) varianceCommand() *cobra.Command {
	var (
		sf    scopeFlags
		by    string
		width int
	)
	cmd := &cobra.Command{
		Use:   "variance",
		Short: "Budget vs projection vs spend for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				sc, sel, err := sf.scope(c.now(), app.Catalog)
				if err != nil {
					return err
				}

				var rows []variance.Summary
				switch by {
				case "total":
					sum, err := app.Service.Variance(ctx, sc)
					if err != nil {
						return err
					}
					rows = []variance.Summary{sum}
				case "category":
					rows, err = app.Service.VarianceByCategory(ctx, sc)
				case "brand":
					rows, err = app.Service.VarianceByBrand(ctx, sc, app.Catalog.BrandNames())
				default:
					return fmt.Errorf("invalid --by %q: use total, category or brand", by)
				}
				if err != nil {
					return err
				}

				scopeName := sf.brand
				if scopeName == "" {
					scopeName = "Todas las marcas"
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out)
				fmt.Fprintln(out, RenderTitle(fmt.Sprintf("VARIANZA  %s  %s %d", scopeName, describe(sel), sc.Year)))
				fmt.Fprintln(out)
				fmt.Fprint(out, RenderTable(varianceTable(rows, by, width)))
				fmt.Fprintln(out, mutedStyle.Render("  █ gasto en presupuesto  █ sobregiro  │ proyección  ┃ presupuesto"))
				return nil
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&by, "by", "total", "Breakdown: total, category or brand")
	cmd.Flags().IntVar(&width, "width", 30, "Width of the spend bar")
	return cmd
}

func varianceTable(rows []variance.Summary, by string, width int) Table {
	t := Table{Headers: []string{"", "Presupuesto", "Proyección", "Reembolsos", "Gasto", "% Gasto", "Avance"}}
	for _, s := range rows {
		name := "Total"
		switch by {
		case "category":
			name = s.Category.String()
		case "brand":
			name = s.Brand
		}
		if s.ExceedsBudget {
			name += " !"
		}
		pctSpend := s.Comparison.PctSpendGreen + s.Comparison.PctSpendRed
		t.Rows = append(t.Rows, []string{
			name,
			FormatMoney(s.Budget),
			FormatMoney(s.Projection),
			FormatMoney(s.Reimbursement),
			FormatMoney(s.Spend),
			FormatPercent(pctSpend),
			RenderVarianceBar(s.Comparison, width),
		})
	}
	return t
}

// Budgets

type targetFlags struct {
	brand    string
	category string
	year     int
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.brand, "brand", "b", "", "Brand")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "Category name or number")
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "Planning year (default current year)")
	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("category")
}

func (f *targetFlags) target(now time.Time, catalog config.Catalog) (budget.Target, error) {
	if !catalog.HasBrand(f.brand) {
		return budget.Target{}, fmt.Errorf("unknown brand %q", f.brand)
	}
	cat, err := parseCategoryArg(f.category)
	if err != nil {
		return budget.Target{}, err
	}
	year := f.year
	if year == 0 {
		year = now.Year()
	}
	t := budget.Target{Brand: f.brand, Category: cat, Year: year}
	return t, t.Validate()
}

func parseCategoryArg(v string) (core.Category, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		if c := core.Category(n); c.Valid() {
			return c, nil
		}
		return 0, core.ErrInvalidCategory
	}
	return core.ParseCategory(v)
}

func (c *ctl) budgetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect and edit monthly budgets",
	}
	cmd.AddCommand(c.budgetShowCommand(), c.budgetBaseCommand(), c.budgetSetCommand())
	return cmd
}

func (c *ctl) budgetShowCommand() *cobra.Command {
	var tf targetFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the 12 months of a brand/category/year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				target, err := tf.target(c.now(), app.Catalog)
				if err != nil {
					return err
				}
				records, err := app.Service.Budgets().Query(ctx, store.BudgetFilter{
					Year: target.Year, Brand: target.Brand, Category: target.Category,
				})
				if err != nil {
					return err
				}
				renderBudgetGrid(cmd.OutOrStdout(), target, records)
				return nil
			})
		},
	}
	tf.register(cmd)
	return cmd
}

func renderBudgetGrid(out io.Writer, target budget.Target, records []core.MonthlyBudget) {
	amounts := budget.MonthlyAmounts(records)
	byMonth := make(map[int]core.MonthlyBudget, len(records))
	for _, r := range records {
		byMonth[r.Month] = r
	}

	t := Table{Headers: []string{"Mes", "Monto", "Modificó"}}
	total := decimal.Zero
	for m := 1; m <= 12; m++ {
		who := ""
		if r, ok := byMonth[m]; ok {
			who = r.LastModifiedBy
		}
		t.Rows = append(t.Rows, []string{core.MonthName(m), FormatMoney(amounts[m-1]), who})
		total = total.Add(amounts[m-1])
	}
	t.Rows = append(t.Rows, []string{"---"}, []string{"Total", FormatMoney(total), ""})

	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderTitle(fmt.Sprintf("PRESUPUESTO  %s  %s %d", target.Brand, target.Category, target.Year)))
	fmt.Fprintln(out)
	fmt.Fprint(out, RenderTable(t))
	fmt.Fprintf(out, "  Base mensual: %s\n", valueStyle.Render(FormatMoney(budget.DisplayBase(records))))
}

func (c *ctl) budgetBaseCommand() *cobra.Command {
	var (
		tf     targetFlags
		amount string
		user   string
	)
	cmd := &cobra.Command{
		Use:   "base",
		Short: "Fill all 12 months with the same amount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				target, err := tf.target(c.now(), app.Catalog)
				if err != nil {
					return err
				}
				res, err := app.Service.SaveBudget(ctx, target, budget.BaseEdit{Amount: a}, user)
				return reportSave(cmd.OutOrStdout(), app, target, res, err)
			})
		},
	}
	tf.register(cmd)
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Monthly amount")
	cmd.Flags().StringVarP(&user, "user", "u", currentUser(), "Recorded as last modifier")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *ctl) budgetSetCommand() *cobra.Command {
	var (
		tf   targetFlags
		sets []string
		user string
	)
	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Override individual months",
		Example: "  presupuestoctl budget set -b Norte -c Digital --set 3=1500 --set 4=2000",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amounts, err := parseMonthAmounts(sets)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				target, err := tf.target(c.now(), app.Catalog)
				if err != nil {
					return err
				}
				res, err := app.Service.SaveBudget(ctx, target, budget.IndividualEdit{Amounts: amounts}, user)
				return reportSave(cmd.OutOrStdout(), app, target, res, err)
			})
		},
	}
	tf.register(cmd)
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "MONTH=AMOUNT, month as number or name (repeatable)")
	cmd.Flags().StringVarP(&user, "user", "u", currentUser(), "Recorded as last modifier")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func parseMonthAmounts(sets []string) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want MONTH=AMOUNT", s)
		}
		m, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			if m, err = core.ParseMonthName(strings.TrimSpace(k)); err != nil {
				return nil, fmt.Errorf("invalid --set %q: %w", s, err)
			}
		}
		if err := core.ValidateMonth(m); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", s, err)
		}
		a, err := core.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", s, err)
		}
		out[m] = a
	}
	return out, nil
}

// reportSave prints the per-month outcome. A partial save leaves the
// session open, so it is cancelled here: the CLI has no way to retry it.
func reportSave(out io.Writer, app *App, target budget.Target, res budget.SaveResult, err error) error {
	if err != nil && !errors.Is(err, core.ErrPartialSave) {
		return err
	}
	saved := 0
	for _, m := range res.Months {
		if m.Err == nil {
			saved++
			continue
		}
		fmt.Fprintf(out, "  %s %s: %v\n", overStyle.Render("✗"), core.MonthName(m.Month), m.Err)
	}
	fmt.Fprintf(out, "  %s %d of 12 months saved for %s / %s %d\n",
		okStyle.Render("✓"), saved, target.Brand, target.Category, target.Year)
	if err != nil {
		_ = app.Service.CancelBudgetEdit(target)
	}
	return err
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "presupuestoctl"
}

// Projections

func (c *ctl) projectionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection",
		Short: "List and approve spend projections",
	}
	cmd.AddCommand(c.projectionListCommand(), c.projectionApproveCommand())
	return cmd
}

func (c *ctl) projectionListCommand() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projections of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				sc, _, err := sf.scope(c.now(), app.Catalog)
				if err != nil {
					return err
				}
				ps, err := app.Service.Projections().ListByScope(ctx, sc.Filter, sc.Months, sc.Year)
				if err != nil {
					return err
				}
				sort.SliceStable(ps, func(i, j int) bool {
					if ps[i].Month != ps[j].Month {
						return ps[i].Month < ps[j].Month
					}
					return ps[i].Brand < ps[j].Brand
				})

				t := Table{Headers: []string{"ID", "Marca", "Mes", "Estado", "Monto", "Excede"}}
				for _, p := range ps {
					total := decimal.Zero
					for _, li := range p.LineItems {
						if !li.IsReimbursement {
							total = total.Add(li.Amount)
						}
					}
					exceeds := ""
					if p.ExceedsBudget {
						exceeds = "Sí"
					}
					t.Rows = append(t.Rows, []string{p.ID, p.Brand, core.MonthName(p.Month), string(p.Status), FormatMoney(total), exceeds})
				}
				out := cmd.OutOrStdout()
				if len(t.Rows) == 0 {
					fmt.Fprintln(out, "\n  No projections in the selected period.")
					return nil
				}
				fmt.Fprint(out, RenderTable(t))
				return nil
			})
		},
	}
	sf.register(cmd)
	return cmd
}

func (c *ctl) projectionApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending projection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				p, err := app.Service.ApproveProjection(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Projection %s approved (%s, %s %d)\n",
					okStyle.Render("✓"), p.ID, p.Brand, core.MonthName(p.Month), p.Year)
				return nil
			})
		},
	}
}

// Catalog

func (c *ctl) catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the brand catalog file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default brand catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(c.catalogPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", c.catalogPath)
			}
			if err := config.SaveCatalog(c.catalogPath, config.DefaultCatalog()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Wrote %s\n", c.catalogPath)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing catalog")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the brands in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := config.LoadCatalog(c.catalogPath)
			if err != nil {
				return err
			}
			t := Table{Headers: []string{"ID", "Marca"}}
			for _, b := range cat.Brands {
				t.Rows = append(t.Rows, []string{b.ID, b.Name})
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderTable(t))
			return nil
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
