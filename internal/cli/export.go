package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"

	"presupuesto/internal/config"
	"presupuesto/internal/sheets/google"
	"presupuesto/internal/worker"
)

func (c *ctl) exportCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the brand variance report of a year to the spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, app *App) error {
				if app.Config == nil || !app.Config.ExportEnabled() {
					return errors.New("export not configured: set GOOGLE_SPREADSHEET_ID")
				}
				writer, err := google.NewFromConfig(ctx, app.Config)
				if err != nil {
					return err
				}
				if year == 0 {
					year = c.now().Year()
				}
				w := worker.NewExportWorker(app.Service, writer, app.Catalog.BrandNames(), c.now)
				if err := w.ExportYear(ctx, year); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Exported %d variance for %d brands\n",
					okStyle.Render("✓"), year, len(app.Catalog.Brands))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Planning year (default current year)")
	return cmd
}

func (c *ctl) sheetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Spreadsheet export setup",
	}
	var port string
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize spreadsheet access and save the OAuth token",
		Long: "Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or " +
			"GOOGLE_OAUTH_CLIENT_FILE and writes the token to GOOGLE_OAUTH_TOKEN_FILE (default token.json).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return authorize(cmd, config.Load(), port)
		},
	}
	authCmd.Flags().StringVar(&port, "port", "8085", "Local port for the OAuth redirect")
	cmd.AddCommand(authCmd)
	return cmd
}

// authorize runs a local redirect server and exchanges the code it receives.
// The redirect URI http://localhost:<port>/callback must be registered on the
// OAuth client.
func authorize(cmd *cobra.Command, cfg *config.Config, port string) error {
	var b []byte
	var err error
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		b = []byte(cfg.GoogleOAuthClientJSON)
	case cfg.GoogleOAuthClientFile != "":
		b, err = os.ReadFile(cfg.GoogleOAuthClientFile)
		if err != nil {
			return fmt.Errorf("read client file: %w", err)
		}
	default:
		return errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}

	oc, err := oauthgoogle.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}
	oc.RedirectURL = "http://localhost:" + port + "/callback"

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var code string
	select {
	case code = <-codeCh:
	case <-time.After(5 * time.Minute):
		return errors.New("authorization timed out")
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	outFile := cfg.GoogleOAuthTokenFile
	if outFile == "" {
		outFile = "token.json"
	}
	f, err := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	fmt.Fprintf(out, "Saved token to %s\n", outFile)
	return nil
}
