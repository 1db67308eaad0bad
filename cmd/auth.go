package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelforge/modelforge/internal/auth"
	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/output"
	"github.com/modelforge/modelforge/internal/retry"
)

var loginAPIKey string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login [provider]",
	Short: "Authenticate with a provider",
	Long: `Authenticate with a provider using its configured auth strategy.

API key providers prompt for the key with echo disabled, or take it from
--api-key for non-interactive use. Device flow providers print a user
code and verification URL, then wait for approval in the browser.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [provider]",
	Short: "Remove stored credentials for a provider",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status [provider]",
	Short: "Show credential status for configured providers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "provide the API key directly instead of prompting")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	provider, err := resolveProvider(app, args)
	if err != nil {
		return err
	}

	strategy, err := app.Registry.Strategy(provider)
	if err != nil {
		return err
	}

	if loginAPIKey != "" {
		keyAuth, ok := strategy.(*auth.APIKeyAuth)
		if !ok {
			return fmt.Errorf("--api-key only applies to api_key providers, %s uses a different strategy", provider)
		}
		if err := keyAuth.StoreAPIKey(loginAPIKey); err != nil {
			return err
		}
		output.Success(app.Out, output.ColorAuto, "API key stored for %s", provider)
		return nil
	}

	// Transient network trouble during the flow gets a couple of
	// retries; auth rejections propagate immediately.
	retrier, err := retry.New(retry.Options{
		MaxRetries:    2,
		BackoffFactor: 2,
		MaxWait:       30 * time.Second,
		Logger:        app.Logger,
	})
	if err != nil {
		return err
	}

	err = retrier.Do(cmd.Context(), func(ctx context.Context) error {
		_, err := strategy.Authenticate(ctx)
		return err
	})
	if err != nil {
		return err
	}

	output.Success(app.Out, output.ColorAuto, "authenticated with %s", provider)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	provider, err := resolveProvider(app, args)
	if err != nil {
		return err
	}

	strategy, err := app.Registry.Strategy(provider)
	if err != nil {
		return err
	}
	if err := strategy.ClearCredentials(); err != nil {
		return err
	}

	output.Success(app.Out, output.ColorAuto, "credentials cleared for %s", provider)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	doc, err := app.Store.Load()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(doc.Providers))
	for name := range doc.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(args) > 0 {
		want := config.CanonicalName(args[0])
		if _, ok := doc.Providers[want]; !ok {
			return fmt.Errorf("provider %q is not configured", want)
		}
		names = []string{want}
	}

	rows := make([]output.ProviderRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, providerStatusRow(cmd.Context(), app, name, doc.Providers[name]))
	}

	return output.New(app.Out, app.Format).WriteProviders(rows)
}

// providerStatusRow inspects one provider's credentials without running
// any interactive flow or network refresh.
func providerStatusRow(ctx context.Context, app *App, name string, cfg *config.ProviderConfig) output.ProviderRow {
	row := output.ProviderRow{
		Name:         name,
		AuthStrategy: cfg.AuthStrategy,
	}
	if row.AuthStrategy == "" {
		row.AuthStrategy = config.StrategyNone
	}

	strategy, err := app.Registry.Strategy(name)
	if err != nil {
		row.Credential = "error"
		row.Detail = err.Error()
		return row
	}

	// Device flow tokens carry expiry; report it instead of refreshing.
	if df, ok := strategy.(*auth.DeviceFlowAuth); ok {
		diag := df.TokenDiagnostics()
		switch {
		case diag == nil:
			row.Credential = "not authenticated"
		case diag.LegacyFormat:
			row.Credential = "stored"
			row.Detail = "legacy token " + diag.TokenPreview
		case diag.Expired:
			row.Credential = "expired"
			row.Detail = "expired " + diag.ExpiryTime.UTC().Format(time.RFC3339)
		default:
			row.Credential = "stored"
			row.Detail = fmt.Sprintf("expires in %s", diag.TimeRemaining.Round(time.Minute))
		}
		return row
	}

	creds, err := strategy.Credentials(ctx)
	switch {
	case err != nil:
		row.Credential = "error"
		row.Detail = err.Error()
	case creds == nil:
		row.Credential = "not authenticated"
	case len(creds) == 0:
		row.Credential = "not required"
	default:
		row.Credential = "stored"
	}
	return row
}

// resolveProvider picks the provider from the argument, falling back to
// the configured default.
func resolveProvider(app *App, args []string) (string, error) {
	if len(args) > 0 {
		return config.CanonicalName(args[0]), nil
	}
	doc, err := app.Store.Load()
	if err != nil {
		return "", err
	}
	if doc.DefaultProvider == "" {
		return "", fmt.Errorf("no provider named and no default_provider configured")
	}
	return config.CanonicalName(doc.DefaultProvider), nil
}
