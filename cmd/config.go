package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/output"
)

var (
	setProviderLocal bool
	setAuthStrategy  string
	setBaseURL       string
	setDefaultModel  string
	setClientID      string
	setDeviceCodeURL string
	setTokenURL      string
	setScope         string
	setAsDefault     bool

	removeProviderLocal bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit provider configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged provider configuration",
	Long: `Show the merged view of the global and local configuration layers.
Stored credential material under auth_data is redacted.`,
	RunE: runConfigShow,
}

var configSetProviderCmd = &cobra.Command{
	Use:   "set-provider <provider>",
	Short: "Add or update a provider entry",
	Long: `Add or update a provider entry in the global configuration, or in the
local ./.modelforge layer with --local. Only flags that are set change
the stored entry; omitted flags keep their current values.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetProvider,
}

var configRemoveProviderCmd = &cobra.Command{
	Use:   "remove-provider <provider>",
	Short: "Remove a provider entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRemoveProvider,
}

func init() {
	configSetProviderCmd.Flags().BoolVar(&setProviderLocal, "local", false, "write to the local layer instead of global")
	configSetProviderCmd.Flags().StringVar(&setAuthStrategy, "auth-strategy", "", "auth strategy (api_key, device_flow, local, none)")
	configSetProviderCmd.Flags().StringVar(&setBaseURL, "base-url", "", "provider API base URL")
	configSetProviderCmd.Flags().StringVar(&setDefaultModel, "model", "", "default model name")
	configSetProviderCmd.Flags().StringVar(&setClientID, "client-id", "", "OAuth client ID (device_flow)")
	configSetProviderCmd.Flags().StringVar(&setDeviceCodeURL, "device-code-url", "", "OAuth device code endpoint (device_flow)")
	configSetProviderCmd.Flags().StringVar(&setTokenURL, "token-url", "", "OAuth token endpoint (device_flow)")
	configSetProviderCmd.Flags().StringVar(&setScope, "scope", "", "OAuth scope (device_flow)")
	configSetProviderCmd.Flags().BoolVar(&setAsDefault, "default", false, "make this the default provider")

	configRemoveProviderCmd.Flags().BoolVar(&removeProviderLocal, "local", false, "remove from the local layer instead of global")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetProviderCmd)
	configCmd.AddCommand(configRemoveProviderCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	doc, err := app.Store.Load()
	if err != nil {
		return err
	}

	return output.New(app.Out, output.FormatJSON).WriteJSON(redact(doc))
}

// redact replaces stored credential values with a placeholder so config
// show never prints secrets.
func redact(doc *config.Document) *config.Document {
	out := &config.Document{
		DefaultProvider: doc.DefaultProvider,
		Providers:       make(map[string]*config.ProviderConfig, len(doc.Providers)),
	}
	for name, cfg := range doc.Providers {
		clean := *cfg
		if len(cfg.AuthData) > 0 {
			clean.AuthData = make(map[string]string, len(cfg.AuthData))
			for k := range cfg.AuthData {
				clean.AuthData[k] = "<redacted>"
			}
		}
		out.Providers[name] = &clean
	}
	return out
}

func runConfigSetProvider(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	name := config.CanonicalName(args[0])
	scope := config.ScopeGlobal
	if setProviderLocal {
		scope = config.ScopeLocal
	}

	layer, err := app.Store.Layer(scope)
	if err != nil {
		return err
	}
	cfg := layer.Providers[name]
	if cfg == nil {
		cfg = &config.ProviderConfig{}
	}

	if setAuthStrategy != "" {
		switch setAuthStrategy {
		case config.StrategyAPIKey, config.StrategyDeviceFlow, config.StrategyLocal, config.StrategyNone:
		default:
			return fmt.Errorf("unknown auth strategy %q (expected api_key, device_flow, local, or none)", setAuthStrategy)
		}
		cfg.AuthStrategy = setAuthStrategy
	}
	if setBaseURL != "" {
		cfg.BaseURL = setBaseURL
	}
	if setDefaultModel != "" {
		cfg.DefaultModel = setDefaultModel
	}
	if setClientID != "" || setDeviceCodeURL != "" || setTokenURL != "" || setScope != "" {
		if cfg.AuthDetails == nil {
			cfg.AuthDetails = &config.AuthDetails{}
		}
		if setClientID != "" {
			cfg.AuthDetails.ClientID = setClientID
		}
		if setDeviceCodeURL != "" {
			cfg.AuthDetails.DeviceCodeURL = setDeviceCodeURL
		}
		if setTokenURL != "" {
			cfg.AuthDetails.TokenURL = setTokenURL
		}
		if setScope != "" {
			cfg.AuthDetails.Scope = setScope
		}
	}

	if cfg.AuthStrategy == config.StrategyDeviceFlow && !cfg.AuthDetails.Complete() {
		output.Warn(app.Out, output.ColorAuto,
			"device_flow needs client-id, device-code-url, and token-url before 'auth login' will work")
	}

	if err := app.Store.SetProvider(name, cfg, scope); err != nil {
		return err
	}

	if setAsDefault {
		if err := app.Store.SetDefaultProvider(name, scope); err != nil {
			return err
		}
	}

	output.Success(app.Out, output.ColorAuto, "provider %s configured (%s layer)", name, scope)
	return nil
}

func runConfigRemoveProvider(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	name := config.CanonicalName(args[0])
	scope := config.ScopeGlobal
	if removeProviderLocal {
		scope = config.ScopeLocal
	}

	if err := app.Store.RemoveProvider(name, scope); err != nil {
		return err
	}

	output.Success(app.Out, output.ColorAuto, "provider %s removed (%s layer)", name, scope)
	return nil
}
