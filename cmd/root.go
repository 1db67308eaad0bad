package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modelforge/modelforge/internal/auth"
	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/llm"
	"github.com/modelforge/modelforge/internal/output"
	"github.com/modelforge/modelforge/internal/secrets"
)

var (
	globalCfgFile string
	localCfgFile  string
)

var rootCmd = &cobra.Command{
	Use:   "modelforge",
	Short: "Manage configuration and credentials for LLM providers",
	Long: `Modelforge manages configuration, credentials, and metadata for
multiple LLM providers behind a single uniform access API.

Providers authenticate with static API keys, the OAuth2 device flow, or
not at all (local runtimes). Credentials resolve from environment
variables first, then the OS credential manager, then the layered
configuration files.

Examples:
  modelforge config set-provider openai --auth-strategy api_key --base-url https://api.openai.com/v1
  modelforge auth login openai
  modelforge auth status
  modelforge ping openai
  modelforge chat openai "hello"`,

	// Errors render through the taxonomy-aware writer below, which
	// keeps the attached suggestion on its own line.
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute is called by main.main(). It runs the root command and
// renders any failure, suggestion included, to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		output.RenderError(os.Stderr, output.ColorAuto, err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initSettings)

	rootCmd.PersistentFlags().StringVar(&globalCfgFile, "global-config", "", "global config file (default is $XDG_CONFIG_HOME/modelforge/config.json)")
	rootCmd.PersistentFlags().StringVar(&localCfgFile, "local-config", "", "local config file (default is ./.modelforge/config.json)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initSettings() {
	viper.SetEnvPrefix("MODELFORGE")
	viper.AutomaticEnv()

	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
}

// App bundles the collaborators every command operates on. Built once
// per invocation instead of living as import-time package state.
type App struct {
	Store    *config.Store
	Secrets  secrets.Store
	Logger   *slog.Logger
	Registry *llm.Registry
	Format   output.Format
	Out      io.Writer
}

func newApp(cmd *cobra.Command) (*App, error) {
	level := slog.LevelError
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := newStore()
	if err != nil {
		return nil, err
	}

	secretStore := secrets.NewKeyring()

	deps := auth.Deps{
		Secrets: secretStore,
		Config:  store,
		Logger:  logger,
	}

	return &App{
		Store:    store,
		Secrets:  secretStore,
		Logger:   logger,
		Registry: llm.NewRegistry(store, deps, logger),
		Format:   output.ParseFormat(viper.GetString("format")),
		Out:      cmd.OutOrStdout(),
	}, nil
}

func newStore() (*config.Store, error) {
	if globalCfgFile == "" && localCfgFile == "" {
		return config.NewStore()
	}
	store, err := config.NewStore()
	if err != nil {
		return nil, err
	}
	global := store.GlobalPath()
	local := store.LocalPath()
	if globalCfgFile != "" {
		global = globalCfgFile
	}
	if localCfgFile != "" {
		local = localCfgFile
	}
	return config.NewStoreAt(global, local), nil
}
