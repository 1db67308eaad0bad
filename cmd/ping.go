package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelforge/modelforge/internal/output"
	"github.com/modelforge/modelforge/internal/retry"
)

var pingCmd = &cobra.Command{
	Use:   "ping [provider]",
	Short: "Check that a provider is reachable with the stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	provider, err := resolveProvider(app, args)
	if err != nil {
		return err
	}

	client, err := app.Registry.Client(cmd.Context(), provider)
	if err != nil {
		return err
	}

	retrier, err := retry.New(retry.Options{
		MaxRetries:    2,
		BackoffFactor: 2,
		MaxWait:       10 * time.Second,
		Logger:        app.Logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	err = retrier.Do(cmd.Context(), func(ctx context.Context) error {
		return client.Heartbeat(ctx)
	})
	if err != nil {
		return err
	}

	output.Success(app.Out, output.ColorAuto, "%s is reachable (%s)", provider, time.Since(start).Round(time.Millisecond))

	// Local runtimes can also tell us whether the default model is
	// actually pulled; the heartbeat alone does not.
	cfg, err := app.Store.Provider(provider)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.DefaultModel != "" {
		checked, available, err := modelAvailability(cmd.Context(), client, cfg.DefaultModel)
		switch {
		case err != nil:
			app.Logger.Warn("could not check model availability",
				"model", cfg.DefaultModel, "error", err)
		case checked && !available:
			output.Warn(app.Out, output.ColorAuto,
				"model %s is not installed; run 'ollama pull %s'", cfg.DefaultModel, cfg.DefaultModel)
		case checked:
			output.Success(app.Out, output.ColorAuto, "model %s is installed", cfg.DefaultModel)
		}
	}
	return nil
}
