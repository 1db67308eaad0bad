package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/llm"
	"github.com/modelforge/modelforge/internal/retry"
)

var (
	chatModel     string
	chatSystem    string
	chatNoStream  bool
	chatMaxTokens int
)

var chatCmd = &cobra.Command{
	Use:   "chat <provider> <prompt>...",
	Short: "Send a prompt to a provider",
	Long: `Send a prompt to a provider and print the response.

Responses stream by default; --no-stream waits for the complete answer.
The provider's credentials resolve automatically: environment variable
first, then the OS credential manager, then the configuration document.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "override the provider's default model")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "system prompt to prepend")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the complete response instead of streaming")
	chatCmd.Flags().IntVar(&chatMaxTokens, "max-tokens", 0, "limit the response length")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	provider := config.CanonicalName(args[0])
	prompt := strings.Join(args[1:], " ")

	client, err := app.Registry.Client(cmd.Context(), provider)
	if err != nil {
		return err
	}

	cfg, err := app.Store.Provider(provider)
	if err != nil {
		return err
	}
	model := chatModel
	if model == "" && cfg != nil {
		model = cfg.DefaultModel
	}
	if err := ensureModelAvailable(cmd.Context(), app, client, model); err != nil {
		return err
	}

	// Pick up config edits made while the conversation runs: the
	// watcher drops cached auth strategies so the next resolution sees
	// the new configuration.
	watchCtx, stopWatch := context.WithCancel(cmd.Context())
	defer stopWatch()
	go func() {
		err := app.Registry.WatchConfig(watchCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Debug("config watcher stopped", "error", err)
		}
	}()

	var messages []llm.Message
	if chatSystem != "" {
		messages = append(messages, llm.Message{Role: "system", Content: chatSystem})
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	opts := &llm.ChatOptions{
		Model:     model,
		MaxTokens: chatMaxTokens,
	}

	if chatNoStream {
		return chatComplete(cmd.Context(), app, client, messages, opts)
	}
	return chatStream(cmd.Context(), app, client, messages, opts)
}

// modelAvailability reports whether client can check for model locally
// and, if so, whether the model is installed. Remote providers cannot
// check and report checked=false.
func modelAvailability(ctx context.Context, client llm.Client, model string) (checked, available bool, err error) {
	checker, ok := client.(llm.ModelChecker)
	if !ok || model == "" {
		return false, false, nil
	}
	available, err = checker.ModelAvailable(ctx, model)
	return true, available, err
}

// ensureModelAvailable fails fast when the local runtime does not have
// the requested model, instead of surfacing a mid-stream provider error.
func ensureModelAvailable(ctx context.Context, app *App, client llm.Client, model string) error {
	checked, available, err := modelAvailability(ctx, client, model)
	if err != nil {
		// The chat attempt itself will produce the authoritative error.
		app.Logger.Warn("could not check model availability", "model", model, "error", err)
		return nil
	}
	if checked && !available {
		return fmt.Errorf("model %q is not installed locally; run 'ollama pull %s' first", model, model)
	}
	return nil
}

func chatComplete(ctx context.Context, app *App, client llm.Client, messages []llm.Message, opts *llm.ChatOptions) error {
	retrier, err := retry.New(retry.Options{
		MaxRetries:    2,
		BackoffFactor: 2,
		MaxWait:       30 * time.Second,
		Logger:        app.Logger,
	})
	if err != nil {
		return err
	}

	var resp *llm.Response
	err = retrier.Do(ctx, func(ctx context.Context) error {
		var opErr error
		resp, opErr = client.Chat(ctx, messages, opts)
		return opErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(app.Out, resp.Content)
	app.Logger.Debug("chat completed",
		"model", resp.Model,
		"prompt_tokens", resp.TokensPrompt,
		"total_tokens", resp.TokensTotal)
	return nil
}

// chatStream prints chunks as they arrive. Streams are not retried: a
// failure mid-stream would duplicate already-printed output.
func chatStream(ctx context.Context, app *App, client llm.Client, messages []llm.Message, opts *llm.ChatOptions) error {
	events, err := client.ChatStream(ctx, messages, opts)
	if err != nil {
		return err
	}

	wrote := false
	for ev := range events {
		if ev.Error != nil {
			if wrote {
				fmt.Fprintln(app.Out)
			}
			return ev.Error
		}
		if ev.Content != "" {
			fmt.Fprint(app.Out, ev.Content)
			wrote = true
		}
	}
	if wrote {
		fmt.Fprintln(app.Out)
	}
	return nil
}
