// Package auth implements credential management for LLM providers.
//
// Three strategies cover the known provider auth protocols: static API
// keys, the OAuth2 Device Authorization Grant (RFC 8628), and no-auth
// local runtimes. All are dispatched through ForProvider; the variant
// set is closed on purpose.
//
// Credential resolution follows a fixed precedence everywhere:
// environment variable, then persisted secret store / configuration
// document, then interactive acquisition.
package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/term"

	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/secrets"
)

// Credential bundle keys.
const (
	KeyAPIKey       = "api_key"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTokenType    = "token_type"
	KeyExpiresAt    = "expires_at"
)

// Bundle is resolved credential material keyed by credential kind.
//
// A nil Bundle means "credentials needed but absent". An empty non-nil
// Bundle means "no credentials needed, proceed" (the NoAuth case).
type Bundle map[string]string

// Strategy is the capability set shared by all auth variants.
type Strategy interface {
	// Authenticate acquires credentials interactively or by running the
	// provider's auth flow, persists them, and returns the bundle.
	Authenticate(ctx context.Context) (Bundle, error)

	// Credentials retrieves credentials without user interaction. A
	// passive token refresh may happen; an interactive flow never does.
	// Returns nil with no error when nothing usable is stored.
	Credentials(ctx context.Context) (Bundle, error)

	// ClearCredentials removes all persisted credential material.
	ClearCredentials() error
}

// Deps carries the external collaborators a strategy operates on.
// Zero-value fields are filled with production defaults by ForProvider.
type Deps struct {
	Secrets    secrets.Store
	Config     *config.Store
	Logger     *slog.Logger
	HTTPClient *http.Client

	// Prompt reads a secret from the user with echo disabled.
	Prompt func(label string) (string, error)

	// OpenBrowser opens a URL best-effort; failures are non-fatal.
	OpenBrowser func(url string) error

	// Out receives user-facing flow instructions.
	Out io.Writer

	// Now and Sleep are injectable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if d.Prompt == nil {
		d.Prompt = TerminalPrompt
	}
	if d.OpenBrowser == nil {
		d.OpenBrowser = browser.OpenURL
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = sleepCtx
	}
	return d
}

// NoAuth is the strategy for providers that need no credentials, such
// as purely local model runtimes.
type NoAuth struct{}

// Authenticate returns an empty bundle: nothing to acquire.
func (NoAuth) Authenticate(context.Context) (Bundle, error) { return Bundle{}, nil }

// Credentials returns an empty bundle, signalling "proceed without
// credentials" as opposed to nil's "credentials missing".
func (NoAuth) Credentials(context.Context) (Bundle, error) { return Bundle{}, nil }

// ClearCredentials is a no-op.
func (NoAuth) ClearCredentials() error { return nil }

// TerminalPrompt reads a secret from stdin with echo disabled when
// stdin is a terminal, falling back to a plain line read otherwise.
func TerminalPrompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Strategy = NoAuth{}
