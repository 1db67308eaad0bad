package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/modelforge/modelforge/internal/config"
	apperrors "github.com/modelforge/modelforge/internal/errors"
	"github.com/modelforge/modelforge/internal/secrets"
)

const (
	grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
	grantTypeRefresh    = "refresh_token"

	// slowDownIncrement is added to the poll interval on every
	// slow_down response, cumulatively, per RFC 8628 §3.5.
	slowDownIncrement = 5 * time.Second

	// defaultPollInterval applies when the device code response omits
	// an interval.
	defaultPollInterval = 5 * time.Second

	// maxPollDuration bounds the whole poll loop. The server's own
	// expired_token response usually fires first; this is the local
	// backstop so the loop can never run unattended forever.
	maxPollDuration = 15 * time.Minute
)

// DeviceFlowAuth authenticates a provider through the OAuth2 Device
// Authorization Grant (RFC 8628): request a device code, show the user
// code, poll the token endpoint until approval, then keep the token
// fresh via its refresh token.
type DeviceFlowAuth struct {
	provider      string
	clientID      string
	deviceCodeURL string
	tokenURL      string
	scope         string
	deps          Deps
}

// NewDeviceFlowAuth creates the device flow strategy for a provider.
func NewDeviceFlowAuth(provider string, details config.AuthDetails, deps Deps) *DeviceFlowAuth {
	return &DeviceFlowAuth{
		provider:      config.CanonicalName(provider),
		clientID:      details.ClientID,
		deviceCodeURL: details.DeviceCodeURL,
		tokenURL:      details.TokenURL,
		scope:         details.Scope,
		deps:          deps.withDefaults(),
	}
}

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authenticate runs the full grant: device code request, user
// instruction display, token endpoint polling, persistence. Each call
// starts a fresh flow.
func (d *DeviceFlowAuth) Authenticate(ctx context.Context) (Bundle, error) {
	dc, err := d.requestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(d.deps.Out, "To authenticate with %s, open:\n\n  %s\n\nand enter the code: %s\n\n",
		d.provider, dc.VerificationURI, dc.UserCode)

	// Opening the browser is a courtesy; a failure never aborts the flow.
	if err := d.deps.OpenBrowser(dc.VerificationURI); err != nil {
		d.deps.Logger.Debug("could not open browser", "provider", d.provider, "error", err)
	}

	tok, err := d.pollForToken(ctx, dc)
	if err != nil {
		return nil, err
	}

	if err := d.saveToken(tok); err != nil {
		return nil, err
	}
	return tok.Bundle(), nil
}

// requestDeviceCode performs the INIT step: POST client_id and scope to
// the device code endpoint.
func (d *DeviceFlowAuth) requestDeviceCode(ctx context.Context) (*deviceCodeResponse, error) {
	form := url.Values{}
	form.Set("client_id", d.clientID)
	if d.scope != "" {
		form.Set("scope", d.scope)
	}

	status, body, err := postForm(ctx, d.deps.HTTPClient, d.deviceCodeURL, form)
	if err != nil {
		return nil, err
	}

	dc := &deviceCodeResponse{}
	if err := decodeJSONObject(body, "device code response", dc); err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 || dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, &apperrors.NetworkError{
			Code:       apperrors.CodeOAuthPollError,
			Message:    fmt.Sprintf("device code request to %s failed (status %d)", d.deviceCodeURL, status),
			Suggestion: "verify the provider's auth_details in your configuration",
		}
	}
	return dc, nil
}

// pollForToken runs the POLLING loop: sleep for the current interval,
// POST the device code grant, and react to the response. The interval
// starts at the server-supplied value and grows only on slow_down.
func (d *DeviceFlowAuth) pollForToken(ctx context.Context, dc *deviceCodeResponse) (*TokenInfo, error) {
	interval := defaultPollInterval
	if dc.Interval > 0 {
		interval = time.Duration(dc.Interval) * time.Second
	}

	deadline := d.deps.Now().Add(maxPollDuration)

	form := url.Values{}
	form.Set("client_id", d.clientID)
	form.Set("device_code", dc.DeviceCode)
	form.Set("grant_type", grantTypeDeviceCode)

	for {
		_, body, err := postForm(ctx, d.deps.HTTPClient, d.tokenURL, form)
		if err != nil {
			return nil, err
		}

		tr := &tokenResponse{}
		if err := decodeJSONObject(body, "token response", tr); err != nil {
			return nil, err
		}

		if tr.AccessToken != "" {
			return d.newToken(tr, ""), nil
		}

		switch tr.Error {
		case "authorization_pending":
			// User has not approved yet; keep the same cadence.
		case "slow_down":
			interval += slowDownIncrement
			d.deps.Logger.Debug("server requested slower polling",
				"provider", d.provider, "interval", interval)
		case "expired_token":
			return nil, &apperrors.AuthenticationError{
				Code:       apperrors.CodeExpiredToken,
				Message:    fmt.Sprintf("the %s device code expired before approval", d.provider),
				Suggestion: "run 'modelforge auth login' again and approve the request promptly",
			}
		case "access_denied":
			return nil, &apperrors.AuthenticationError{
				Code:       apperrors.CodeAccessDenied,
				Message:    fmt.Sprintf("the %s authorization request was denied", d.provider),
				Suggestion: "approve the request, or check which account you used",
			}
		default:
			return nil, &apperrors.NetworkError{
				Code:       apperrors.CodeOAuthPollError,
				Message:    fmt.Sprintf("unexpected token endpoint error %q: %s", tr.Error, tr.ErrorDescription),
				Suggestion: "verify the provider's token_url and client_id",
			}
		}

		if d.deps.Now().After(deadline) {
			return nil, &apperrors.NetworkTimeoutError{
				Message:    fmt.Sprintf("gave up waiting for %s authorization after %s", d.provider, maxPollDuration),
				Suggestion: "run 'modelforge auth login' again and approve the request promptly",
			}
		}
		if err := d.deps.Sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// Credentials resolves a usable access token without user interaction.
// The environment variable bypasses storage and expiry handling
// entirely: env-supplied tokens are externally managed.
func (d *DeviceFlowAuth) Credentials(ctx context.Context) (Bundle, error) {
	if v := os.Getenv(EnvVar(d.provider, EnvKindAccessToken)); strings.TrimSpace(v) != "" {
		return Bundle{KeyAccessToken: v}, nil
	}

	tok, err := d.loadToken()
	if err != nil {
		d.deps.Logger.Warn("stored token unreadable", "provider", d.provider, "error", err)
		return nil, nil
	}
	if tok == nil {
		return nil, nil
	}

	now := d.deps.Now()
	if tok.Expired(now) {
		refreshed := d.refreshToken(ctx, tok)
		if refreshed == nil {
			return nil, nil
		}
		return refreshed.Bundle(), nil
	}

	// Inside the refresh buffer the token is still valid; proactive
	// renewal is left to the background streaming hook.
	return tok.Bundle(), nil
}

// refreshToken exchanges the refresh token for a new bundle. Returns
// nil without a network call when no refresh token exists; any failure
// is logged and yields nil so the caller falls back to a fresh login.
func (d *DeviceFlowAuth) refreshToken(ctx context.Context, tok *TokenInfo) *TokenInfo {
	if tok == nil || tok.RefreshToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("client_id", d.clientID)
	form.Set("refresh_token", tok.RefreshToken)
	form.Set("grant_type", grantTypeRefresh)

	status, body, err := postForm(ctx, d.deps.HTTPClient, d.tokenURL, form)
	if err != nil {
		d.deps.Logger.Warn("token refresh failed", "provider", d.provider, "error", err)
		return nil
	}

	tr := &tokenResponse{}
	if err := decodeJSONObject(body, "token response", tr); err != nil {
		d.deps.Logger.Warn("token refresh returned malformed body", "provider", d.provider, "error", err)
		return nil
	}
	if status < 200 || status >= 300 || tr.AccessToken == "" {
		d.deps.Logger.Warn("token refresh rejected",
			"provider", d.provider, "status", status, "oauth_error", tr.Error)
		return nil
	}

	refreshed := d.newToken(tr, tok.RefreshToken)
	if err := d.saveToken(refreshed); err != nil {
		d.deps.Logger.Warn("could not persist refreshed token", "provider", d.provider, "error", err)
		return nil
	}
	return refreshed
}

// RefreshIfNeeded spawns a detached, fire-and-forget refresh when the
// stored token is inside its refresh buffer. It never blocks the
// caller, and failures are logged and discarded: a refresh triggered
// from a streaming callback must not interrupt the in-flight stream.
func (d *DeviceFlowAuth) RefreshIfNeeded(ctx context.Context) {
	tok, err := d.loadToken()
	if err != nil || tok == nil || !tok.NeedsRefresh(d.deps.Now()) {
		return
	}

	// Detach from the caller's cancellation: the stream finishing must
	// not abort the refresh, and vice versa.
	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.deps.Logger.Error("background token refresh panicked",
					"provider", d.provider, "panic", r)
			}
		}()
		if refreshed := d.refreshToken(bg, tok); refreshed != nil {
			d.deps.Logger.Debug("background token refresh succeeded", "provider", d.provider)
		}
	}()
}

// TokenDiagnostics reports stored token timing for status displays,
// or a legacy-format preview when the payload cannot be parsed.
// Returns nil when nothing is stored.
func (d *DeviceFlowAuth) TokenDiagnostics() *Diagnostics {
	raw, err := d.loadRaw()
	if err != nil || raw == "" {
		return nil
	}
	diag := diagnose(raw, d.deps.Now())
	return &diag
}

// ClearCredentials removes the persisted token bundle.
func (d *DeviceFlowAuth) ClearCredentials() error {
	if d.deps.Secrets != nil {
		if err := d.deps.Secrets.Delete(d.provider, secrets.Account(d.provider)); err != nil {
			return fmt.Errorf("deleting stored token for %s: %w", d.provider, err)
		}
	}
	if d.deps.Config != nil {
		if err := d.deps.Config.ClearAuthData(d.provider); err != nil {
			return err
		}
	}
	return nil
}

func (d *DeviceFlowAuth) newToken(tr *tokenResponse, previousRefresh string) *TokenInfo {
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	refresh := tr.RefreshToken
	if refresh == "" {
		// A refresh response may omit the refresh token; the original
		// one stays valid and must be preserved.
		refresh = previousRefresh
	}
	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	scope := tr.Scope
	if scope == "" {
		scope = d.scope
	}
	return &TokenInfo{
		AccessToken:  tr.AccessToken,
		RefreshToken: refresh,
		TokenType:    tokenType,
		AcquiredAt:   d.deps.Now().UTC(),
		ExpiresIn:    expiresIn,
		Scope:        scope,
	}
}

// loadRaw fetches the raw stored payload: secret store first, then the
// config document's auth_data as the alternative persistence path.
func (d *DeviceFlowAuth) loadRaw() (string, error) {
	if d.deps.Secrets != nil {
		raw, err := d.deps.Secrets.Get(d.provider, secrets.Account(d.provider))
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, secrets.ErrNotFound) {
			return "", err
		}
	}
	if d.deps.Config != nil {
		cfg, err := d.deps.Config.Provider(d.provider)
		if err != nil {
			return "", err
		}
		if cfg != nil && cfg.AuthData[KeyAccessToken] != "" {
			return cfg.AuthData[KeyAccessToken], nil
		}
	}
	return "", nil
}

func (d *DeviceFlowAuth) loadToken() (*TokenInfo, error) {
	raw, err := d.loadRaw()
	if err != nil || raw == "" {
		return nil, err
	}
	return parseStoredToken(raw)
}

func (d *DeviceFlowAuth) saveToken(tok *TokenInfo) error {
	payload, err := tok.marshal()
	if err != nil {
		return fmt.Errorf("encoding token for %s: %w", d.provider, err)
	}
	if d.deps.Secrets != nil {
		err := d.deps.Secrets.Set(d.provider, secrets.Account(d.provider), payload)
		if err == nil {
			return nil
		}
		d.deps.Logger.Warn("secret store write failed, persisting token to config",
			"provider", d.provider, "error", err)
	}
	if d.deps.Config != nil {
		return d.deps.Config.SetAuthData(d.provider, map[string]string{KeyAccessToken: payload})
	}
	return fmt.Errorf("no credential store available for %s", d.provider)
}

var _ Strategy = (*DeviceFlowAuth)(nil)
