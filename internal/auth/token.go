package auth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

const (
	// refreshBuffer is the window before actual expiry during which a
	// token is treated as due for proactive renewal.
	refreshBuffer = 5 * time.Minute

	// defaultExpiresIn applies when a token response omits expires_in.
	defaultExpiresIn = 28800 // 8 hours
)

// legacyTokenPrefixes mark pre-JSON stored tokens: a bare access token
// string with unknown expiry, kept for backward compatibility.
var legacyTokenPrefixes = []string{"gho_", "ghr_"}

// TokenInfo is the persisted representation of an OAuth token bundle.
// ExpiryTime is always derived from AcquiredAt + ExpiresIn; the fields
// are never mutated independently.
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ExpiresIn    int64     `json:"expires_in"`
	Scope        string    `json:"scope,omitempty"`

	// Legacy marks a token recovered from the pre-JSON plain-string
	// format. Its expiry is unknown and never enforced.
	Legacy bool `json:"-"`
}

// ExpiryTime returns the instant the token stops being valid.
func (t *TokenInfo) ExpiryTime() time.Time {
	return t.AcquiredAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Expired reports whether the token is past its expiry at now.
// Legacy tokens have unknown expiry and are never reported expired.
func (t *TokenInfo) Expired(now time.Time) bool {
	if t.Legacy {
		return false
	}
	return !now.Before(t.ExpiryTime())
}

// NeedsRefresh reports whether now falls inside the refresh buffer
// before expiry. A token can need refresh while still being valid.
func (t *TokenInfo) NeedsRefresh(now time.Time) bool {
	if t.Legacy {
		return false
	}
	return !now.Before(t.ExpiryTime().Add(-refreshBuffer))
}

// TimeRemaining returns how long until expiry, floored at zero.
func (t *TokenInfo) TimeRemaining(now time.Time) time.Duration {
	remaining := t.ExpiryTime().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Bundle converts the token into the credential bundle shape handed to
// callers.
func (t *TokenInfo) Bundle() Bundle {
	b := Bundle{
		KeyAccessToken: t.AccessToken,
		KeyTokenType:   t.TokenType,
	}
	if t.RefreshToken != "" {
		b[KeyRefreshToken] = t.RefreshToken
	}
	if !t.Legacy {
		b[KeyExpiresAt] = t.ExpiryTime().UTC().Format(time.RFC3339)
	}
	return b
}

// marshal serializes the token for the secret store.
func (t *TokenInfo) marshal() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseStoredToken decodes a secret-store payload into a TokenInfo.
// Bare strings with a known token prefix are accepted as legacy-format
// access tokens with unknown expiry.
func parseStoredToken(raw string) (*TokenInfo, error) {
	trimmed := strings.TrimSpace(raw)
	for _, prefix := range legacyTokenPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return &TokenInfo{
				AccessToken: trimmed,
				TokenType:   "bearer",
				Legacy:      true,
			}, nil
		}
	}

	tok := &TokenInfo{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, &apperrors.JSONDecodeError{
			Source:     "stored token",
			Message:    "payload is neither structured JSON nor a recognized legacy token",
			Suggestion: "re-run 'modelforge auth login' to store a fresh token",
			Err:        err,
		}
	}
	if tok.AccessToken == "" {
		return nil, &apperrors.JSONDecodeError{
			Source:     "stored token",
			Message:    "missing access_token field",
			Suggestion: "re-run 'modelforge auth login' to store a fresh token",
		}
	}
	return tok, nil
}

// Diagnostics describes stored token timing for status displays.
type Diagnostics struct {
	LegacyFormat  bool          `json:"legacy_format,omitempty"`
	TokenPreview  string        `json:"token_preview,omitempty"`
	AcquiredAt    time.Time     `json:"acquired_at,omitempty"`
	ExpiryTime    time.Time     `json:"expiry_time,omitempty"`
	TimeRemaining time.Duration `json:"time_remaining,omitempty"`
	Expired       bool          `json:"expired"`
}

// diagnose builds Diagnostics from a raw stored payload, falling back
// to a redacted preview when the payload cannot be parsed.
func diagnose(raw string, now time.Time) Diagnostics {
	tok, err := parseStoredToken(raw)
	if err != nil || tok.Legacy {
		return Diagnostics{
			LegacyFormat: true,
			TokenPreview: tokenPreview(raw),
		}
	}
	return Diagnostics{
		AcquiredAt:    tok.AcquiredAt,
		ExpiryTime:    tok.ExpiryTime(),
		TimeRemaining: tok.TimeRemaining(now),
		Expired:       tok.Expired(now),
	}
}

func tokenPreview(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= 8 {
		return strconv.Itoa(len(trimmed)) + " chars"
	}
	return trimmed[:8] + "..."
}
