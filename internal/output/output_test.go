package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"text", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"table", FormatTable},
		{"", FormatText},
		{"yaml", FormatText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.input); got != tt.expected {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func sampleRows() []ProviderRow {
	return []ProviderRow{
		{Name: "openai", AuthStrategy: "api_key", Credential: "stored"},
		{Name: "github-copilot", AuthStrategy: "device_flow", Credential: "stored", Detail: "expires in 7h30m"},
		{Name: "ollama", AuthStrategy: "local", Credential: "not required"},
	}
}

func TestWriteProvidersText(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteProviders(sampleRows()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"openai", "[api_key]", "(expires in 7h30m)", "not required"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteProvidersJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatJSON).WriteProviders(sampleRows()); err != nil {
		t.Fatal(err)
	}

	var rows []ProviderRow
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1].Detail != "expires in 7h30m" {
		t.Errorf("detail lost in round trip: %q", rows[1].Detail)
	}
}

func TestWriteProvidersTable(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatTable).WriteProviders(sampleRows()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "PROVIDER") || !strings.Contains(out, "CREDENTIAL") {
		t.Errorf("table header missing:\n%s", out)
	}
	if !strings.Contains(out, "github-copilot") {
		t.Errorf("row missing:\n%s", out)
	}
}

func TestShouldColorize(t *testing.T) {
	var buf bytes.Buffer
	if shouldColorize(ColorAuto, &buf) {
		t.Error("buffers are not terminals")
	}
	if !shouldColorize(ColorAlways, &buf) {
		t.Error("ColorAlways must colorize")
	}
	if shouldColorize(ColorNever, &buf) {
		t.Error("ColorNever must not colorize")
	}
}

func TestSuccessPlainWriter(t *testing.T) {
	var buf bytes.Buffer
	Success(&buf, ColorAuto, "stored key for %s", "openai")
	got := buf.String()
	if got != "✓ stored key for openai\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRenderErrorNil(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, ColorAuto, nil)
	if buf.Len() != 0 {
		t.Errorf("nil error wrote %q", buf.String())
	}
}

func TestRenderErrorKeepsSuggestion(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, ColorNever, &apperrors.ConfigurationError{
		Code:       apperrors.CodeProviderNotConfigured,
		Message:    "provider ghost is not configured",
		Suggestion: "run 'modelforge config set-provider ghost'",
	})

	got := buf.String()
	if !strings.HasPrefix(got, "✗ ") {
		t.Errorf("missing error marker in %q", got)
	}
	if !strings.Contains(got, "provider ghost is not configured") {
		t.Errorf("message lost in %q", got)
	}
	if !strings.Contains(got, "Try: run 'modelforge config set-provider ghost'") {
		t.Errorf("suggestion lost in %q", got)
	}
}

func TestRenderErrorColorized(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, ColorAlways, &apperrors.AuthenticationError{Message: "denied"})
	if !strings.Contains(buf.String(), colorRed) {
		t.Errorf("expected ANSI red in %q", buf.String())
	}
}
