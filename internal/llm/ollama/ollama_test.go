package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewNilLogger(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestNewInvalidHost(t *testing.T) {
	if _, err := New(Config{Host: "://not-a-url"}, testLogger()); err == nil {
		t.Error("expected error for malformed host URL")
	}
}

func TestNewDefaultModel(t *testing.T) {
	p, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.config.Model != "llama3.2" {
		t.Errorf("default model = %q, want llama3.2", p.config.Model)
	}
}

func TestNewKeepsConfiguredModel(t *testing.T) {
	p, err := New(Config{Host: "http://localhost:11434", Model: "mistral"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.config.Model != "mistral" {
		t.Errorf("model = %q, want mistral", p.config.Model)
	}
}

func TestChatEmptyMessages(t *testing.T) {
	p, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Chat(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty messages")
	}
}

func TestChatStreamEmptyMessages(t *testing.T) {
	p, err := New(Config{Host: "http://localhost:11434"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.ChatStream(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty messages")
	}
}

func newTestProvider(t *testing.T, mux *http.ServeMux) *Provider {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p, err := New(Config{Host: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestHeartbeat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})

	p := newTestProvider(t, mux)
	if err := p.Heartbeat(context.Background()); err != nil {
		t.Errorf("Heartbeat: %v", err)
	}
}

func TestHeartbeatUnreachable(t *testing.T) {
	p, err := New(Config{Host: "http://127.0.0.1:1"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Heartbeat(context.Background()); err == nil {
		t.Error("expected error for unreachable host")
	}
}

func TestModelAvailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models": [
			{"name": "llama3.2:latest", "model": "llama3.2"},
			{"name": "mistral:7b", "model": "mistral:7b"}
		]}`)
	})

	p := newTestProvider(t, mux)

	tests := []struct {
		model    string
		expected bool
	}{
		{"llama3.2", true},
		{"llama3.2:latest", true},
		{"mistral:7b", true},
		{"not-pulled", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := p.ModelAvailable(context.Background(), tt.model)
			if err != nil {
				t.Fatalf("ModelAvailable: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ModelAvailable(%q) = %v, want %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestModelAvailableListError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	p := newTestProvider(t, mux)
	if _, err := p.ModelAvailable(context.Background(), "llama3.2"); err == nil {
		t.Error("expected error when listing models fails")
	}
}
