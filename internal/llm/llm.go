// Package llm provides the uniform client layer over configured LLM
// providers.
//
// A Client is built from a provider's configuration plus the credential
// bundle resolved by the auth subsystem. Local runtimes (ollama) need no
// credentials; remote providers speak the OpenAI-compatible chat API
// with a bearer credential.
//
// Example usage:
//
//	registry := llm.NewRegistry(store, deps, logger)
//	client, err := registry.Client(ctx, "openai")
//	if err != nil {
//	    return err
//	}
//	stream, err := client.ChatStream(ctx, messages, nil)
//	for event := range stream {
//	    if event.Error != nil {
//	        return event.Error
//	    }
//	    fmt.Print(event.Content)
//	}
package llm

import (
	"context"
	"errors"
)

// Client is the interface for LLM interactions.
// Implementations must be safe for concurrent use.
type Client interface {
	// Chat sends messages and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// ChatStream sends messages and returns a channel of streaming
	// events. The channel is closed when the stream completes or fails.
	ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error)

	// Heartbeat checks if the provider is reachable and healthy.
	Heartbeat(ctx context.Context) error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender: "system", "user", or "assistant"
	Role string

	// Content is the message text
	Content string
}

// ChatOptions configures chat behavior.
// All fields are optional; nil opts uses provider defaults.
type ChatOptions struct {
	// Model specifies which model to use (e.g., "llama3.2", "gpt-4o")
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float32

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int
}

// Response represents a complete LLM response.
type Response struct {
	Content      string
	Model        string
	TokensPrompt int
	TokensTotal  int
}

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	// Content is the incremental text chunk
	Content string

	// Done indicates the final event in the stream
	Done bool

	// Error terminates the stream when non-nil
	Error error
}

// ModelChecker is implemented by clients that can report whether a
// named model is installed locally. Remote providers do not implement
// it; callers type-assert and skip the check when absent.
type ModelChecker interface {
	ModelAvailable(ctx context.Context, model string) (bool, error)
}

// Common errors returned by LLM clients.
var (
	// ErrProviderUnavailable indicates the provider is not reachable
	ErrProviderUnavailable = errors.New("llm provider is not reachable")

	// ErrInvalidResponse indicates the provider returned an invalid response
	ErrInvalidResponse = errors.New("provider returned invalid response")

	// ErrContextCanceled indicates the operation was canceled via context
	ErrContextCanceled = errors.New("operation was canceled")
)
