package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

// openAIClient speaks the OpenAI-compatible chat completions API used
// by the remote providers. The bearer credential comes from whatever
// the provider's auth strategy resolved: an API key or an OAuth access
// token, both sent the same way.
type openAIClient struct {
	baseURL    string
	token      string
	model      string
	httpClient *http.Client
	logger     *slog.Logger

	// onStreamEvent fires once per received stream chunk. The registry
	// uses it to trigger proactive background token refresh.
	onStreamEvent func()
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openAIClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	body, err := c.do(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	resp := &chatCompletionResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrInvalidResponse)
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		TokensPrompt: resp.Usage.PromptTokens,
		TokensTotal:  resp.Usage.TotalTokens,
	}, nil
}

func (c *openAIClient) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	body, err := c.do(ctx, c.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	eventChan := make(chan StreamEvent, 10)

	go func() {
		defer close(eventChan)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				eventChan <- StreamEvent{
					Error: fmt.Errorf("%w: %v", ErrContextCanceled, ctx.Err()),
					Done:  true,
				}
				return
			default:
			}

			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				eventChan <- StreamEvent{Done: true}
				return
			}

			chunk := &chatCompletionResponse{}
			if err := json.Unmarshal([]byte(payload), chunk); err != nil {
				c.logger.Debug("skipping malformed stream chunk", "error", err)
				continue
			}

			if c.onStreamEvent != nil {
				c.onStreamEvent()
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				eventChan <- StreamEvent{Content: chunk.Choices[0].Delta.Content}
			}
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
			eventChan <- StreamEvent{
				Error: fmt.Errorf("%w: %v", ErrProviderUnavailable, err),
				Done:  true,
			}
		}
	}()

	return eventChan, nil
}

func (c *openAIClient) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyHTTPError(c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *openAIClient) buildRequest(messages []Message, opts *ChatOptions, stream bool) *chatCompletionRequest {
	req := &chatCompletionRequest{
		Model:    c.model,
		Messages: make([]chatMessage, len(messages)),
		Stream:   stream,
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
	}
	for i, msg := range messages {
		req.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}
	return req
}

// do sends the chat completion request and returns the response body.
// Rate limiting and timeouts map into the shared error taxonomy so the
// retry wrapper can act on them.
func (c *openAIClient) do(ctx context.Context, payload *chatCompletionRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyHTTPError(c.baseURL, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfterHeader(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		return nil, &apperrors.RateLimitError{
			Message:    c.baseURL + " rate limited the request",
			Suggestion: "wait before retrying",
			RetryAfter: retryAfter,
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *openAIClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func classifyHTTPError(endpoint string, err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.NetworkTimeoutError{
			Message:    "request to " + endpoint + " timed out",
			Suggestion: "check your network connection and try again",
			Err:        err,
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

func parseRetryAfterHeader(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

var _ Client = (*openAIClient)(nil)
