package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

// postForm sends a form-encoded POST and returns the status code plus
// raw body. Transport failures are classified into the error taxonomy;
// HTTP error statuses are not, since OAuth endpoints put the meaningful
// error in the JSON body.
func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, &apperrors.NetworkError{
			Code:    apperrors.CodeConnectionFailed,
			Message: "building request for " + endpoint,
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, classifyTransportError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransportError(endpoint, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, body, &apperrors.RateLimitError{
			Message:    endpoint + " rate limited the request",
			Suggestion: "wait before retrying",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return resp.StatusCode, body, nil
}

func classifyTransportError(endpoint string, err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.NetworkTimeoutError{
			Message:    "request to " + endpoint + " timed out",
			Suggestion: "check your network connection and try again",
			Err:        err,
		}
	}
	return &apperrors.NetworkError{
		Code:       apperrors.CodeConnectionFailed,
		Message:    "request to " + endpoint + " failed",
		Suggestion: "check your network connection and the endpoint URL",
		Err:        err,
	}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// decodeJSONObject unmarshals body into dst, requiring the payload to
// be a JSON object. OAuth endpoints have been seen returning bare
// strings alongside HTTP errors; that surfaces as a decode error here
// instead of a downstream field-access fault.
func decodeJSONObject(body []byte, source string, dst any) error {
	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		return &apperrors.JSONDecodeError{
			Source:  source,
			Message: "response body is not valid JSON",
			Err:     err,
		}
	}
	if _, ok := probe.(map[string]any); !ok {
		return &apperrors.JSONDecodeError{
			Source:  source,
			Message: "response body is not a JSON object",
		}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &apperrors.JSONDecodeError{
			Source:  source,
			Message: "response body has unexpected field types",
			Err:     err,
		}
	}
	return nil
}
