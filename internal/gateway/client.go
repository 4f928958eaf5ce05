package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/portal-auth/internal/api/dto"
)

const (
	maxResponseBytes   = 1 << 20
	opUnexpectedStatus = "unexpected http status"
)

// Client speaks JSON to the identity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// RequestError describes a failed identity call. Transient marks failures that
// are the remote's or the network's fault rather than the caller's.
type RequestError struct {
	Op         string
	StatusCode int
	Transient  bool
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	default:
		return e.Op
	}
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewClient validates baseURL and builds a client with a per-call timeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, &RequestError{Op: "create identity client", Err: errors.New("identity base url is empty")}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &RequestError{Op: "parse identity base url", Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &RequestError{Op: "validate identity base url", Err: fmt.Errorf("invalid identity base url: %s", trimmed)}
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// RejectedStatus returns the remote status code when err is a non-2xx
// response, or 0 for transport and decode failures.
func RejectedStatus(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Op == opUnexpectedStatus {
		return reqErr.StatusCode
	}
	return 0
}

// RemoteMessage returns the message the identity service attached to a rejection.
func RemoteMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return ""
}

// DoJSON sends requestBody as JSON and decodes a 2xx response into
// responseBody. bearer, when set, is sent as the Authorization credential.
func (c *Client) DoJSON(ctx context.Context, method, path, bearer string, requestBody, responseBody interface{}) error {
	if c == nil || c.httpClient == nil {
		return &RequestError{Op: "do json request", Err: errors.New("identity client is not initialized")}
	}

	var payload []byte
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return &RequestError{Op: "marshal request body", Err: err}
		}
		payload = raw
	}

	statusCode, responseBytes, err := c.do(ctx, method, path, bearer, payload)
	if err != nil {
		return err
	}
	if responseBody == nil || len(responseBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBytes, responseBody); err != nil {
		return &RequestError{Op: "decode http response", StatusCode: statusCode, Transient: true, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (int, []byte, error) {
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}
	fullURL := c.baseURL + ensureLeadingSlash(path)

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return 0, nil, &RequestError{Op: "create http request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &RequestError{Op: "execute http request", Transient: isNetworkError(err), Err: err}
	}
	defer resp.Body.Close()

	responseBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		return resp.StatusCode, nil, &RequestError{
			Op:         "read http response",
			StatusCode: resp.StatusCode,
			Transient:  true,
			Err:        readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := remoteMessage(responseBytes, resp.StatusCode)
		return resp.StatusCode, responseBytes, &RequestError{
			Op:         opUnexpectedStatus,
			StatusCode: resp.StatusCode,
			Transient:  resp.StatusCode >= 500,
			Message:    message,
			Err:        errors.New(message),
		}
	}

	return resp.StatusCode, responseBytes, nil
}

func remoteMessage(body []byte, statusCode int) string {
	var envelope dto.ErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		if flat.Message != "" {
			return flat.Message
		}
		if flat.Error != "" {
			return flat.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(statusCode)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func ensureLeadingSlash(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return "/" + trimmed
}
