// Package api is the authenticated request client for the trading backend.
//
// Every call returns a Result value instead of an error: transport failures,
// non-2xx statuses and undecodable bodies all come back as a failed Result
// carrying a user-facing message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/logging"
	"trade_dashboard/internal/metrics"
)

// GenericErrorMessage is reported when neither the backend nor the transport
// produced a message.
const GenericErrorMessage = "An error occurred"

// TokenSource supplies the bearer token attached to each request.
type TokenSource interface {
	Token() string
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	RateLimit  float64 // requests per second across all forks; 0 disables pacing
	Burst      int
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Result is the normalized outcome of a request.
type Result struct {
	Success    bool
	Data       json.RawMessage
	Message    string
	StatusCode int
	// FromServer is set when Message came from the backend's error body.
	FromServer bool
	// Kind classifies a failure (apperrors.ErrTransport, ErrUnauthorized, ...).
	Kind error
}

// Err converts a failed Result into an AppError. It returns nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	kind := r.Kind
	if kind == nil {
		kind = apperrors.ErrTransport
	}
	return apperrors.New(kind, r.Message)
}

// transport is shared by a client and all of its forks.
type transport struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// Client sends requests to the backend and tracks its own loading and error state.
type Client struct {
	*transport

	mu       sync.Mutex
	inFlight int
	lastErr  string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, tokens TokenSource, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSilent()
	}

	return &Client{transport: &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		limiter:    limiter,
		logger:     logger.Component("api"),
	}}
}

// Fork returns a client sharing this client's transport, token source and
// rate limiter but with its own loading and error state.
func (c *Client) Fork() *Client {
	return &Client{transport: c.transport}
}

// IsLoading reports whether a request of this client is in flight.
func (c *Client) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// LastError returns the message of the last failed request, or "" once a
// newer request has started.
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError resets the error state.
func (c *Client) ClearError() {
	c.setError("")
}

func (c *Client) setError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) Result {
	return c.Execute(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) Result {
	return c.Execute(ctx, http.MethodPost, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) Result {
	return c.Execute(ctx, http.MethodDelete, path, nil)
}

// Execute sends an authenticated request using the current token.
func (c *Client) Execute(ctx context.Context, method, path string, body any) Result {
	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	return c.execute(ctx, method, path, body, token)
}

func (c *Client) execute(ctx context.Context, method, path string, body any, token string) Result {
	c.mu.Lock()
	c.inFlight++
	c.lastErr = ""
	c.mu.Unlock()

	start := time.Now()
	res := c.roundTrip(ctx, method, path, body, token)

	c.mu.Lock()
	c.inFlight--
	if !res.Success {
		c.lastErr = res.Message
	}
	c.mu.Unlock()

	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	route := metricRoute(path)
	metrics.BackendRequestsTotal.WithLabelValues(method, route, outcome).Inc()
	metrics.BackendRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

	return res
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, token string) Result {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportFailure(err)
		}
	}

	var reader io.Reader
	hasBody := body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if hasBody {
		payload, err := json.Marshal(body)
		if err != nil {
			return Result{Message: fmt.Sprintf("encoding request: %v", err), Kind: apperrors.ErrValidation}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return transportFailure(err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("request failed")
		return transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := backendMessage(data)
		fromServer := msg != ""
		if !fromServer {
			msg = fmt.Sprintf("request failed with status code %d", resp.StatusCode)
		}
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("request_id", requestID).
			Msg(msg)
		return Result{
			Message:    msg,
			StatusCode: resp.StatusCode,
			Data:       data,
			FromServer: fromServer,
			Kind:       apperrors.FromStatus(resp.StatusCode),
		}
	}

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request ok")
	return Result{Success: true, Data: data, StatusCode: resp.StatusCode}
}

func transportFailure(err error) Result {
	msg := GenericErrorMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result{Message: msg, Kind: apperrors.ErrTransport}
}

// errorBody is the structured error shape the backend answers with.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// backendMessage extracts the backend's message from an error body.
func backendMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// metricRoute collapses ids so /watchlist/abc and /watchlist/def share a label.
func metricRoute(path string) string {
	path, _, _ = strings.Cut(path, "?")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 1 {
		return "/" + parts[0] + "/:id"
	}
	return "/" + parts[0]
}

// Decode unmarshals the data of a successful Result. A null or empty body
// yields the zero value.
func Decode[T any](r Result) (T, error) {
	var out T
	if !r.Success {
		return out, r.Err()
	}
	trimmed := bytes.TrimSpace(r.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, apperrors.Wrap(apperrors.ErrTransport, "unexpected response from server", err)
	}
	return out, nil
}
