// Package rest is the one place the service talks HTTP to market-data providers.
// Every pull adapter and the catalog source build a Request and hand it to Do.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serp1412/coinfeed/internal/infra"
)

var (
	ErrInvalidTarget    = errors.New("rest: invalid target url")
	ErrInvalidResponse  = errors.New("rest: invalid response")
	ErrUnexpectedStatus = errors.New("rest: unexpected status")
	ErrDecoding         = errors.New("rest: decoding failed")
)

// StatusError carries the HTTP status of a rejected response.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest: unexpected status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Request describes one call.
type Request struct {
	URL    string
	Method string // GET when empty
	Body   []byte
	Header http.Header

	// Transport replaces the client's transport for this call only (tests).
	Transport http.RoundTripper
}

// Interceptor inspects the raw response before decoding.
// A non-nil value is returned as the result; (nil, nil) falls through to JSON decoding.
type Interceptor[T any] func(resp *http.Response, body []byte) (*T, error)

// ExpectOK is the default interceptor: anything but 200 becomes a *StatusError.
func ExpectOK[T any](resp *http.Response, body []byte) (*T, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: body}
	}
	return nil, nil
}

// Client wraps an http.Client. The zero value is not usable; call NewClient.
type Client struct {
	httpClient *http.Client
	limiter    Limiter
}

// Limiter paces outgoing requests. *infra.RateLimiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

type ClientOption func(*Client)

// WithTransport swaps the live transport, e.g. for a MockRoundTripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLimiter makes every request wait for l first. A nil l disables pacing.
func WithLimiter(l Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes req and decodes the JSON body into T.
// A nil client uses NewClient() defaults; a nil intercept uses ExpectOK.
func Do[T any](ctx context.Context, client *Client, req Request, intercept Interceptor[T]) (T, error) {
	var zero T

	if client == nil {
		client = NewClient()
	}
	if intercept == nil {
		intercept = ExpectOK[T]
	}

	httpReq, err := buildRequest(ctx, req)
	if err != nil {
		return zero, err
	}

	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	hc := client.httpClient
	if req.Transport != nil {
		scoped := *hc
		scoped.Transport = req.Transport
		hc = &scoped
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", httpReq.Method, httpReq.URL.Path, err)
	}
	if resp == nil {
		return zero, ErrInvalidResponse
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	out, err := intercept(resp, body)
	if err != nil {
		return zero, err
	}
	if out != nil {
		return *out, nil
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	return result, nil
}

func buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, req.URL)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported method %s", ErrInvalidTarget, req.Method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	httpReq.Header.Set("User-Agent", infra.GetUserAgent())
	httpReq.Header.Set("Accept", "application/json")
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	return httpReq, nil
}
