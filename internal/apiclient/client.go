package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/cwoolley/solmcp/internal/logging"
)

// bodyPreviewLen is how much of a failed response body ends up in the log.
const bodyPreviewLen = 200

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Client issues JSON requests against one backend base URL.
type Client struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*Client)

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client targeting the given base URL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    baseURL,
		header:     http.Header{"Accept": []string{"application/json"}},
		httpClient: httpClient,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET for path with the given query parameters and returns the
// parsed JSON body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

// Post issues a POST for path with the given query parameters and body
// encoded as JSON, and returns the parsed JSON response.
func (c *Client) Post(ctx context.Context, path string, params url.Values, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, params, payload)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) (gjson.Result, error) {
	log := logging.FromContext(ctx, c.log)

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("parse URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("path", path).Msg("Backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ev := log.Error()
		if errors.Is(err, context.Canceled) {
			ev = log.Debug()
		}
		ev.Err(err).Str("method", method).Str("path", path).Msg("HTTP error")
		return gjson.Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("HTTP error")
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
		log.Error().
			Err(statusErr).
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("response", preview(statusErr.Body)).
			Msg("HTTP error")
		return gjson.Result{}, statusErr
	}

	if !gjson.ValidBytes(data) {
		err := errors.New("response is not valid JSON")
		log.Error().Err(err).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Str("response", preview(string(data))).Msg("HTTP error")
		return gjson.Result{}, fmt.Errorf("decode response: %w", err)
	}
	return gjson.ParseBytes(data), nil
}

// preview cuts s to its first bodyPreviewLen characters.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= bodyPreviewLen {
		return s
	}
	return string(runes[:bodyPreviewLen])
}
