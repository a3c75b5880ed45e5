// Package api talks to the attendance backend REST API on behalf of one
// dashboard session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"semaphore/dashboard/internal/logger"
	"semaphore/dashboard/internal/metrics"
)

// ErrSessionExpired is returned when the backend answered 401. The session
// has already been invalidated when a caller sees it.
var ErrSessionExpired = errors.New("Sesión expirada")

const maxResponseBytes = 4 << 20

// Credentials supplies the bearer token and is told when the backend rejected
// it. *session.Store satisfies it.
type Credentials interface {
	Token() string
	Invalidate(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	creds      Credentials
}

func New(baseURL string, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, log: log}
}

// WithCredentials returns a copy of c bound to one session.
func (c *Client) WithCredentials(creds Credentials) *Client {
	cp := *c
	cp.creds = creds
	return &cp
}

type requestOptions struct {
	headers   http.Header
	anonymous bool
}

type RequestOption func(*requestOptions)

// WithHeader sets a request header. It wins over the headers Do sets itself.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Set(key, value)
	}
}

// anonymous sends no bearer token and treats 401 as an ordinary response.
func anonymous() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}

// Do sends one request to the backend. A 401 invalidates the bound session
// and yields ErrSessionExpired instead of the response. Every other status is
// returned to the caller, who must close the body.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opts ...RequestOption) (*http.Response, error) {
	options := requestOptions{headers: http.Header{}}
	for _, opt := range opts {
		opt(&options)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s %s", method, path)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if !options.anonymous && c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, values := range options.headers {
		req.Header[key] = values
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(method, "error").Inc()
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	metrics.BackendRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized && !options.anonymous {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if c.creds != nil {
			if err := c.creds.Invalidate(ctx); err != nil {
				c.log.Error("api: invalidating session after 401", err)
			}
		}
		metrics.Invalidations.WithLabelValues("unauthorized").Inc()
		c.log.Info("api: backend rejected session", map[string]interface{}{"method": method, "path": path})
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// call runs Do and decodes the response into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, fallback string, opts ...RequestOption) error {
	resp, err := c.Do(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out, fallback)
}

func decodeResponse(resp *http.Response, out interface{}, fallback string) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw, fallback)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return decodeData(raw, out)
}

// decodeData accepts both {"data": ...} envelopes and bare payloads; the
// backend uses either depending on the endpoint.
func decodeData(raw []byte, out interface{}) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if data, ok := envelope["data"]; ok {
			if string(bytes.TrimSpace(data)) == "null" {
				return nil
			}
			return errors.Wrap(json.Unmarshal(data, out), "decoding data")
		}
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decoding response")
}
