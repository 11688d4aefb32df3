// Package api is an HTTP client for the EcoBuddy dashboard server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jgoulah/ecobuddy/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const defaultTimeout = 30 * time.Second

// Client talks to the dashboard server's JSON API using a session cookie
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	transport http.RoundTripper
	metrics   *Metrics
	log       logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for request tracing
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMetrics records request counts and latencies
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for the dashboard at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server URL must be absolute: %s", baseURL)
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:   u,
		http:      &http.Client{Jar: jar, Timeout: defaultTimeout},
		transport: http.DefaultTransport,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.Transport = c.transport
	if c.metrics != nil {
		c.http.Transport = c.metrics.InstrumentRoundTripper(c.transport)
	}

	return c, nil
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

// SetCookies loads saved session cookies into the client
func (c *Client) SetCookies(cookies []config.Cookie) {
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		hc := &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			HttpOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
		}
		if cookie.Expires > 0 {
			hc.Expires = time.Unix(int64(cookie.Expires), 0)
		}
		httpCookies = append(httpCookies, hc)
	}
	c.http.Jar.SetCookies(c.baseURL, httpCookies)
}

// Cookies returns the session cookies the server has set, for saving
func (c *Client) Cookies() []config.Cookie {
	httpCookies := c.http.Jar.Cookies(c.baseURL)
	result := make([]config.Cookie, 0, len(httpCookies))
	for _, hc := range httpCookies {
		result = append(result, config.Cookie{
			Name:   hc.Name,
			Value:  hc.Value,
			Domain: c.baseURL.Hostname(),
			Path:   "/",
		})
	}
	return result
}

// endpoint joins path segments onto the base URL
func (c *Client) endpoint(elem ...string) string {
	return c.baseURL.JoinPath(elem...).String()
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx body into out (if non-nil)
func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newServerError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "decoding response", Err: err}
	}
	return nil
}

// send tags the request with an ID, performs it and traces the outcome
func (c *Client) send(req *http.Request) (*http.Response, error) {
	return c.sendWith(c.http, req)
}

func (c *Client) sendWith(hc *http.Client, req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := hc.Do(req)

	entry := c.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"path":       req.URL.Path,
		"duration":   time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Debug("request failed")
		return nil, &TransportError{Op: fmt.Sprintf("%s %s", req.Method, req.URL.Path), Err: err}
	}
	entry.WithField("status", resp.StatusCode).Debug("request completed")

	return resp, nil
}
