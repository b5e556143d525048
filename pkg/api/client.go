// Package api is the client for the remote navigation REST service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"navportal/pkg/cache"
	"navportal/pkg/session"
	"navportal/pkg/settings"
)

const maxBodyBytes = 10 << 20

type Client struct {
	mu      sync.RWMutex
	baseURL string

	httpClient     *http.Client
	sessions       *session.Store
	cache          *cache.Manager
	invalidator    Invalidator
	onUnauthorized func(redirect string)
	userAgent      string
}

// Invalidator drops cache entries so that background refreshes already in
// flight cannot write the old data back.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
	ClearAll(ctx context.Context)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCache(m *cache.Manager) Option {
	return func(c *Client) { c.cache = m }
}

// WithInvalidator routes cache invalidation through inv instead of clearing
// the cache directly.
func WithInvalidator(inv Invalidator) Option {
	return func(c *Client) { c.invalidator = inv }
}

// WithUnauthorizedHook is called with the login path after a 401 purged
// the local session.
func WithUnauthorizedHook(fn func(redirect string)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(baseURL string, sessions *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    settings.Normalize(baseURL),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		sessions:   sessions,
		userAgent:  "navportal",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = settings.Normalize(u)
	c.mu.Unlock()
	log.Printf("[API] Base URL set to %s", u)
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	form   url.Values
	header map[string]string

	// anonymous requests carry no Authorization header.
	anonymous bool
	// exempt requests leave the local session alone on 401.
	exempt bool
}

func (r request) op() string {
	return r.method + " " + r.path
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	target := c.BaseURL() + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", req.op(), err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", req.op(), err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}
	if !req.anonymous && c.sessions != nil {
		if h := c.sessions.AuthHeader(ctx); h != "" {
			httpReq.Header.Set("Authorization", h)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: req.op(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: req.op(), Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.exempt {
		c.handleUnauthorized(ctx)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method: req.method,
			Path:   req.path,
			Status: resp.StatusCode,
			Detail: parseDetail(resp.StatusCode, raw),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || !strings.HasSuffix(mt, "json") {
		log.Printf("[API] %s: non-JSON response (%s): %.200s", req.op(), ct, raw)
		return &FormatError{Op: req.op(), ContentType: ct}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &FormatError{Op: req.op(), ContentType: ct, Err: err}
	}
	return nil
}

// handleUnauthorized purges the local session and cache and fires the
// redirect hook, once per session however many calls fail together.
func (c *Client) handleUnauthorized(ctx context.Context) {
	if c.sessions == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	purged, err := c.sessions.Purge(ctx)
	if err != nil {
		log.Printf("[API] purge session after 401: %v", err)
		return
	}
	if !purged {
		return
	}
	log.Println("[API] Received 401, local session cleared")
	c.clearCache(ctx)
	if c.onUnauthorized != nil {
		c.onUnauthorized("/login")
	}
}

func (c *Client) invalidate(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	switch {
	case c.invalidator != nil:
		c.invalidator.Invalidate(ctx, keys...)
	case c.cache != nil:
		c.cache.Clear(ctx, keys...)
	}
}

func (c *Client) invalidateWebsites(ctx context.Context) {
	c.invalidate(ctx, cache.WebsiteKeys...)
}

func (c *Client) clearCache(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	switch {
	case c.invalidator != nil:
		c.invalidator.ClearAll(ctx)
	case c.cache != nil:
		c.cache.ClearAll(ctx)
	}
}

func idPath(prefix string, id int) string {
	return fmt.Sprintf("%s/%d", prefix, id)
}
