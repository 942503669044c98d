// Package apiclient talks to the wiki's JSON API: the image listing, page
// listing, page fetch and page update endpoints used by the link resolver.
package apiclient

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
	"strconv"
	"strings"
	"time"

	"github.com/roach88/wikisync/internal/wiki"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps 404 and 409 to the store's sentinel errors so callers can use
// errors.Is the same way against the API and the database.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return wiki.ErrNotFound
	case http.StatusConflict:
		return wiki.ErrConflict
	}
	return nil
}

// IsTransient reports whether err is worth retrying: a 5xx or 429 response,
// or a network failure. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// IsNotFound reports whether err is a 404 or a store not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, wiki.ErrNotFound)
}

// Client is an authenticated JSON API client.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API rooted at baseURL. An empty apiKey sends
// no Authorization header.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}
	c := &Client{
		base:   u,
		apiKey: apiKey,
		http:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health checks that the API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ListImages returns metadata for every image.
func (c *Client) ListImages(ctx context.Context) ([]wiki.Image, error) {
	var images []wiki.Image
	if err := c.do(ctx, http.MethodGet, "/api/images", nil, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// ListPages returns every page without content.
func (c *Client) ListPages(ctx context.Context) ([]wiki.PageSummary, error) {
	var pages []wiki.PageSummary
	if err := c.do(ctx, http.MethodGet, "/api/pages", nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

// FetchPage returns a page with its content.
func (c *Client) FetchPage(ctx context.Context, id int64) (wiki.Page, error) {
	var p wiki.Page
	if err := c.do(ctx, http.MethodGet, pagePath(id), nil, &p); err != nil {
		return wiki.Page{}, err
	}
	return p, nil
}

// UpdateRequest is the body of a page update.
type UpdateRequest struct {
	Content       string `json:"content"`
	EditedBy      string `json:"edited_by,omitempty"`
	ChangeSummary string `json:"change_summary,omitempty"`
}

// UpdateResponse is returned by a page update.
type UpdateResponse struct {
	Page    wiki.Page        `json:"page"`
	Version wiki.PageVersion `json:"version"`
}

// UpdatePage replaces a page's content. The server records a new version.
func (c *Client) UpdatePage(ctx context.Context, id int64, content, editedBy, summary string) error {
	req := UpdateRequest{Content: content, EditedBy: editedBy, ChangeSummary: summary}
	return c.do(ctx, http.MethodPut, pagePath(id), req, nil)
}

func pagePath(id int64) string {
	return "/api/pages/" + strconv.FormatInt(id, 10)
}

// do sends a JSON request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	target := c.base.JoinPath(path).String()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, target, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, target, err)
	}
	return nil
}
