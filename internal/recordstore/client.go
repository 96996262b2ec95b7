// Package recordstore is an HTTP client for a PocketBase-style record store
// holding the mangas and chapters collections.
package recordstore

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

	"github.com/rs/zerolog"
)

const (
	MangaCollection   = "mangas"
	ChapterCollection = "chapters"

	// DefaultPerPage mirrors the largest page size the backend accepts.
	DefaultPerPage = 999
)

type Client struct {
	endpoint string
	http     *http.Client
	token    string
	perPage  int
	log      zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithPerPage(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
		perPage:  DefaultPerPage,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// SetToken sets the token sent in the Authorization header. Call it before
// the client is shared between goroutines.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) recordsURL(collection string, query url.Values) string {
	u := c.endpoint + "/api/collections/" + collection + "/records"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) recordURL(collection, id string) string {
	return c.endpoint + "/api/collections/" + collection + "/records/" + url.PathEscape(id)
}

func (c *Client) doJSON(ctx context.Context, op, method, rawURL string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &RequestError{Op: op, Kind: KindTransport, Err: fmt.Errorf("encode body: %w", err)}
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, rawURL, body, contentType, out)
}

func (c *Client) do(ctx context.Context, op, method, rawURL string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return &RequestError{Op: op, Kind: KindTransport, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	c.log.Debug().Str("op", op).Str("method", method).Str("url", rawURL).Msg("[recordstore] request")

	resp, err := c.http.Do(req)
	if err != nil {
		var ae *attachError
		if errors.As(err, &ae) {
			return &RequestError{Op: op, Kind: KindAttach, Err: ae}
		}
		return &RequestError{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := &RequestError{Op: op, Kind: KindStatus, StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode == http.StatusBadRequest {
			var detail APIError
			if json.Unmarshal(raw, &detail) == nil {
				re.Detail = &detail
			}
		}
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			re.Err = errors.New(msg)
		}
		c.log.Debug().Str("op", op).Int("status", resp.StatusCode).RawJSON("body", jsonOrNull(raw)).Msg("[recordstore] error response")
		return re
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func jsonOrNull(b []byte) []byte {
	if json.Valid(b) {
		return b
	}
	return []byte("null")
}

// filterEq builds a `(field='value')` filter expression.
func filterEq(field, value string) string {
	value = strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "(" + field + "='" + value + "')"
}
