// Package remote is a thin client for the remote content API. Every method
// issues exactly one request; retries are the caller's business.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
	"golang.org/x/time/rate"

	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

// ContentKind selects what the unified content endpoint returns.
type ContentKind string

const (
	KindNovel    ContentKind = "小说"
	KindAudio    ContentKind = "听书"
	KindDrama    ContentKind = "短剧"
	KindComic    ContentKind = "漫画"
	KindBatch    ContentKind = "批量"
	KindDownload ContentKind = "下载"
)

// SearchOptions holds the optional search parameters. Nil fields are not sent.
type SearchOptions struct {
	Category *int
	Offset   *int
}

// ContentOptions holds the optional content parameters. Nil fields are not sent.
type ContentOptions struct {
	ItemID   *string
	ItemIDs  *string
	BookID   *string
	ShowHTML *int
	ToneID   *string
	Async    *int
}

// CommentOptions holds the optional comment paging parameters. Nil fields are not sent.
type CommentOptions struct {
	Count  *int
	Offset *int
}

// Client talks to the remote content API rooted at a configured URL.
type Client struct {
	http    *req.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit paces outgoing requests to at most perSecond requests per second.
// A non-positive value disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the API rooted at rootURL.
func NewClient(rootURL string, opts ...Option) *Client {
	c := &Client{
		http: req.C().
			SetBaseURL(rootURL).
			SetCommonHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search looks up works by keyword.
func (c *Client) Search(ctx context.Context, key string, opts SearchOptions) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("key", key)
	setInt(params, "tab_type", opts.Category)
	setInt(params, "offset", opts.Offset)
	return c.getRaw(ctx, "/api/search", params)
}

// Detail returns the metadata of a work.
func (c *Client) Detail(ctx context.Context, workID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/detail", url.Values{"book_id": {workID}})
}

// Book returns the full catalog of a work.
func (c *Client) Book(ctx context.Context, workID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/book", url.Values{"book_id": {workID}})
}

// Directory returns the condensed catalog of a work.
func (c *Client) Directory(ctx context.Context, workID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/directory", url.Values{"book_id": {workID}})
}

// Content fetches content of the given kind through the unified endpoint.
func (c *Client) Content(ctx context.Context, kind ContentKind, opts ContentOptions) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("tab", string(kind))
	setString(params, "item_id", opts.ItemID)
	setString(params, "item_ids", opts.ItemIDs)
	setString(params, "book_id", opts.BookID)
	setInt(params, "show_html", opts.ShowHTML)
	setString(params, "tone_id", opts.ToneID)
	setInt(params, "async", opts.Async)
	return c.getRaw(ctx, "/api/content", params)
}

// Chapter fetches a single item through the simple chapter endpoint.
func (c *Client) Chapter(ctx context.Context, itemID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/chapter", url.Values{"item_id": {itemID}})
}

// RawFull fetches the unprocessed content of an item.
func (c *Client) RawFull(ctx context.Context, itemID string) (json.RawMessage, error) {
	return c.getRaw(ctx, "/api/raw_full", url.Values{"item_id": {itemID}})
}

// Comments returns a page of comments for a work.
func (c *Client) Comments(ctx context.Context, workID string, opts CommentOptions) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("book_id", workID)
	setInt(params, "count", opts.Count)
	setInt(params, "offset", opts.Offset)
	return c.getRaw(ctx, "/api/comment", params)
}

func (c *Client) getRaw(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	var body json.RawMessage
	if err := c.get(ctx, path, params, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &errpkg.TransportError{Op: "GET", URL: path, Err: err}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(path)
	if err != nil {
		c.logger.Debug("remote request failed", "path", path, "error", err)
		return &errpkg.TransportError{Op: "GET", URL: path, Err: err}
	}

	if !resp.IsSuccessState() {
		c.logger.Debug("remote request rejected", "path", path, "status", resp.StatusCode)
		return &errpkg.TransportError{Op: "GET", URL: path, StatusCode: resp.StatusCode}
	}

	data, err := resp.ToBytes()
	if err != nil {
		return &errpkg.TransportError{Op: "GET", URL: path, StatusCode: resp.StatusCode, Err: err}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return &errpkg.TransportError{
			Op:         "GET",
			URL:        path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}

	return nil
}

func setString(params url.Values, key string, v *string) {
	if v != nil {
		params.Set(key, *v)
	}
}

func setInt(params url.Values, key string, v *int) {
	if v != nil {
		params.Set(key, strconv.Itoa(*v))
	}
}
