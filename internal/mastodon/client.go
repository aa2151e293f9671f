// Package mastodon talks to one Mastodon-compatible instance: the REST
// endpoints used for paging and actions, and the streaming websocket.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/fedtimeline/internal/model"
	"github.com/d60-Lab/fedtimeline/pkg/logger"
)

var ErrUnknownTimeline = errors.New("unknown timeline")

// APIError is a non-2xx answer from the instance.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon api: status %d: %s", e.Status, e.Message)
}

type Options struct {
	Instance    string
	AccessToken string
	PageSize    int
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	HTTPClient  *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.Instance, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse instance url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("instance url %q needs a scheme and host", opts.Instance)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 20
	}
	return &Client{
		base:     base,
		token:    opts.AccessToken,
		pageSize: size,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

// Instance is the base url of the instance.
func (c *Client) Instance() string { return c.base.String() }

// timelinePath maps a timeline name to its endpoint and fixed query.
func timelinePath(name string) (string, url.Values, error) {
	switch name {
	case "home":
		return "/api/v1/timelines/home", url.Values{}, nil
	case "public":
		return "/api/v1/timelines/public", url.Values{"local": {"true"}}, nil
	case "federated":
		return "/api/v1/timelines/public", url.Values{}, nil
	}
	return "", nil, fmt.Errorf("%w: %q", ErrUnknownTimeline, name)
}

// Timeline returns the page of name older than maxID, or the newest page
// when maxID is empty.
func (c *Client) Timeline(ctx context.Context, name, maxID string) ([]*model.Post, error) {
	path, q, err := timelinePath(name)
	if err != nil {
		return nil, err
	}
	c.page(q, maxID)
	return c.posts(ctx, http.MethodGet, path, q)
}

// AccountStatuses pages the posts of one author.
func (c *Client) AccountStatuses(ctx context.Context, accountID, maxID string) ([]*model.Post, error) {
	q := url.Values{}
	c.page(q, maxID)
	return c.posts(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(accountID)+"/statuses", q)
}

type statusContext struct {
	Ancestors   []*model.Post `json:"ancestors"`
	Descendants []*model.Post `json:"descendants"`
}

// Thread returns ancestors, the post and its descendants in conversation order.
func (c *Client) Thread(ctx context.Context, postID string) ([]*model.Post, error) {
	escaped := url.PathEscape(postID)
	body, err := c.do(ctx, http.MethodGet, "/api/v1/statuses/"+escaped, nil)
	if err != nil {
		return nil, err
	}
	focus, err := model.DecodePost(body)
	if err != nil {
		return nil, err
	}
	body, err = c.do(ctx, http.MethodGet, "/api/v1/statuses/"+escaped+"/context", nil)
	if err != nil {
		return nil, err
	}
	var sc statusContext
	if err := decodeContext(body, &sc); err != nil {
		return nil, err
	}
	out := make([]*model.Post, 0, len(sc.Ancestors)+1+len(sc.Descendants))
	out = append(out, sc.Ancestors...)
	out = append(out, focus)
	out = append(out, sc.Descendants...)
	return out, nil
}

func (c *Client) Favourite(ctx context.Context, postID string) (*model.Post, error) {
	return c.action(ctx, postID, "favourite")
}

func (c *Client) Unfavourite(ctx context.Context, postID string) (*model.Post, error) {
	return c.action(ctx, postID, "unfavourite")
}

func (c *Client) Reblog(ctx context.Context, postID string) (*model.Post, error) {
	return c.action(ctx, postID, "reblog")
}

func (c *Client) Unreblog(ctx context.Context, postID string) (*model.Post, error) {
	return c.action(ctx, postID, "unreblog")
}

func (c *Client) action(ctx context.Context, postID, verb string) (*model.Post, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/statuses/"+url.PathEscape(postID)+"/"+verb, nil)
	if err != nil {
		return nil, err
	}
	return model.DecodePost(body)
}

func (c *Client) page(q url.Values, maxID string) {
	q.Set("limit", strconv.Itoa(c.pageSize))
	if maxID != "" {
		q.Set("max_id", maxID)
	}
}

func (c *Client) posts(ctx context.Context, method, path string, q url.Values) ([]*model.Post, error) {
	body, err := c.do(ctx, method, path, q)
	if err != nil {
		return nil, err
	}
	return model.DecodePosts(body)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.Debug("mastodon request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}
