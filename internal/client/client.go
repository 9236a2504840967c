// Package client speaks the forum backend's JSON-over-HTTP contract.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"forumlite/internal/forum"
)

// StatusError is returned for any non-2xx response. The body is not parsed.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP error %d", e.Code) }

type Client struct {
	base    string
	hc      *http.Client
	log     *slog.Logger
	timeout time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func WithLogger(log *slog.Logger) Option { return func(c *Client) { c.log = log } }

// WithTimeout bounds each request, response body included; zero disables the
// bound. It applies through the request context and never touches the
// underlying http.Client.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// New returns a client for the backend at baseURL. The default HTTP client
// keeps cookies so a backend session survives between calls.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Jar: jar},
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "req_id", reqID, "err", err)
		return err
	}
	defer resp.Body.Close()
	c.log.Debug("http", "method", method, "path", path, "status", resp.StatusCode,
		"req_id", reqID, "dur_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func withID(path, key string, id int64) string {
	q := url.Values{}
	q.Set(key, strconv.FormatInt(id, 10))
	return path + "?" + q.Encode()
}

func (c *Client) Login(ctx context.Context, username string) (forum.User, error) {
	var u forum.User
	err := c.do(ctx, http.MethodPost, "/login", forum.LoginRequest{Username: username}, &u)
	return u, err
}

func (c *Client) Topics(ctx context.Context) ([]forum.Topic, error) {
	var out []forum.Topic
	if err := c.do(ctx, http.MethodGet, "/topics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Posts(ctx context.Context, topicID int64) ([]forum.Post, error) {
	var out []forum.Post
	if err := c.do(ctx, http.MethodGet, withID("/posts", "topicId", topicID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, req forum.CreatePostRequest) (forum.Post, error) {
	var p forum.Post
	err := c.do(ctx, http.MethodPost, "/posts", req, &p)
	return p, err
}

func (c *Client) UpdatePost(ctx context.Context, req forum.UpdatePostRequest) (forum.Post, error) {
	var p forum.Post
	err := c.do(ctx, http.MethodPut, "/posts", req, &p)
	return p, err
}

func (c *Client) DeletePost(ctx context.Context, id, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/posts", forum.DeleteRequest{ID: id, UserID: userID}, nil)
}

func (c *Client) PinPost(ctx context.Context, req forum.PinRequest) (forum.Post, error) {
	var p forum.Post
	err := c.do(ctx, http.MethodPost, "/posts/pin", req, &p)
	return p, err
}

func (c *Client) Comments(ctx context.Context, postID int64) ([]forum.Comment, error) {
	var out []forum.Comment
	if err := c.do(ctx, http.MethodGet, withID("/comments", "postId", postID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, req forum.CreateCommentRequest) (forum.Comment, error) {
	var cm forum.Comment
	err := c.do(ctx, http.MethodPost, "/comments", req, &cm)
	return cm, err
}

func (c *Client) UpdateComment(ctx context.Context, req forum.UpdateCommentRequest) (forum.Comment, error) {
	var cm forum.Comment
	err := c.do(ctx, http.MethodPut, "/comments", req, &cm)
	return cm, err
}

func (c *Client) DeleteComment(ctx context.Context, id, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/comments", forum.DeleteRequest{ID: id, UserID: userID}, nil)
}

func (c *Client) PinComment(ctx context.Context, req forum.PinRequest) (forum.Comment, error) {
	var cm forum.Comment
	err := c.do(ctx, http.MethodPost, "/comments/pin", req, &cm)
	return cm, err
}
