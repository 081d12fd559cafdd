// Package apiclient talks to the sdoims HTTP API: it logs in, lists resources and
// follows realtime channels, feeding a listcache.Cache.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/client/listcache"
	"github.com/trezcool/sdoims/core/resource"
)

const defaultTimeout = 30 * time.Second

// Error is a non-2xx answer of the API.
// Fields holds the field messages of a validation failure; Message the error of any other failure.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (err *Error) Error() string {
	if len(err.Fields) > 0 {
		return fmt.Sprintf("%d: invalid input %v", err.Status, err.Fields)
	}
	return fmt.Sprintf("%d: %s", err.Status, err.Message)
}

// IsForbidden reports whether err is a 403 answer.
func IsForbidden(err error) bool {
	apiErr, ok := errors.Cause(err).(*Error)
	return ok && apiErr.Status == http.StatusForbidden
}

type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New returns a Client of the API served at baseURL, e.g. "https://sdo.example.ph".
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", base.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, http: httpClient}, nil
}

// SetToken authenticates the following requests with a token obtained elsewhere.
func (c *Client) SetToken(token string) { c.token = token }

// Login exchanges credentials for a token and keeps it for the following requests.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, body, &res); err != nil {
		return errors.Wrap(err, "logging in")
	}
	c.token = res.Token
	return nil
}

// Me returns the capabilities of the authenticated user.
func (c *Client) Me(ctx context.Context) (Actor, error) {
	var actor Actor
	err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, nil, &actor)
	return actor, errors.Wrap(err, "fetching current user")
}

// Actor is the authenticated user as the API describes it.
type Actor struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
}

// List fetches one page of the resource listed at path, e.g. "/v1/divisions".
func List[T resource.Record](ctx context.Context, c *Client, path string, q resource.Query) (resource.Page[T], error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.WithTrashed {
		params.Set("with_trashed", "true")
	}

	var page resource.Page[T]
	if err := c.do(ctx, http.MethodGet, path, params, nil, &page); err != nil {
		return resource.Page[T]{}, errors.Wrapf(err, "listing %s", path)
	}
	return page, nil
}

// Fetcher adapts List to the listcache.
func Fetcher[T resource.Record](c *Client, path string) listcache.Fetcher[T] {
	return func(ctx context.Context, q resource.Query) (resource.Page[T], error) {
		return List[T](ctx, c, path, q)
	}
}

func (c *Client) url(path string, params url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, params), body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decoding response")
}

// decodeError reads `{"error": "..."}` and validation field maps.
func decodeError(status int, data []byte) error {
	apiErr := &Error{Status: status}

	var msg struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &msg) == nil && msg.Error != "" {
		apiErr.Message = msg.Error
		return apiErr
	}
	var fields map[string]string
	if status == http.StatusBadRequest && json.Unmarshal(data, &fields) == nil && len(fields) > 0 {
		apiErr.Fields = fields
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
