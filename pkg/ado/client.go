// Package ado is a small client for the Azure DevOps REST API covering the
// read operations needed to mirror project metadata.
//
// Every list operation returns ([]T, error). A nil error with an empty slice
// means the upstream really has nothing; transport failures and non-2xx
// answers are reported as *APIError.
package ado

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Azure DevOps Services endpoint.
	DefaultBaseURL = "https://dev.azure.com"
	// DefaultAPIVersion is sent when Config.APIVersion is empty.
	DefaultAPIVersion = "7.0"

	continuationHeader = "X-Ms-Continuationtoken"
	maxErrorBody       = 512
	pageSize           = 200
)

var (
	// ErrUnauthorized wraps 401 and 403 answers.
	ErrUnauthorized = errors.New("ado: unauthorized")
	// ErrNotFound wraps 404 answers.
	ErrNotFound = errors.New("ado: not found")
)

// APIError describes a failed call to the upstream API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int    // zero when the request never got an answer
	Body       string // truncated response body
	Err        error  // transport error, if any
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ado: %s %s: %v", e.Method, e.URL, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("ado: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("ado: %s %s: status %d", e.Method, e.URL, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return e.Err
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	Organization string
	Token        string // personal access token
	APIVersion   string
	Timeout      time.Duration
	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one Azure DevOps organization. It is safe for concurrent
// use.
type Client struct {
	base       string
	auth       string
	apiVersion string
	http       *http.Client
	logger     *slog.Logger

	inflight sync.WaitGroup
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Organization) == "" {
		return nil, errors.New("ado: organization is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("ado: access token is required")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("ado: invalid base URL: %w", err)
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:       baseURL + "/" + url.PathEscape(cfg.Organization),
		auth:       "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+cfg.Token)),
		apiVersion: apiVersion,
		http:       hc,
		logger:     logger.With("component", "ado", "organization", cfg.Organization),
	}, nil
}

// Close waits for in-flight requests and releases idle connections. It
// gives up when ctx is done; the pool is released regardless.
func (c *Client) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("ado: close: %w", ctx.Err())
	}
	c.http.CloseIdleConnections()
	return err
}

// projectPath builds /{project}/_apis/... paths.
func projectPath(project string, parts ...string) string {
	return "/" + url.PathEscape(project) + "/_apis/" + strings.Join(parts, "/")
}

func (c *Client) endpoint(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if q.Get("api-version") == "" {
		q.Set("api-version", c.apiVersion)
	}
	return c.base + path + "?" + q.Encode()
}

// do sends a request and decodes a JSON answer into out. It returns the
// response headers so callers can follow continuation tokens.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (http.Header, error) {
	c.inflight.Add(1)
	defer c.inflight.Done()

	target := c.endpoint(path, query)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ado: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &APIError{Method: method, URL: target, Err: err}
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", target, "error", err)
		return nil, &APIError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("request rejected", "method", method, "url", target, "status", resp.StatusCode)
		return nil, &APIError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &APIError{Method: method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.Header, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, query, body, out)
	return err
}

// listResponse is the envelope most collection endpoints share.
type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// listAll follows continuation tokens until the collection is exhausted.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var all []T
	token := ""
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if token != "" {
			q.Set("continuationToken", token)
		}
		var page listResponse[T]
		header, err := c.get(ctx, path, q, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		token = header.Get(continuationHeader)
		if token == "" {
			break
		}
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

// listSkip pages with $top/$skip for endpoints that have no continuation
// token.
func listSkip[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	all := []T{}
	for skip := 0; ; skip += pageSize {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("$top", fmt.Sprint(pageSize))
		q.Set("$skip", fmt.Sprint(skip))
		var page listResponse[T]
		if _, err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		if len(page.Value) < pageSize {
			return all, nil
		}
	}
}
