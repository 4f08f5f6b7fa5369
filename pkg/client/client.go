package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Content Service address used in local development.
	DefaultBaseURL = "http://127.0.0.1:8000"

	MediaTypeJSON = "application/json"
)

// Config holds the base URL and credentials shared by every request.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token   string
	Headers map[string]string
	// HTTPClient defaults to a client without a timeout; the transport's own
	// limits apply.
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Request is a declarative description of one REST operation.
type Request struct {
	Method string
	// URL is a template such as /game/{uuid}/update. Placeholders are filled
	// from Path.
	URL   string
	Path  map[string]string
	Query map[string]any
	// Body is JSON-encoded when MediaType is JSON (the default when Body is set).
	Body      any
	MediaType string
}

// Client executes requests against the Content Service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	Games    *GameService
	Agents   *AgentService
	Sessions *SessionService
	LLM      *LLMService
	Util     *UtilService
	Auth     *AuthService
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{cfg: cfg, http: hc, logger: logger}
	c.Games = &GameService{c: c}
	c.Agents = &AgentService{c: c}
	c.Sessions = &SessionService{c: c}
	c.LLM = &LLMService{c: c}
	c.Util = &UtilService{c: c}
	c.Auth = &AuthService{c: c}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Do executes req and decodes a successful response body into out (which may
// be nil). See ErrCanceled, ValidationError and APIError for failures.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	u, err := c.buildURL(req)
	if err != nil {
		return err
	}

	var body io.Reader
	if req.Body != nil {
		mediaType := req.MediaType
		if mediaType == "" {
			mediaType = MediaTypeJSON
		}
		if mediaType != MediaTypeJSON {
			return fmt.Errorf("unsupported media type %q", mediaType)
		}
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(req.Body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = buf
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", MediaTypeJSON)
	if body != nil {
		httpReq.Header.Set("Content-Type", MediaTypeJSON)
	}
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.cfg.Metrics.observe(req.Method, req.URL, "canceled", time.Since(start))
			c.logger.Debug("Content service request canceled", "method", req.Method, "url", u)
			return ErrCanceled
		}
		c.cfg.Metrics.observe(req.Method, req.URL, "error", time.Since(start))
		return fmt.Errorf("%s %s: %w", req.Method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			c.cfg.Metrics.observe(req.Method, req.URL, "canceled", time.Since(start))
			return ErrCanceled
		}
		return fmt.Errorf("read response: %w", err)
	}
	c.cfg.Metrics.observe(req.Method, req.URL, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.logger.Debug("Content service request", "method", req.Method, "url", u, "status", resp.StatusCode, "duration", time.Since(start))

	// The response may have arrived just as the caller gave up.
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrCanceled
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		verr := &ValidationError{Method: req.Method, URL: u}
		var problem struct {
			Detail []ValidationIssue `json:"detail"`
		}
		if err := json.Unmarshal(payload, &problem); err != nil || len(problem.Detail) == 0 {
			verr.Body = payload
		} else {
			verr.Detail = problem.Detail
		}
		return verr
	default:
		return &APIError{Method: req.Method, URL: u, Status: resp.StatusCode, Body: payload}
	}
}

func (c *Client) buildURL(req Request) (string, error) {
	path := req.URL
	for k, v := range req.Path {
		placeholder := "{" + k + "}"
		if !strings.Contains(path, placeholder) {
			return "", fmt.Errorf("path parameter %q not in %s", k, req.URL)
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(v))
	}
	if i := strings.Index(path, "{"); i >= 0 {
		return "", fmt.Errorf("unfilled path parameter in %s", path)
	}

	q := encodeQuery(req.Query)
	if q != "" {
		return c.cfg.BaseURL + path + "?" + q, nil
	}
	return c.cfg.BaseURL + path, nil
}

// encodeQuery serializes params in key order. Nil values are omitted, as are
// nil pointers. Slices repeat the key.
func encodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	add := func(k, v string) {
		parts = append(parts, escape(k)+"="+escape(v))
	}
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
		case *string:
			if v != nil {
				add(k, *v)
			}
		case *bool:
			if v != nil {
				add(k, strconv.FormatBool(*v))
			}
		case string:
			add(k, v)
		case bool:
			add(k, strconv.FormatBool(v))
		case int:
			add(k, strconv.Itoa(v))
		case []string:
			for _, s := range v {
				add(k, s)
			}
		default:
			add(k, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, "&")
}

// escape percent-encodes like encodeURIComponent (spaces become %20).
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// optional drops empty strings from a query.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
