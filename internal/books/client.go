package books

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
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBackendUnavailable is returned once a network-class failure has
// marked the backend unreachable. The client stays degraded for the
// remainder of the run; posting resumes on the next process start.
var ErrBackendUnavailable = errors.New("accounting backend unavailable")

// Config carries credentials and account mappings for the accounting
// backend.
type Config struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	OrganizationID string
	Region         string

	// Optional account mappings applied to newly created items.
	InventoryAccountID string
	COGSAccountID      string
	SalesAccountID     string

	// BaseURL and AuthURL override the region-derived endpoints,
	// used by tests.
	BaseURL string
	AuthURL string
}

var regionBaseURLs = map[string]string{
	"com": "https://www.booksapis.com/inventory/v1",
	"eu":  "https://www.booksapis.eu/inventory/v1",
	"in":  "https://www.booksapis.in/inventory/v1",
	"au":  "https://www.booksapis.com.au/inventory/v1",
	"jp":  "https://www.booksapis.jp/inventory/v1",
}

// Client talks to the accounting backend over HTTP. It refreshes its
// OAuth access token on demand, replays a request once after a 401,
// and degrades to unavailable for the rest of the session after a
// network-class failure. Entity lookups are cached; the caches assume
// a single posting worker plus occasional CLI reads, guarded by one
// mutex.
type Client struct {
	cfg     Config
	http    *http.Client
	baseURL string
	authURL string
	log     *logrus.Logger

	mu          sync.Mutex
	accessToken string
	unavailable bool
	vendors     map[string]string
	customers   map[string]string
	items       map[string]string
}

// NewClient builds a backend client. The HTTP timeout matches the
// backend's documented 30s request ceiling.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	region := cfg.Region
	if region == "" {
		region = "com"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = regionBaseURLs[region]
		if baseURL == "" {
			baseURL = regionBaseURLs["com"]
		}
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = fmt.Sprintf("https://accounts.books.%s/oauth/v2/token", region)
	}
	return &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: 30 * time.Second},
		baseURL:   baseURL,
		authURL:   authURL,
		log:       log,
		vendors:   make(map[string]string),
		customers: make(map[string]string),
		items:     make(map[string]string),
	}
}

// Available reports whether the backend is still reachable this
// session.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unavailable
}

func (c *Client) markUnavailable(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unavailable {
		c.unavailable = true
		if c.log != nil {
			c.log.WithError(err).Warn("accounting backend marked unavailable for this session")
		}
	}
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// refreshAccessToken exchanges the refresh token for a new access
// token.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	form := url.Values{
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.markUnavailable(err)
		return fmt.Errorf("refresh access token: %w", ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("refresh access token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("refresh access token: empty access_token in response")
	}

	c.mu.Lock()
	c.accessToken = tok.AccessToken
	c.mu.Unlock()
	return nil
}

// request performs one API call, refreshing the token and replaying
// once on 401. The organization id is always appended as a query
// parameter.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if !c.Available() {
		return ErrBackendUnavailable
	}
	if c.token() == "" {
		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}
	}
	return c.do(ctx, method, path, query, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, retryAuth bool) error {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("build request url: %w", err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("organization_id", c.cfg.OrganizationID)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.markUnavailable(err)
		return fmt.Errorf("%s %s: %w", method, path, ErrBackendUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && retryAuth {
		if c.log != nil {
			c.log.Debug("access token expired, refreshing")
		}
		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, path, query, body, out, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}
