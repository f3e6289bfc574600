// Package scraper fetches search result pages through the scraping proxy.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 4 << 20

// StatusError is returned for non-2xx responses. The caller treats it as a per-query failure.
type StatusError struct {
	StatusCode int
	Query      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scraper responded with status %d for query %q", e.StatusCode, e.Query)
}

type Options struct {
	APIKey          string
	Endpoint        string
	NitterBaseURL   string
	PublicSearchURL string
	Timeout         time.Duration
}

// Client builds Nitter search URLs and fetches them, via ScraperAPI when a key is set.
type Client struct {
	apiKey          string
	endpoint        string
	nitterBaseURL   string
	publicSearchURL string
	client          *http.Client
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		endpoint:        strings.TrimSpace(opts.Endpoint),
		nitterBaseURL:   strings.TrimRight(strings.TrimSpace(opts.NitterBaseURL), "/"),
		publicSearchURL: strings.TrimSpace(opts.PublicSearchURL),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// TargetURL is the Nitter search page for query.
func (c *Client) TargetURL(query string) string {
	values := url.Values{}
	values.Set("f", "tweets")
	values.Set("q", query)
	return c.nitterBaseURL + "/search?" + values.Encode()
}

// SearchURL is the public search link stored as a post's source reference.
func (c *Client) SearchURL(query string) string {
	values := url.Values{}
	values.Set("q", query)
	base := c.publicSearchURL
	if strings.Contains(base, "?") {
		return base + "&" + values.Encode()
	}
	return base + "?" + values.Encode()
}

func (c *Client) requestURL(query string) (string, error) {
	target := c.TargetURL(query)
	if c.apiKey == "" {
		return target, nil
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse scraper endpoint: %w", err)
	}
	values := endpoint.Query()
	values.Set("api_key", c.apiKey)
	values.Set("url", target)
	endpoint.RawQuery = values.Encode()
	return endpoint.String(), nil
}

// Fetch makes exactly one attempt for query and returns the raw document.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("scraper client is not initialized")
	}

	requestURL, err := c.requestURL(query)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("build scraper request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send scraper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &StatusError{StatusCode: resp.StatusCode, Query: query}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read scraper response: %w", err)
	}
	return string(body), nil
}
