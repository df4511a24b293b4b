// Package transport provides the network primitives the data sources build
// on: a blocking fetch-by-URL and an asynchronous submit/completion client.
// Both treat file:// URLs as first-class so tests and local mirrors work
// without a network.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
)

// ErrNetwork is the single failure kind for all fetches, including missing
// or unreadable file:// targets, so callers need only one check.
var ErrNetwork = errors.New("network request failed")

// Fetcher is the blocking GET primitive consumed by the data sources.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client is the default Fetcher: HTTP with bounded retry on transient
// failures, plus transparent file:// support.
type Client struct {
	httpClient *http.Client
	log        *log.Logger
	maxTries   uint
}

// NewClient creates a blocking fetch client.
func NewClient(logger *log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger,
		maxTries:   3,
	}
}

// Get fetches a URL and returns the body bytes. HTTP 4xx responses fail
// immediately; network errors and 5xx responses are retried a few times
// before giving up. All failures wrap ErrNetwork.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %q: %v", ErrNetwork, rawURL, err)
	}
	if parsed.Scheme == "file" {
		return readLocalFile(parsed)
	}

	operation := func() ([]byte, error) {
		data, status, err := c.getOnce(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if status >= 400 && status < 500 {
			return nil, backoff.Permanent(fmt.Errorf("%w: GET %s returned status %d", ErrNetwork, rawURL, status))
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNetwork, rawURL, status)
		}
		return data, nil
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		if !errors.Is(err, ErrNetwork) {
			err = fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) getOnce(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, backoff.Permanent(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	req.Header.Set("User-Agent", "addonctl/1.0 (kestrelcad addon manager)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, resp.StatusCode, nil
}

func readLocalFile(parsed *url.URL) ([]byte, error) {
	path := parsed.Path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return data, nil
}
