// Package remote fetches prompt collection dumps over HTTP, typically from
// another prompt library's /export endpoint.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when the upstream has no collection at the URL.
var ErrNotFound = errors.New("remote: not found")

// MaxCollectionBytes caps the size of a fetched dump.
const MaxCollectionBytes = 16 << 20

// Client defines the contract for downloading a collection dump.
type Client interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient constructs an HTTP client. token, when set, is sent as a
// bearer token.
func NewHTTPClient(token string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		token: token,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}
}

// IsURL reports whether source names an http(s) location rather than a file.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads the collection dump at rawURL.
func (c *HTTPClient) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", endpoint.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCollectionBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read remote collection: %w", err)
		}
		if len(data) > MaxCollectionBytes {
			return nil, fmt.Errorf("remote: collection exceeds %d bytes", MaxCollectionBytes)
		}
		c.logger.Debug("remote: fetched collection", zap.String("host", endpoint.Host), zap.Int("bytes", len(data)))
		return data, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Warn("remote: unexpected status",
			zap.Int("status", resp.StatusCode),
			zap.String("host", endpoint.Host))
		return nil, fmt.Errorf("remote: upstream returned %d", resp.StatusCode)
	}
}
