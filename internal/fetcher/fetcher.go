// Package fetcher retrieves pages and provider lists over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/models"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	userAgent      = "embed-consent/2.0"
)

// Fetcher downloads documents with retries
type Fetcher struct {
	client *retryablehttp.Client
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig, log *zap.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = defaultRetries
	}

	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 1 * time.Second
	c.RetryWaitMax = 30 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = leveledLogger{logging.OrNop(log).Named("fetcher").Sugar()}

	return &Fetcher{client: c}
}

// IsURL reports whether s is an http(s) URL rather than a local path
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads content from a URL, retrying transient failures
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// leveledLogger routes retryablehttp logs to zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
