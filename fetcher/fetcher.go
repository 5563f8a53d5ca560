// Package fetcher retrieves pages over HTTP with bounded retries. Blocked
// responses (HTTP 403) are retried with alternate browser identities; a
// fetch that fails past the retry budget reports an error the caller treats
// as "no data from this page", never as a fatal condition.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webshop-tools/go-product-feed/config"
)

const maxBodySize = 10 * 1024 * 1024 // 10 MB cap

// Fetcher issues GET requests with the configured identity and SSL policy.
type Fetcher struct {
	cfg      *config.Config
	client   *http.Client
	insecure *http.Client
	sleep    func(time.Duration)
}

// New builds a fetcher from cfg. Two clients are kept: a verifying one and
// one with TLS verification disabled for the configured domain denylist.
func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(false),
		},
		insecure: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(true),
		},
		sleep: time.Sleep,
	}
}

func newTransport(insecureSkipVerify bool) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecureSkipVerify},
	}
}

// SetTransport swaps the underlying transport on both clients. Used by
// tests to install a mock.
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.client.Transport = rt
	f.insecure.Transport = rt
}

// Fetch retrieves rawURL and returns the body text. Each failed attempt is
// retried up to the configured budget with a delay in between; 403 retries
// rotate through the alternate user-agent pool. The returned error is
// classified (see errors.go) so callers can label stats.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 0 && f.cfg.RetryDelay > 0 {
			f.sleep(f.cfg.RetryDelay)
		}

		body, err := f.attempt(ctx, rawURL, f.userAgent(attempt))
		if err == nil {
			return body, nil
		}
		lastErr = err
	}

	return "", lastErr
}

// userAgent picks the identity for an attempt: the configured default
// first, then the rotating retry pool.
func (f *Fetcher) userAgent(attempt int) string {
	if attempt == 0 || len(f.cfg.RetryUserAgents) == 0 {
		return f.cfg.UserAgent
	}
	return f.cfg.RetryUserAgents[(attempt-1)%len(f.cfg.RetryUserAgents)]
}

func (f *Fetcher) attempt(ctx context.Context, rawURL, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7,tr;q=0.6")
	if origin := pageOrigin(rawURL); origin != "" {
		req.Header.Set("Referer", origin)
	}

	resp, err := f.clientFor(rawURL).Do(req)
	if err != nil {
		return "", Classify(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", Classify(nil, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", Classify(fmt.Errorf("read body: %w", err), 0)
	}
	return string(body), nil
}

// clientFor returns the insecure client when the URL's host matches the
// SSL-disabled domain list, the verifying client otherwise.
func (f *Fetcher) clientFor(rawURL string) *http.Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return f.client
	}
	host := parsed.Hostname()
	if !f.cfg.VerifySSL {
		return f.insecure
	}
	for _, domain := range f.cfg.SSLDisabledDomains {
		if strings.Contains(host, domain) {
			return f.insecure
		}
	}
	return f.client
}

func pageOrigin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
