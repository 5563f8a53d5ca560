package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds crawler configuration.
type Config struct {
	StartURL           string
	MaxPages           int
	MaxDepth           int // category tree only
	MaxCategoryURLs    int // hard cap for the category explorer
	VerifySSL          bool
	SSLDisabledDomains []string
	Timeout            time.Duration
	RequestDelay       time.Duration // between crawled pages
	SitemapDelay       time.Duration // between category tree fetches
	MaxRetries         int
	RetryDelay         time.Duration
	UserAgent          string
	RetryUserAgents    []string // alternate identities for blocked requests
	DefaultCategoryID  int
	OutputFile         string
	OutputFormat       string // json, csv, or dual
	OverridesFile      string // per-domain selector overrides, optional
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns the defaults used when no flags are given.
func DefaultConfig() *Config {
	return &Config{
		MaxPages:        10,
		MaxDepth:        2,
		MaxCategoryURLs: 50,
		VerifySSL:       true,
		SSLDisabledDomains: []string{
			"henex.cn",
			"localhost",
			"127.0.0.1",
		},
		Timeout:      10 * time.Second,
		RequestDelay: time.Second,
		SitemapDelay: 500 * time.Millisecond,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		RetryUserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.45 Safari/537.36",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Mobile/15E148 Safari/604.1",
		},
		DefaultCategoryID: 9,
		OutputFile:        "output/products.json",
		OutputFormat:      "json",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative")
	}
	if c.MaxCategoryURLs <= 0 {
		return fmt.Errorf("max category URLs must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.SitemapDelay < 0 {
		return fmt.Errorf("sitemap delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "json" && c.OutputFormat != "csv" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be json, csv, or dual")
	}

	return nil
}

// EnvString reads a string environment variable, reporting presence.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable, reporting presence and
// parse failures separately.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvBool reads a boolean environment variable, reporting presence and
// parse failures separately.
func EnvBool(key string) (bool, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, true, nil
}
