package fetcher

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/webshop-tools/go-product-feed/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.StartURL = "http://example.test/"
	cfg.RetryDelay = 0
	return cfg
}

func TestFetchReturnsBody(t *testing.T) {
	cfg := testConfig()
	f := New(cfg)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/page",
		httpmock.NewStringResponder(200, "<html><body>ok</body></html>"))
	f.SetTransport(transport)

	body, err := f.Fetch(context.Background(), "http://example.test/page")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html><body>ok</body></html>" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFetchRetriesForbiddenWithAlternateAgents(t *testing.T) {
	cfg := testConfig()
	f := New(cfg)

	var calls int32
	var agents []string
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/blocked",
		func(req *http.Request) (*http.Response, error) {
			agents = append(agents, req.Header.Get("User-Agent"))
			if atomic.AddInt32(&calls, 1) <= 2 {
				return httpmock.NewStringResponse(403, "blocked"), nil
			}
			return httpmock.NewStringResponse(200, "unblocked"), nil
		})
	f.SetTransport(transport)

	body, err := f.Fetch(context.Background(), "http://example.test/blocked")
	if err != nil {
		t.Fatalf("fetch should succeed within retry budget: %v", err)
	}
	if body != "unblocked" {
		t.Fatalf("body = %q, want the third attempt's body", body)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if agents[0] != cfg.UserAgent {
		t.Fatalf("first attempt should use the default identity")
	}
	if agents[1] == cfg.UserAgent || agents[2] == cfg.UserAgent {
		t.Fatalf("retries should rotate to alternate identities: %v", agents[1:])
	}
	if agents[1] == agents[2] {
		t.Fatalf("retries should rotate, got %q twice", agents[1])
	}
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	f := New(cfg)

	var calls int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/denied",
		func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			return httpmock.NewStringResponse(403, "no"), nil
		})
	f.SetTransport(transport)

	_, err := f.Fetch(context.Background(), "http://example.test/denied")
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	var fetchErr *Error
	if !errors.As(err, &fetchErr) || fetchErr.Category != CategoryForbidden {
		t.Fatalf("error should classify as forbidden, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Fatalf("calls = %d, want initial attempt + 3 retries", got)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	f := New(cfg)

	var calls int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/flaky",
		func(req *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
			}
			return httpmock.NewStringResponse(200, "recovered"), nil
		})
	f.SetTransport(transport)

	body, err := f.Fetch(context.Background(), "http://example.test/flaky")
	if err != nil {
		t.Fatalf("fetch should recover: %v", err)
	}
	if body != "recovered" {
		t.Fatalf("body = %q", body)
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	cfg := testConfig()
	f := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, "http://example.test/page"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestFetchRetryDelayIsHonored(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = 2 * time.Second
	f := New(cfg)

	var slept []time.Duration
	f.sleep = func(d time.Duration) { slept = append(slept, d) }

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/slow",
		httpmock.NewStringResponder(500, "boom"))
	f.SetTransport(transport)

	if _, err := f.Fetch(context.Background(), "http://example.test/slow"); err == nil {
		t.Fatalf("expected failure")
	}
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want one per retry", len(slept))
	}
	for _, d := range slept {
		if d != cfg.RetryDelay {
			t.Fatalf("sleep = %v, want %v", d, cfg.RetryDelay)
		}
	}
}

func TestClassifyLabels(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(Classify(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("Classify(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}
