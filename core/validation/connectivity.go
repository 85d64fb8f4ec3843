package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ConnectivityResult is the outcome of a reachability probe.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker probes whether the node API answers HTTP at all.
// Any response, including 4xx and 5xx, counts as reachable.
type ConnectivityChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewConnectivityChecker uses client for requests; nil means
// http.DefaultClient. A timeout of zero means 10 seconds.
func NewConnectivityChecker(client *http.Client, timeout time.Duration) *ConnectivityChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ConnectivityChecker{client: client, timeout: timeout}
}

// Check sends a HEAD request to target.
func (c *ConnectivityChecker) Check(ctx context.Context, target string) ConnectivityResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return ConnectivityResult{Message: "invalid request", Error: err}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := "connection failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("no response within %s", c.timeout)
		}
		return ConnectivityResult{Message: msg, Latency: latency, Error: err}
	}
	resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("reachable (status %d)", resp.StatusCode),
		Latency:    latency,
	}
}
