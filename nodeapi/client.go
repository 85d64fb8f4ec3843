// Package nodeapi is the HTTP client for the blockchain node's REST API.
//
// client.go implements the Client molecule. It composes:
//   - core.GetHTTPClient: HTTP client factory (TLS settings, timeout)
//   - logging.Logger: structured logging
//   - uuid: per-request X-Request-ID
package nodeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"syncmonitor/logging"
	"syncmonitor/progress"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of a non-2xx body ends up in an error.
const maxErrorBody = 512

// Client talks to one node.
//
// Thread-Safety:
//   - Client is safe for concurrent use
//   - HTTP client handles concurrency internally
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// Config holds configuration for the node API client.
type Config struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8000/api/v1
	BaseURL string

	// Timeout for each request
	Timeout time.Duration
}

// DefaultConfig returns the local-node defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8000/api/v1",
		Timeout: 30 * time.Second,
	}
}

// NewClient creates a node API client.
//
// Parameters:
//   - cfg: base URL and timeout
//   - httpClient: HTTP client for API requests (use core.GetHTTPClient)
//   - logger: structured logger for request tracking
func NewClient(cfg Config, httpClient *http.Client, logger *logging.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("nodeapi: invalid base URL %q", cfg.BaseURL)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger.Named("nodeapi"),
	}, nil
}

// LastBlocks returns the n most recent blocks.
func (c *Client) LastBlocks(ctx context.Context, n int) ([]Block, error) {
	var resp lastBlocksResponse
	q := url.Values{"num": []string{strconv.Itoa(n)}}
	if err := c.get(ctx, "last_blocks", q, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// CoinSupply returns the node's coin supply figures.
func (c *Client) CoinSupply(ctx context.Context) (*CoinSupply, error) {
	var supply CoinSupply
	if err := c.get(ctx, "coinSupply", nil, &supply); err != nil {
		return nil, err
	}
	return &supply, nil
}

// ConnectionStatus returns the node's current peer list.
func (c *Client) ConnectionStatus(ctx context.Context) (*ConnectionStatus, error) {
	var status ConnectionStatus
	if err := c.get(ctx, "network/connections", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Balances returns the balance of every wallet loaded in the node.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var resp balancesResponse
	if err := c.get(ctx, "wallets/balance", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// SyncProgress returns the node's sync progress. Every field of the response
// is kept in Snapshot.Raw; current and highest are also decoded.
func (c *Client) SyncProgress(ctx context.Context) (*progress.Snapshot, error) {
	const path = "blockchain/progress"

	var raw map[string]interface{}
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	current, err := heightField(raw, "current")
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}
	highest, err := heightField(raw, "highest")
	if err != nil {
		return nil, &TransportError{Path: path, Err: err}
	}

	return &progress.Snapshot{
		Current: current,
		Highest: highest,
		Raw:     raw,
	}, nil
}

// heightField reads a non-negative integer field. A missing or null field is 0.
func heightField(raw map[string]interface{}, key string) (uint64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}

	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", key)
	}
	n, err := strconv.ParseUint(num.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

// get performs a GET against path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	requestID := uuid.NewString()
	fail := func(status int, err error) error {
		return &TransportError{Path: path, RequestID: requestID, StatusCode: status, Err: err}
	}

	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("node request failed",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read response body: %w", err))
	}

	c.logger.Debug("node request completed",
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fail(resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
