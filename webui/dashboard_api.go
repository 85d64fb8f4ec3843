// Package webui serves the sync progress dashboard, its JSON API and the
// websocket progress stream.
// This file contains the DashboardAPI REST handlers.
package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"syncmonitor/blockchain"
	"syncmonitor/db"
	"syncmonitor/metrics"
	"syncmonitor/nodeapi"
	"syncmonitor/progress"
	"syncmonitor/wallet"

	"github.com/dustin/go-humanize"
)

// Monitor is the part of blockchain.Service the dashboard uses.
type Monitor interface {
	Refresh()
	Subscribe() *progress.Subscription
	Latest() (progress.Event, bool)
	State() blockchain.State
	Interval() time.Duration
	LastBlock(ctx context.Context) (*nodeapi.Block, error)
	CoinSupply(ctx context.Context) (*nodeapi.CoinSupply, error)
}

// BalanceSource exposes the wallet refresher's state. *wallet.Refresher
// implements it.
type BalanceSource interface {
	Balances() *wallet.Snapshot
	Loading() bool
}

// RefreshLog reads the persisted balance refresh history. *db.Repository
// implements it.
type RefreshLog interface {
	RecentRefreshes(ctx context.Context, limit int) ([]db.RefreshRecord, error)
}

// Pinger checks a dependency is reachable. *db.Database implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DashboardAPI provides the REST handlers for the dashboard.
//
// Endpoints:
//   - GET  /api/progress   - monitor state and latest progress event
//   - POST /api/refresh    - start a new poll cycle
//   - GET  /api/metrics    - poll metrics and recent cycles (limit param)
//   - GET  /api/balances   - last wallet balances and refresh history
//   - GET  /api/blocks/last - most recent block
//   - GET  /api/supply     - coin supply
//   - GET  /api/health     - process health and database reachability
type DashboardAPI struct {
	monitor       Monitor
	store         metrics.MetricsCollector
	peerCollector *metrics.PeerCollector
	balances      BalanceSource
	refreshLog    RefreshLog
	database      Pinger

	defaultLimit   int
	maxLimit       int
	requestTimeout time.Duration
	versionInfo    VersionInfo
}

// VersionInfo contains version metadata for the health endpoint.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

// DashboardAPIConfig configures the DashboardAPI behavior.
type DashboardAPIConfig struct {
	// DefaultLimit is the default number of items in list endpoints
	DefaultLimit int

	// MaxLimit is the maximum number of items that can be requested
	MaxLimit int

	// RequestTimeout bounds node and database calls made by a handler
	RequestTimeout time.Duration

	// VersionInfo contains application version metadata
	VersionInfo VersionInfo
}

// DefaultDashboardAPIConfig returns a default configuration.
func DefaultDashboardAPIConfig() DashboardAPIConfig {
	return DashboardAPIConfig{
		DefaultLimit:   20,
		MaxLimit:       100,
		RequestTimeout: 10 * time.Second,
		VersionInfo:    VersionInfo{Version: "0.0.0"},
	}
}

// Dependencies are the data sources behind the API. Only Monitor and
// Metrics are required.
type Dependencies struct {
	Monitor       Monitor
	Metrics       metrics.MetricsCollector
	PeerCollector *metrics.PeerCollector
	Balances      BalanceSource
	RefreshLog    RefreshLog
	Database      Pinger
}

// NewDashboardAPI creates a DashboardAPI.
func NewDashboardAPI(deps Dependencies, config DashboardAPIConfig) *DashboardAPI {
	if config.DefaultLimit < 1 {
		config.DefaultLimit = 20
	}
	if config.MaxLimit < 1 {
		config.MaxLimit = 100
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}

	return &DashboardAPI{
		monitor:        deps.Monitor,
		store:          deps.Metrics,
		peerCollector:  deps.PeerCollector,
		balances:       deps.Balances,
		refreshLog:     deps.RefreshLog,
		database:       deps.Database,
		defaultLimit:   config.DefaultLimit,
		maxLimit:       config.MaxLimit,
		requestTimeout: config.RequestTimeout,
		versionInfo:    config.VersionInfo,
	}
}

// Snapshot builds the current dashboard state. It is served by
// /api/progress and sent to websocket clients on connect.
func (api *DashboardAPI) Snapshot() InitialData {
	data := InitialData{
		State:    api.monitor.State().String(),
		Interval: api.monitor.Interval().String(),
	}

	if ev, ok := api.monitor.Latest(); ok {
		if ev.IsError() {
			data.Error = &SyncErrorData{Kind: ev.Err}
		} else if ev.Snapshot != nil {
			p := progressData(*ev.Snapshot)
			data.Progress = &p
		}
	}

	if api.balances != nil {
		data.Balances = api.balances.Balances()
	}
	return data
}

// HandleProgress handles GET /api/progress.
func (api *DashboardAPI) HandleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	api.writeJSON(w, http.StatusOK, api.Snapshot())
}

// RefreshResponse is the JSON response for /api/refresh.
type RefreshResponse struct {
	Status string `json:"status"`
}

// HandleRefresh handles POST /api/refresh. The cycle runs in the background;
// results arrive on /ws and /api/progress.
func (api *DashboardAPI) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	api.monitor.Refresh()
	api.writeJSON(w, http.StatusAccepted, RefreshResponse{Status: "refreshing"})
}

// MetricsResponse is the JSON response for /api/metrics.
type MetricsResponse struct {
	metrics.PollMetrics

	LastTickAgo  string                `json:"last_tick_ago,omitempty"`
	CurrentCycle *metrics.CycleRecord  `json:"current_cycle,omitempty"`
	Cycles       []metrics.CycleRecord `json:"cycles"`
	PeerHistory  []metrics.PeerSample  `json:"peer_history,omitempty"`
}

// HandleMetrics handles GET /api/metrics.
// Query parameters:
//   - limit: number of finished cycles to return (default: 20, max: 100)
//   - peers: number of peer samples to include (default: 0)
func (api *DashboardAPI) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := api.limitParam(r, "limit", api.defaultLimit)

	response := MetricsResponse{
		PollMetrics: api.store.GetPollMetrics(),
		Cycles:      api.store.GetRecentCycles(limit),
	}
	if !response.LastTickAt.IsZero() {
		response.LastTickAgo = humanize.Time(response.LastTickAt)
	}
	if cur, ok := api.store.CurrentCycle(); ok {
		response.CurrentCycle = &cur
	}
	if api.peerCollector != nil {
		if n := api.limitParam(r, "peers", 0); n > 0 {
			response.PeerHistory = api.peerCollector.GetHistory(n)
		}
	}

	api.writeJSON(w, http.StatusOK, response)
}

// BalancesResponse is the JSON response for /api/balances.
type BalancesResponse struct {
	Loading   bool               `json:"loading"`
	Balances  *wallet.Snapshot   `json:"balances,omitempty"`
	Refreshes []db.RefreshRecord `json:"refreshes,omitempty"`
}

// HandleBalances handles GET /api/balances.
// Query parameters:
//   - limit: number of refresh log rows to include (default: 20, max: 100)
func (api *DashboardAPI) HandleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if api.balances == nil {
		api.writeError(w, http.StatusNotFound, "wallet balances not configured")
		return
	}

	response := BalancesResponse{
		Loading:  api.balances.Loading(),
		Balances: api.balances.Balances(),
	}

	if api.refreshLog != nil {
		ctx, cancel := context.WithTimeout(r.Context(), api.requestTimeout)
		defer cancel()

		refreshes, err := api.refreshLog.RecentRefreshes(ctx, api.limitParam(r, "limit", api.defaultLimit))
		if err != nil {
			api.writeError(w, http.StatusInternalServerError, "failed to read refresh log")
			return
		}
		response.Refreshes = refreshes
	}

	api.writeJSON(w, http.StatusOK, response)
}

// HandleLastBlock handles GET /api/blocks/last.
func (api *DashboardAPI) HandleLastBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), api.requestTimeout)
	defer cancel()

	block, err := api.monitor.LastBlock(ctx)
	if err != nil {
		api.writeNodeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, block)
}

// HandleCoinSupply handles GET /api/supply.
func (api *DashboardAPI) HandleCoinSupply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), api.requestTimeout)
	defer cancel()

	supply, err := api.monitor.CoinSupply(ctx)
	if err != nil {
		api.writeNodeError(w, err)
		return
	}
	api.writeJSON(w, http.StatusOK, supply)
}

// HealthResponse is the JSON response for /api/health.
type HealthResponse struct {
	Health     string    `json:"health"`
	Version    string    `json:"version"`
	BuildDate  string    `json:"build_date,omitempty"`
	GitCommit  string    `json:"git_commit,omitempty"`
	Uptime     string    `json:"uptime"`
	UptimeSecs float64   `json:"uptime_secs"`
	LastCheck  time.Time `json:"last_check"`
	Database   string    `json:"database"`
	PeersKnown bool      `json:"peers_known"`
}

// HandleHealth handles GET /api/health. It answers 503 when the database is
// unreachable.
func (api *DashboardAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := api.store.GetSystemStatus()
	response := HealthResponse{
		Health:     status.Health,
		Version:    api.versionInfo.Version,
		BuildDate:  api.versionInfo.BuildDate,
		GitCommit:  api.versionInfo.GitCommit,
		Uptime:     formatDuration(status.Uptime),
		UptimeSecs: status.Uptime.Seconds(),
		LastCheck:  status.LastCheck,
		Database:   "not configured",
	}
	if api.peerCollector != nil {
		response.PeersKnown = api.peerCollector.IsAvailable()
	}

	code := http.StatusOK
	if api.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), api.requestTimeout)
		defer cancel()

		if err := api.database.Ping(ctx); err != nil {
			response.Database = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	api.writeJSON(w, code, response)
}

// RegisterRoutes registers the read-only API routes. The refresh route is
// registered by the server so it can be protected.
func (api *DashboardAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/progress", api.HandleProgress)
	mux.HandleFunc("/api/metrics", api.HandleMetrics)
	mux.HandleFunc("/api/balances", api.HandleBalances)
	mux.HandleFunc("/api/blocks/last", api.HandleLastBlock)
	mux.HandleFunc("/api/supply", api.HandleCoinSupply)
	mux.HandleFunc("/api/health", api.HandleHealth)
}

// limitParam reads a positive integer query parameter capped at maxLimit.
func (api *DashboardAPI) limitParam(r *http.Request, name string, def int) int {
	limit := def
	if s := r.URL.Query().Get(name); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > api.maxLimit {
		limit = api.maxLimit
	}
	return limit
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (api *DashboardAPI) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (api *DashboardAPI) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// writeNodeError maps a node API failure to 502.
func (api *DashboardAPI) writeNodeError(w http.ResponseWriter, err error) {
	msg := string(progress.UnavailableBackend)
	if !nodeapi.IsTransportError(err) {
		msg = err.Error()
	}
	api.writeError(w, http.StatusBadGateway, msg)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already written; nothing useful to do on failure
	_ = json.NewEncoder(w).Encode(data)
}

// formatDuration formats an uptime as "1h2m3s", rounded to the second.
func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
