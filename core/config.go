package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Node API
	NodeAPIURL           string        // Base URL of the node's REST API, e.g. http://127.0.0.1:8000/api/v1
	NodeAPITimeout       time.Duration // Per-request timeout for node API calls
	AllowSelfSignedCerts bool

	// Poll cadence
	DefaultPollInterval  time.Duration // Normal cadence while far from the chain tip
	FastPollInterval     time.Duration // Cadence once within NearCompletionBlocks of the tip
	NearCompletionBlocks uint64

	// Dashboard / stream server
	Host           string
	Port           int
	WebUIPassword  string // empty disables login; /api/refresh is then open
	SecureCookies  bool
	PeerSampleRate time.Duration // how often connection counts are sampled for the dashboard

	// Wallet balances
	BalanceLoadTimeout time.Duration

	// Refresh log retention in the sqlite database
	RefreshRetentionDays int

	// Storage and logging
	DataDir  string
	LogFile  string
	LogLevel string
	DevMode  bool
}

// Config defaults
const (
	DefaultNodeAPIURL           = "http://127.0.0.1:8000/api/v1"
	DefaultNodeAPITimeoutSecs   = 30
	DefaultPollIntervalMs       = 90000
	DefaultFastPollIntervalMs   = 5000
	DefaultNearCompletionBlocks = 5
	DefaultPort                 = 8390
	DefaultPeerSampleSecs       = 30
	DefaultBalanceLoadSecs      = 30
	DefaultRetentionDays        = 7
	DefaultDataDir              = "./data"
	DefaultLogFile              = "syncmonitor.log"
)

// DefaultConfig returns a Config populated with defaults only.
func DefaultConfig() *Config {
	return &Config{
		NodeAPIURL:           DefaultNodeAPIURL,
		NodeAPITimeout:       DefaultNodeAPITimeoutSecs * time.Second,
		DefaultPollInterval:  DefaultPollIntervalMs * time.Millisecond,
		FastPollInterval:     DefaultFastPollIntervalMs * time.Millisecond,
		NearCompletionBlocks: DefaultNearCompletionBlocks,
		Port:                 DefaultPort,
		PeerSampleRate:       DefaultPeerSampleSecs * time.Second,
		BalanceLoadTimeout:   DefaultBalanceLoadSecs * time.Second,
		RefreshRetentionDays: DefaultRetentionDays,
		DataDir:              DefaultDataDir,
		LogFile:              DefaultLogFile,
		LogLevel:             "info",
	}
}

// LoadConfig builds the configuration from defaults, then the optional YAML
// file named by SYNCMON_CONFIG, then environment variables. Later sources win.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SYNCMON_CONFIG"); path != "" {
		if err := ApplyConfigFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.NodeAPIURL = GetEnvOrDefault("NODE_API_URL", cfg.NodeAPIURL)
	cfg.NodeAPITimeout = ParseDurationEnv("NODE_API_TIMEOUT", int(cfg.NodeAPITimeout/time.Second))
	cfg.AllowSelfSignedCerts = ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", cfg.AllowSelfSignedCerts)

	cfg.DefaultPollInterval = ParseDurationMsEnv("POLL_DEFAULT_INTERVAL_MS", int(cfg.DefaultPollInterval/time.Millisecond))
	cfg.FastPollInterval = ParseDurationMsEnv("POLL_FAST_INTERVAL_MS", int(cfg.FastPollInterval/time.Millisecond))
	cfg.NearCompletionBlocks = ParseUint64Env("POLL_NEAR_BLOCKS", cfg.NearCompletionBlocks)

	cfg.Host = GetEnvOrDefault("WEBUI_HOST", cfg.Host)
	cfg.Port = ParseIntEnv("PORT", cfg.Port)
	cfg.WebUIPassword = GetEnvOrDefault("WEBUI_PASSWORD", cfg.WebUIPassword)
	cfg.SecureCookies = ParseBoolEnv("WEBUI_SECURE_COOKIES", cfg.SecureCookies)
	cfg.PeerSampleRate = ParseDurationEnv("PEER_SAMPLE_INTERVAL", int(cfg.PeerSampleRate/time.Second))
	cfg.BalanceLoadTimeout = ParseDurationEnv("BALANCE_LOAD_TIMEOUT", int(cfg.BalanceLoadTimeout/time.Second))
	cfg.RefreshRetentionDays = ParseIntEnv("REFRESH_RETENTION_DAYS", cfg.RefreshRetentionDays)
	cfg.DataDir = GetEnvOrDefault("DATA_DIR", cfg.DataDir)
	cfg.LogFile = GetEnvOrDefault("LOG_FILE", cfg.LogFile)
	cfg.LogLevel = GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DevMode = ParseBoolEnv("DEV_MODE", cfg.DevMode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration. It does not mutate it.
func (c *Config) Validate() error {
	if c.NodeAPIURL == "" {
		return ErrMissingConfig("NODE_API_URL")
	}
	u, err := url.Parse(c.NodeAPIURL)
	if err != nil {
		return ErrInvalidNodeURL(c.NodeAPIURL, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidNodeURL(c.NodeAPIURL, "scheme must be http or https")
	}
	if u.Host == "" {
		return ErrInvalidNodeURL(c.NodeAPIURL, "missing host")
	}

	if c.DefaultPollInterval <= 0 {
		return ErrInvalidValue("POLL_DEFAULT_INTERVAL_MS", "must be > 0")
	}
	if c.FastPollInterval <= 0 {
		return ErrInvalidValue("POLL_FAST_INTERVAL_MS", "must be > 0")
	}
	if c.FastPollInterval > c.DefaultPollInterval {
		return ErrInvalidValue("POLL_FAST_INTERVAL_MS",
			fmt.Sprintf("must not exceed the default interval (%s)", c.DefaultPollInterval))
	}
	if c.NodeAPITimeout <= 0 {
		return ErrInvalidValue("NODE_API_TIMEOUT", "must be > 0")
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidValue("PORT", fmt.Sprintf("must be between 1 and 65535, got %d", c.Port))
	}
	if c.PeerSampleRate <= 0 {
		return ErrInvalidValue("PEER_SAMPLE_INTERVAL", "must be > 0")
	}
	if c.BalanceLoadTimeout <= 0 {
		return ErrInvalidValue("BALANCE_LOAD_TIMEOUT", "must be > 0")
	}
	if c.RefreshRetentionDays < 1 {
		return ErrInvalidValue("REFRESH_RETENTION_DAYS", "must be at least 1")
	}
	return nil
}

// DatabasePath returns the sqlite file used for the balance cache.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "syncmonitor.db")
}

// GetHTTPClient returns an HTTP client honouring AllowSelfSignedCerts.
// Use it for every call to the node API.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
