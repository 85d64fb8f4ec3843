package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML overlay. Absent keys leave the current
// value untouched.
//
//	node:
//	  url: http://127.0.0.1:8000/api/v1
//	  timeout_seconds: 20
//	poll:
//	  default_interval_ms: 90000
//	  fast_interval_ms: 5000
//	  near_completion_blocks: 5
//	server:
//	  host: 127.0.0.1
//	  port: 8390
//	  secure_cookies: false
//	  peer_sample_seconds: 30
//	wallet:
//	  load_timeout_seconds: 30
//	storage:
//	  data_dir: ./data
//	  retention_days: 7
//	log:
//	  file: syncmonitor.log
//	  level: info
type FileConfig struct {
	Node    NodeFileConfig    `yaml:"node"`
	Poll    PollFileConfig    `yaml:"poll"`
	Server  ServerFileConfig  `yaml:"server"`
	Wallet  WalletFileConfig  `yaml:"wallet"`
	Storage StorageFileConfig `yaml:"storage"`
	Log     LogFileConfig     `yaml:"log"`
}

type NodeFileConfig struct {
	URL                  string `yaml:"url"`
	TimeoutSeconds       *int   `yaml:"timeout_seconds"`
	AllowSelfSignedCerts *bool  `yaml:"allow_self_signed_certs"`
}

type PollFileConfig struct {
	DefaultIntervalMs    *int    `yaml:"default_interval_ms"`
	FastIntervalMs       *int    `yaml:"fast_interval_ms"`
	NearCompletionBlocks *uint64 `yaml:"near_completion_blocks"`
}

// The dashboard password is deliberately absent; it comes from
// WEBUI_PASSWORD only.
type ServerFileConfig struct {
	Host              string `yaml:"host"`
	Port              *int   `yaml:"port"`
	SecureCookies     *bool  `yaml:"secure_cookies"`
	PeerSampleSeconds *int   `yaml:"peer_sample_seconds"`
}

type WalletFileConfig struct {
	LoadTimeoutSeconds *int `yaml:"load_timeout_seconds"`
}

type StorageFileConfig struct {
	DataDir       string `yaml:"data_dir"`
	RetentionDays *int   `yaml:"retention_days"`
}

type LogFileConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
	Dev   *bool  `yaml:"dev"`
}

// ApplyConfigFile reads the YAML file at path and overlays it onto cfg.
func ApplyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigFileMissing(path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return ErrInvalidConfigFile(path, err.Error())
	}

	fc.apply(cfg)
	return nil
}

func (fc FileConfig) apply(cfg *Config) {
	if fc.Node.URL != "" {
		cfg.NodeAPIURL = fc.Node.URL
	}
	if fc.Node.TimeoutSeconds != nil {
		cfg.NodeAPITimeout = time.Duration(*fc.Node.TimeoutSeconds) * time.Second
	}
	if fc.Node.AllowSelfSignedCerts != nil {
		cfg.AllowSelfSignedCerts = *fc.Node.AllowSelfSignedCerts
	}

	if fc.Poll.DefaultIntervalMs != nil {
		cfg.DefaultPollInterval = time.Duration(*fc.Poll.DefaultIntervalMs) * time.Millisecond
	}
	if fc.Poll.FastIntervalMs != nil {
		cfg.FastPollInterval = time.Duration(*fc.Poll.FastIntervalMs) * time.Millisecond
	}
	if fc.Poll.NearCompletionBlocks != nil {
		cfg.NearCompletionBlocks = *fc.Poll.NearCompletionBlocks
	}

	if fc.Server.Host != "" {
		cfg.Host = fc.Server.Host
	}
	if fc.Server.Port != nil {
		cfg.Port = *fc.Server.Port
	}
	if fc.Server.SecureCookies != nil {
		cfg.SecureCookies = *fc.Server.SecureCookies
	}
	if fc.Server.PeerSampleSeconds != nil {
		cfg.PeerSampleRate = time.Duration(*fc.Server.PeerSampleSeconds) * time.Second
	}
	if fc.Wallet.LoadTimeoutSeconds != nil {
		cfg.BalanceLoadTimeout = time.Duration(*fc.Wallet.LoadTimeoutSeconds) * time.Second
	}
	if fc.Storage.DataDir != "" {
		cfg.DataDir = fc.Storage.DataDir
	}
	if fc.Storage.RetentionDays != nil {
		cfg.RefreshRetentionDays = *fc.Storage.RetentionDays
	}

	if fc.Log.File != "" {
		cfg.LogFile = fc.Log.File
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
	if fc.Log.Dev != nil {
		cfg.DevMode = *fc.Log.Dev
	}
}
