package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// syncLogger ignores the "invalid argument" error Linux returns when syncing stdout.
func syncLogger(t testing.TB, logger *Logger) {
	t.Helper()
	if err := logger.Sync(); err != nil && !strings.Contains(err.Error(), "invalid argument") {
		t.Logf("Sync() warning: %v", err)
	}
}

func newObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core)), logs
}

func TestNewLogger_WritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "syncmonitor.log")

	logger, err := NewLogger(false, logPath)
	if err != nil {
		t.Fatalf("NewLogger() returned error: %v", err)
	}

	if logger.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
	if logger.LogFilePath() != logPath {
		t.Errorf("LogFilePath() = %q, want %q", logger.LogFilePath(), logPath)
	}

	logger.Info("poll loop started", IntervalField(90*time.Second))
	syncLogger(t, logger)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]interface{}
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if entry[FieldMessage] != "poll loop started" {
		t.Errorf("message = %v, want %q", entry[FieldMessage], "poll loop started")
	}
}

func TestNewLogger_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// parent is a regular file, so the directory cannot be created
	if _, err := NewLogger(true, filepath.Join(blocker, "app.log")); err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
}

func TestNewLoggerWithOptions_LevelOverride(t *testing.T) {
	level := zapcore.ErrorLevel
	logger, err := NewLoggerWithOptions(Options{
		Development: true,
		Level:       &level,
	})
	if err != nil {
		t.Fatalf("NewLoggerWithOptions() error: %v", err)
	}
	if logger.Zap().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled when level is error")
	}
	if !logger.Zap().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled")
	}
}

func TestLogger_RedactsStructuredFields(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Info("wallet loaded",
		zap.String("wallet_seed", "abandon abandon abandon"),
		zap.String("detail", "token=abcdef1234567890"),
		zap.Uint64("current_block", 42),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["wallet_seed"] != RedactedPlaceholder {
		t.Errorf("wallet_seed = %v, want redacted", fields["wallet_seed"])
	}
	if strings.Contains(fields["detail"].(string), "abcdef1234567890") {
		t.Errorf("detail leaked token: %v", fields["detail"])
	}
	if fields["current_block"] != uint64(42) {
		t.Errorf("current_block = %v, want 42", fields["current_block"])
	}
}

func TestLogger_RedactsSugaredPairs(t *testing.T) {
	logger, logs := newObservedLogger()

	logger.Warnw("refresh", "api_key", "secret-value", "wallets", 2)

	fields := logs.All()[0].ContextMap()
	if fields["api_key"] != RedactedPlaceholder {
		t.Errorf("api_key = %v, want redacted", fields["api_key"])
	}
	if fields["wallets"] != int64(2) {
		t.Errorf("wallets = %v, want 2", fields["wallets"])
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	logger, logs := newObservedLogger()

	child := logger.Named("poller").With(zap.String("cycle_id", "c1"))
	child.Debug("tick")

	entry := logs.All()[0]
	if entry.LoggerName != "poller" {
		t.Errorf("LoggerName = %q, want %q", entry.LoggerName, "poller")
	}
	if entry.ContextMap()["cycle_id"] != "c1" {
		t.Errorf("cycle_id missing from child logger entry")
	}
}

func TestLogger_Printf(t *testing.T) {
	logger, logs := newObservedLogger()
	logger.Printf("client connected: %s", "127.0.0.1")

	if got := logs.All()[0].Message; got != "client connected: 127.0.0.1" {
		t.Errorf("Printf message = %q", got)
	}
}

func TestLogger_SyncNil(t *testing.T) {
	var logger *Logger
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() on nil logger returned %v", err)
	}
	if err := NewNop().Sync(); err != nil {
		t.Errorf("Sync() on nop logger returned %v", err)
	}
}

func TestMultiCoreWithWriters(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer

	core := NewMultiCoreWithWriters(zapcore.InfoLevel,
		zapcore.AddSync(&consoleBuf), zapcore.AddSync(&fileBuf), true)
	z := zap.New(core)
	z.Info("snapshot", SyncFields(90, 100)...)
	_ = z.Sync()

	if consoleBuf.Len() == 0 {
		t.Error("console output is empty")
	}
	if strings.HasPrefix(strings.TrimSpace(consoleBuf.String()), "{") {
		t.Error("development console output should not be JSON")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(fileBuf.Bytes()), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["blocks_remaining"] != float64(10) {
		t.Errorf("blocks_remaining = %v, want 10", entry["blocks_remaining"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  zapcore.Level
		valid bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{" INFO ", zapcore.InfoLevel, true},
		{"warning", zapcore.WarnLevel, true},
		{"Error", zapcore.ErrorLevel, true},
		{"fatal", zapcore.FatalLevel, true},
		{"", zapcore.InfoLevel, false},
		{"verbose", zapcore.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLogLevel(tt.in)
			if got != tt.want || ok != tt.valid {
				t.Errorf("ParseLogLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.valid)
			}
		})
	}
}

func TestSensitiveFilter(t *testing.T) {
	t.Run("field names", func(t *testing.T) {
		for _, name := range []string{"wallet_seed", "Authorization", "csrf_token", "API_KEY"} {
			if !IsSensitiveField(name) {
				t.Errorf("IsSensitiveField(%q) = false, want true", name)
			}
		}
		for _, name := range []string{"current_block", "poll_interval", "wallet_id"} {
			if IsSensitiveField(name) {
				t.Errorf("IsSensitiveField(%q) = true, want false", name)
			}
		}
	})

	t.Run("values", func(t *testing.T) {
		in := "GET /api/v1/wallets?csrf_token=0123456789abcdef"
		out := RedactSensitiveData(in)
		if strings.Contains(out, "0123456789abcdef") {
			t.Errorf("RedactSensitiveData(%q) = %q, token not removed", in, out)
		}
		if RedactSensitiveData("blocks 90/100") != "blocks 90/100" {
			t.Error("plain text should be unchanged")
		}
	})
}

func TestApplyFileWriterDefaults(t *testing.T) {
	cfg := applyFileWriterDefaults(FileWriterConfig{MaxSizeMB: 10})
	if cfg.MaxSizeMB != 10 {
		t.Errorf("MaxSizeMB = %d, want 10", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != DefaultMaxBackups || cfg.MaxAgeDays != DefaultMaxAgeDays {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
