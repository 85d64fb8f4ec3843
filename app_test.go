package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"syncmonitor/blockchain"
	"syncmonitor/core"
	"syncmonitor/db"
	"syncmonitor/logging"
	"syncmonitor/shutdown"

	"go.uber.org/zap/zaptest"
)

// fakeNode serves the handful of node endpoints the daemon calls.
type fakeNode struct {
	current, highest uint64
	progressCalls    int32
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch strings.TrimPrefix(r.URL.Path, "/api/v1/") {
	case "network/connections":
		w.Write([]byte(`{"connections":[{"id":1,"address":"10.0.0.1:6000","outgoing":true,"height":500}]}`))
	case "blockchain/progress":
		atomic.AddInt32(&n.progressCalls, 1)
		w.Write([]byte(`{"current":` + strconv.FormatUint(n.current, 10) + `,"highest":` + strconv.FormatUint(n.highest, 10) + `}`))
	case "wallets/balance":
		w.Write([]byte(`{"wallets":[{"wallet":"main.wlt","confirmed":{"coins":1000000,"hours":12},"predicted":{"coins":1000000,"hours":12}}]}`))
	default:
		http.NotFound(w, r)
	}
}

// lockedBuffer is a bytes.Buffer safe for the console goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, nodeURL string) *core.Config {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.NodeAPIURL = nodeURL + "/api/v1"
	cfg.NodeAPITimeout = 2 * time.Second
	cfg.DataDir = t.TempDir()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.LogFile = ""
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestApp_RunToCompletionAndShutdown(t *testing.T) {
	node := &fakeNode{current: 500, highest: 500}
	ts := httptest.NewServer(node)
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	logger := logging.NewFromZap(zaptest.NewLogger(t))
	manager := shutdown.NewManager(logger, shutdown.WithTimeout(5*time.Second))

	a, err := newApp(cfg, logger, manager)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- a.run() }()

	waitFor(t, "sync completion", func() bool {
		return a.monitor.State() == blockchain.StateCompleted
	})
	waitFor(t, "wallet balances", func() bool {
		return a.wallet.Balances() != nil
	})

	manager.Trigger("test")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after Trigger")
	}

	if got := manager.ExitCode(); got != core.ExitCodeSuccess {
		t.Errorf("ExitCode() = %d, want 0", got)
	}
	if atomic.LoadInt32(&node.progressCalls) == 0 {
		t.Error("node progress endpoint never polled")
	}

	// the async writer flushed the refresh record before the database closed
	database, err := db.Open(db.DefaultDatabaseConfig(cfg.DatabasePath()))
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	defer database.Close()
	repo := db.NewRepository(database, nil)

	count, err := repo.CountRefreshes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count < 1 {
		t.Errorf("refresh records = %d, want at least 1", count)
	}
	balances, err := repo.ListBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(balances) != 1 {
		t.Errorf("cached balances = %d, want 1", len(balances))
	}
}

func TestApp_ConsoleOutput(t *testing.T) {
	node := &fakeNode{current: 500, highest: 500}
	ts := httptest.NewServer(node)
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	logger := logging.NewNop()
	manager := shutdown.NewManager(logger, shutdown.WithTimeout(5*time.Second))

	a, err := newApp(cfg, logger, manager)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	out := &lockedBuffer{}
	a.console = out

	done := make(chan error, 1)
	go func() { done <- a.run() }()

	waitFor(t, "console output", func() bool {
		return strings.Contains(out.String(), "synced at block 500")
	})

	manager.Trigger("test")
	if err := <-done; err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestNewApp_DatabaseError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.DataDir = filepath.Join(blocker, "data")

	logger := logging.NewNop()
	_, err := newApp(cfg, logger, shutdown.NewManager(logger))
	if err == nil {
		t.Fatal("expected error for unusable data dir")
	}
	if !strings.Contains(err.Error(), "open database") {
		t.Errorf("error = %v", err)
	}
}

func TestNewApp_WithPassword(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.WebUIPassword = "hunter22"

	logger := logging.NewNop()
	a, err := newApp(cfg, logger, shutdown.NewManager(logger))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.closePartial()

	if !a.server.HasAuth() {
		t.Error("dashboard auth not enabled")
	}
}
