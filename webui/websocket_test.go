package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"syncmonitor/progress"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zapcore"
)

// rawMessage is a WSMessage with its payload left undecoded.
type rawMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func startBroadcaster(t *testing.T, config BroadcasterConfig) (*WebSocketBroadcaster, string, context.CancelFunc) {
	t.Helper()
	b := NewWebSocketBroadcaster(config)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(b.HandleConnection))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return b, "ws" + strings.TrimPrefix(server.URL, "http"), cancel
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg rawMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, b *WebSocketBroadcaster, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, b.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewWebSocketBroadcaster(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		b := NewWebSocketBroadcaster(BroadcasterConfig{})

		if b.pingInterval != 30*time.Second || b.pongWait != 60*time.Second || b.writeWait != 10*time.Second {
			t.Errorf("timings = %v %v %v", b.pingInterval, b.pongWait, b.writeWait)
		}
		if b.maxMessageSize != 512 || b.sendBuffer != 64 || cap(b.broadcast) != 256 {
			t.Errorf("sizes = %d %d %d", b.maxMessageSize, b.sendBuffer, cap(b.broadcast))
		}
		if b.logger == nil {
			t.Error("logger not defaulted")
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		b := NewWebSocketBroadcaster(BroadcasterConfig{
			PingInterval:         time.Second,
			BroadcastBufferSize:  4,
			ClientSendBufferSize: 2,
		})
		if b.pingInterval != time.Second || cap(b.broadcast) != 4 || b.sendBuffer != 2 {
			t.Errorf("config not kept")
		}
	})
}

func TestWebSocketBroadcaster_InitialState(t *testing.T) {
	b, url, _ := startBroadcaster(t, BroadcasterConfig{
		InitialState: func() InitialData {
			return InitialData{State: "polling", Interval: "1m30s"}
		},
	})

	conn := dialWS(t, url)
	msg := readWS(t, conn)

	if msg.Type != MessageTypeInitial {
		t.Fatalf("first message type = %q, want initial", msg.Type)
	}
	var data InitialData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.State != "polling" || data.Interval != "1m30s" {
		t.Errorf("initial data = %+v", data)
	}
	waitForClients(t, b, 1)
}

func TestWebSocketBroadcaster_Broadcast(t *testing.T) {
	b, url, _ := startBroadcaster(t, BroadcasterConfig{})

	clients := []*websocket.Conn{dialWS(t, url), dialWS(t, url), dialWS(t, url)}
	waitForClients(t, b, 3)

	b.BroadcastMessage(NewEventMessage(progress.SnapshotEvent(progress.Snapshot{Current: 5, Highest: 10})))

	for i, conn := range clients {
		msg := readWS(t, conn)
		if msg.Type != MessageTypeProgress {
			t.Errorf("client %d got type %q", i, msg.Type)
			continue
		}
		var data ProgressData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			t.Fatal(err)
		}
		if data.Current != 5 || data.Percent != 50 {
			t.Errorf("client %d data = %+v", i, data)
		}
	}
}

func TestWebSocketBroadcaster_Disconnect(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.InfoLevel)
	b, url, _ := startBroadcaster(t, BroadcasterConfig{Logger: logger})

	conn := dialWS(t, url)
	waitForClients(t, b, 1)

	conn.Close()
	waitForClients(t, b, 0)

	if logs.FilterMessage("client connected").Len() != 1 {
		t.Error("expected a 'client connected' log entry")
	}
	if logs.FilterMessage("client disconnected").Len() != 1 {
		t.Error("expected a 'client disconnected' log entry")
	}
}

func TestWebSocketBroadcaster_ShutdownClosesClients(t *testing.T) {
	b, url, cancel := startBroadcaster(t, BroadcasterConfig{})

	conn := dialWS(t, url)
	waitForClients(t, b, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close after shutdown")
	}
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown", b.ClientCount())
	}

	t.Run("connections after shutdown are refused", func(t *testing.T) {
		late := dialWS(t, url)
		late.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := late.ReadMessage(); err == nil {
			t.Error("late connection was served")
		}
	})
}

func TestWebSocketBroadcaster_BufferFullDrops(t *testing.T) {
	logger, logs := newObservedLogger(zapcore.WarnLevel)
	// hub not started, so nothing drains the broadcast channel
	b := NewWebSocketBroadcaster(BroadcasterConfig{BroadcastBufferSize: 2, Logger: logger})

	for i := 0; i < 5; i++ {
		b.BroadcastMessage(NewErrorMessage("X", "y"))
	}

	if len(b.broadcast) != 2 {
		t.Errorf("queued = %d, want 2", len(b.broadcast))
	}
	if logs.FilterMessage("broadcast buffer full, dropping message").Len() != 3 {
		t.Errorf("expected 3 drop warnings, got %d", logs.Len())
	}
}

func TestWebSocketBroadcaster_SlowClientDisconnected(t *testing.T) {
	b := NewWebSocketBroadcaster(BroadcasterConfig{ClientSendBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(b.HandleConnection))
	defer server.Close()
	dialWS(t, "ws"+strings.TrimPrefix(server.URL, "http"))
	waitForClients(t, b, 1)

	// the client never reads; flood until its buffer overflows
	big := NewErrorMessage("BIG", strings.Repeat("x", 1<<16))
	deadline := time.Now().Add(5 * time.Second)
	for b.ClientCount() != 0 && time.Now().Before(deadline) {
		b.BroadcastMessage(big)
		time.Sleep(time.Millisecond)
	}
	if b.ClientCount() != 0 {
		t.Error("slow client was not disconnected")
	}
}

func TestWebSocketBroadcaster_Concurrent(t *testing.T) {
	b, url, _ := startBroadcaster(t, BroadcasterConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				t.Error(err)
				return
			}
			defer conn.Close()
			for j := 0; j < 20; j++ {
				b.BroadcastMessage(NewErrorMessage("C", "concurrent"))
			}
			_ = b.ClientCount()
		}()
	}
	wg.Wait()
	waitForClients(t, b, 0)
}
