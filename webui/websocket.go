// Package webui serves the sync progress dashboard, its JSON API and the
// websocket progress stream.
// This file contains the WebSocketBroadcaster, which fans messages out to
// connected clients.
package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"syncmonitor/logging"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketBroadcaster manages WebSocket clients and broadcasts messages to
// all of them.
//
// Each client has its own buffered send channel drained by a write pump,
// which is the only goroutine that writes to the connection. A client whose
// buffer fills up is disconnected.
type WebSocketBroadcaster struct {
	clients   map[*websocket.Conn]clientInfo
	clientsMu sync.RWMutex

	broadcast  chan WSMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	upgrader websocket.Upgrader

	pingInterval   time.Duration
	pongWait       time.Duration
	writeWait      time.Duration
	maxMessageSize int64
	sendBuffer     int

	initialState func() InitialData

	// done is closed when the hub stops
	done chan struct{}

	logger *logging.Logger
}

type clientInfo struct {
	connectedAt time.Time
	remoteAddr  string
	send        chan []byte
}

// BroadcasterConfig holds configuration for the WebSocketBroadcaster
type BroadcasterConfig struct {
	// PingInterval is how often to send ping messages (default: 30s)
	PingInterval time.Duration

	// PongWait is how long to wait for pong response (default: 60s)
	PongWait time.Duration

	// WriteWait is time allowed to write a message (default: 10s)
	WriteWait time.Duration

	// MaxMessageSize is max message size from client (default: 512 bytes)
	MaxMessageSize int64

	// BroadcastBufferSize is the broadcast channel buffer (default: 256)
	BroadcastBufferSize int

	// ClientSendBufferSize is per-client send buffer (default: 64)
	ClientSendBufferSize int

	// InitialState builds the message sent to each client on connect
	// (optional)
	InitialState func() InitialData

	// Logger for WebSocket operations (default: no-op)
	Logger *logging.Logger
}

// DefaultBroadcasterConfig returns the default configuration
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
	}
}

// NewWebSocketBroadcaster creates a broadcaster. Call Start before accepting
// connections.
func NewWebSocketBroadcaster(config BroadcasterConfig) *WebSocketBroadcaster {
	defaults := DefaultBroadcasterConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = defaults.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = defaults.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.BroadcastBufferSize <= 0 {
		config.BroadcastBufferSize = defaults.BroadcastBufferSize
	}
	if config.ClientSendBufferSize <= 0 {
		config.ClientSendBufferSize = defaults.ClientSendBufferSize
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}

	return &WebSocketBroadcaster{
		clients:        make(map[*websocket.Conn]clientInfo),
		broadcast:      make(chan WSMessage, config.BroadcastBufferSize),
		register:       make(chan *websocket.Conn),
		unregister:     make(chan *websocket.Conn),
		pingInterval:   config.PingInterval,
		pongWait:       config.PongWait,
		writeWait:      config.WriteWait,
		maxMessageSize: config.MaxMessageSize,
		sendBuffer:     config.ClientSendBufferSize,
		initialState:   config.InitialState,
		done:           make(chan struct{}),
		logger:         config.Logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboard and stream are served from the same origin
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the hub until ctx is cancelled, then disconnects every client.
// It must be called at most once.
func (b *WebSocketBroadcaster) Start(ctx context.Context) {
	b.logger.Debug("broadcaster started")
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.closeAllClients()
			return

		case conn := <-b.register:
			b.addClient(conn)

		case conn := <-b.unregister:
			b.removeClient(conn)

		case message := <-b.broadcast:
			b.broadcastToAll(message)
		}
	}
}

// HandleConnection upgrades the request and registers the client. The
// client first receives the initial state, then every broadcast.
func (b *WebSocketBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	conn.SetReadLimit(b.maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(b.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(b.pongWait))
		return nil
	})

	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return
	}

	go b.readPump(conn)
}

// BroadcastMessage queues msg for every client. It never blocks; if the
// broadcast buffer is full the message is dropped.
func (b *WebSocketBroadcaster) BroadcastMessage(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("broadcast buffer full, dropping message", zap.String("type", msg.Type))
	}
}

// ClientCount returns the current number of connected clients.
func (b *WebSocketBroadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// addClient registers conn, queues its initial state and starts its write
// pump. Called only from the hub goroutine, so the initial state is queued
// before any later broadcast.
func (b *WebSocketBroadcaster) addClient(conn *websocket.Conn) {
	info := clientInfo{
		connectedAt: time.Now(),
		remoteAddr:  conn.RemoteAddr().String(),
		send:        make(chan []byte, b.sendBuffer),
	}

	if b.initialState != nil {
		if data, err := json.Marshal(NewInitialMessage(b.initialState())); err == nil {
			info.send <- data
		} else {
			b.logger.Error("failed to marshal initial state", zap.Error(err))
		}
	}

	b.clientsMu.Lock()
	b.clients[conn] = info
	total := len(b.clients)
	b.clientsMu.Unlock()

	go b.writePump(conn, info.send)

	b.logger.Info("client connected", zap.String("remote_addr", info.remoteAddr), zap.Int("clients", total))
}

// removeClient unregisters a client and closes its send channel; the write
// pump then closes the connection.
func (b *WebSocketBroadcaster) removeClient(conn *websocket.Conn) {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	if info, ok := b.clients[conn]; ok {
		close(info.send)
		delete(b.clients, conn)
		b.logger.Info("client disconnected",
			zap.String("remote_addr", info.remoteAddr),
			zap.Duration("connected_for", time.Since(info.connectedAt)),
			zap.Int("clients", len(b.clients)))
	}
}

func (b *WebSocketBroadcaster) broadcastToAll(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal broadcast message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		select {
		case info.send <- data:
		default:
			b.logger.Warn("client send buffer full, disconnecting", zap.String("remote_addr", info.remoteAddr))
			close(info.send)
			delete(b.clients, conn)
		}
	}
}

func (b *WebSocketBroadcaster) closeAllClients() {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()

	for conn, info := range b.clients {
		close(info.send)
		delete(b.clients, conn)
	}
}

// readPump discards client messages and unregisters the client once the
// connection fails or closes.
func (b *WebSocketBroadcaster) readPump(conn *websocket.Conn) {
	defer func() {
		select {
		case b.unregister <- conn:
		case <-b.done:
		}
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				b.logger.Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on conn. It sends queued messages and
// periodic pings, and closes the connection when send is closed.
func (b *WebSocketBroadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(b.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				b.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(b.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
