package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"syncmonitor/logging"

	"go.uber.org/zap"
)

// AuthProvider guards state-changing routes. When a server has no
// AuthProvider every route is open.
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
	MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc
	LoginHandler() http.HandlerFunc
	LogoutHandler() http.HandlerFunc
}

// WebUIServer serves the dashboard, its API and the /ws progress stream.
type WebUIServer struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	handler       http.Handler
	config        ServerConfig
	logger        *logging.Logger
	authProvider  AuthProvider
	dashboardAPI  *DashboardAPI
	wsBroadcaster *WebSocketBroadcaster
	monitor       Monitor

	runOnce sync.Once
	wg      sync.WaitGroup
}

// ServerConfig holds configuration for the WebUIServer.
type ServerConfig struct {
	// Host to bind to (default: all interfaces)
	Host string

	// Port to listen on
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DevMode disables asset caching
	DevMode bool

	// LogSkipPaths are served without request logging
	LogSkipPaths []string

	// Broadcaster overrides websocket timings (optional)
	Broadcaster BroadcasterConfig

	// API configures the JSON endpoints
	API DashboardAPIConfig
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8390,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogSkipPaths:    []string{"/api/health"},
		Broadcaster:     DefaultBroadcasterConfig(),
		API:             DefaultDashboardAPIConfig(),
	}
}

// NewServer wires the dashboard API, websocket hub and static assets. auth
// may be nil.
func NewServer(config ServerConfig, deps Dependencies, auth AuthProvider, logger *logging.Logger) (*WebUIServer, error) {
	if deps.Monitor == nil {
		return nil, errors.New("webui: monitor is required")
	}
	if deps.Metrics == nil {
		return nil, errors.New("webui: metrics collector is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	api := NewDashboardAPI(deps, config.API)

	bcfg := config.Broadcaster
	bcfg.InitialState = api.Snapshot
	bcfg.Logger = logger

	cacheMaxAge := 3600
	if config.DevMode {
		cacheMaxAge = 0
	}

	s := &WebUIServer{
		mux:           http.NewServeMux(),
		config:        config,
		logger:        logger.Named("webui"),
		authProvider:  auth,
		dashboardAPI:  api,
		wsBroadcaster: NewWebSocketBroadcaster(bcfg),
		monitor:       deps.Monitor,
	}
	s.setupRoutes(NewStaticAssetHandler(StaticAssetConfig{CacheMaxAge: cacheMaxAge}))

	s.handler = NewLoggingMiddleware(LoggingMiddlewareConfig{
		Logger:    logger,
		SkipPaths: config.LogSkipPaths,
	}).Handler(s.mux)

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	s.logger.Info("web server created", zap.String("addr", addr), zap.Bool("auth_enabled", auth != nil))
	return s, nil
}

func (s *WebUIServer) setupRoutes(static *StaticAssetHandler) {
	s.mux.Handle("/static/", static)
	s.mux.HandleFunc("/ws", s.wsBroadcaster.HandleConnection)

	s.dashboardAPI.RegisterRoutes(s.mux)

	refresh := http.HandlerFunc(s.dashboardAPI.HandleRefresh)
	if s.authProvider != nil {
		s.mux.Handle("/api/refresh", s.authProvider.Middleware(refresh))
		s.mux.HandleFunc("/login", s.authProvider.LoginHandler())
		s.mux.HandleFunc("/logout", s.authProvider.LogoutHandler())
	} else {
		s.mux.Handle("/api/refresh", refresh)
	}

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, request logging included.
func (s *WebUIServer) Handler() http.Handler {
	return s.handler
}

// Run starts the websocket hub and the progress relay. They stop when ctx
// is cancelled. Start calls Run; only the first call has an effect.
func (s *WebUIServer) Run(ctx context.Context) {
	s.runOnce.Do(func() {
		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.wsBroadcaster.Start(ctx)
		}()
		go func() {
			defer s.wg.Done()
			ForwardProgress(ctx, s.monitor, s.wsBroadcaster, s.logger)
		}()
	})
}

// Start runs the hub and serves HTTP until Shutdown. It returns nil after a
// clean shutdown.
func (s *WebUIServer) Start(ctx context.Context) error {
	s.Run(ctx)

	s.logger.Info("web server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, bounded
// by the configured shutdown timeout. Cancel the Run context to stop the
// hub.
func (s *WebUIServer) Shutdown(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// Wait blocks until the goroutines started by Run have exited.
func (s *WebUIServer) Wait() {
	s.wg.Wait()
}

// Broadcaster returns the websocket hub, e.g. for wallet balance updates.
func (s *WebUIServer) Broadcaster() *WebSocketBroadcaster {
	return s.wsBroadcaster
}

// Addr returns the listen address.
func (s *WebUIServer) Addr() string {
	return s.httpServer.Addr
}

// HasAuth reports whether state-changing routes are protected.
func (s *WebUIServer) HasAuth() bool {
	return s.authProvider != nil
}
