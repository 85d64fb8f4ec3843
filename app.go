package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"syncmonitor/blockchain"
	"syncmonitor/console"
	"syncmonitor/core"
	"syncmonitor/db"
	"syncmonitor/logging"
	"syncmonitor/metrics"
	"syncmonitor/nodeapi"
	"syncmonitor/shutdown"
	"syncmonitor/wallet"
	"syncmonitor/webui"
	"syncmonitor/webui/auth"

	"go.uber.org/zap"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg     *core.Config
	logger  *logging.Logger
	manager *shutdown.Manager

	database *db.Database
	writer   *db.AsyncWriter
	repo     *db.Repository

	node    *nodeapi.Client
	wallet  *wallet.Refresher
	metrics *metrics.MetricsStore
	peers   *metrics.PeerCollector
	monitor *blockchain.Service
	server  *webui.WebUIServer

	// console receives the terminal progress display; nil disables it
	console io.Writer
}

// newApp builds and wires the components. Nothing runs until run is
// called. On error, whatever was opened is closed again.
func newApp(cfg *core.Config, logger *logging.Logger, manager *shutdown.Manager) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, manager: manager}
	defer func() {
		if err != nil {
			a.closePartial()
		}
	}()

	a.database, err = db.Open(db.DefaultDatabaseConfig(cfg.DatabasePath()))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// refresh log writes are queued; the writer applies them directly
	dbLogger := logger.Named("db")
	direct := db.NewRepository(a.database, nil)
	a.writer = db.NewAsyncWriter(direct.CreateAsyncWriteHandler(), db.AsyncWriterConfig{
		OnError: func(err error) { dbLogger.Warn("async write failed", zap.Error(err)) },
	})
	a.repo = db.NewRepository(a.database, a.writer)

	a.node, err = nodeapi.NewClient(nodeapi.Config{
		BaseURL: cfg.NodeAPIURL,
		Timeout: cfg.NodeAPITimeout,
	}, core.GetHTTPClient(cfg, cfg.NodeAPITimeout), logger)
	if err != nil {
		return nil, err
	}

	// the websocket hub exists only once the server does
	relay := &webui.BroadcastRelay{}
	a.wallet, err = wallet.NewRefresher(a.node, a.repo, wallet.Config{
		LoadTimeout: cfg.BalanceLoadTimeout,
		OnLoaded:    webui.BalancesLoaded(relay),
	}, logger)
	if err != nil {
		return nil, err
	}

	storeCfg := metrics.DefaultStoreConfig()
	storeCfg.Version = core.Version
	a.metrics = metrics.NewMetricsStore(storeCfg, time.Now())

	peerCfg := metrics.DefaultPeerCollectorConfig()
	peerCfg.CollectionInterval = cfg.PeerSampleRate
	peerCfg.ReadTimeout = cfg.NodeAPITimeout
	a.peers = metrics.NewPeerCollector(peerCfg, a.node, a.metrics.UpdatePeers)

	a.monitor, err = blockchain.New(blockchain.Config{
		DefaultInterval:      cfg.DefaultPollInterval,
		FastInterval:         cfg.FastPollInterval,
		NearCompletionBlocks: cfg.NearCompletionBlocks,
	}, a.node, a.wallet, a.metrics, logger)
	if err != nil {
		return nil, err
	}

	var authProvider webui.AuthProvider
	if cfg.WebUIPassword != "" {
		authCfg := auth.DefaultConfig()
		authCfg.SecureCookies = cfg.SecureCookies
		authenticator, err := auth.NewAuthenticator(cfg.WebUIPassword, authCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("dashboard auth: %w", err)
		}
		authProvider = authenticator
	}

	a.server, err = webui.NewServer(a.serverConfig(), webui.Dependencies{
		Monitor:       a.monitor,
		Metrics:       a.metrics,
		PeerCollector: a.peers,
		Balances:      a.wallet,
		RefreshLog:    a.repo,
		Database:      a.database,
	}, authProvider, logger)
	if err != nil {
		return nil, err
	}
	relay.Attach(a.server.Broadcaster())

	return a, nil
}

func (a *app) serverConfig() webui.ServerConfig {
	sc := webui.DefaultServerConfig()
	sc.Host = a.cfg.Host
	sc.Port = a.cfg.Port
	sc.DevMode = a.cfg.DevMode
	sc.API.VersionInfo = webui.VersionInfo{
		Version:   core.Version,
		BuildDate: core.BuildTime,
		GitCommit: core.GitCommit,
	}
	return sc
}

// registerHooks orders the teardown: HTTP first so no request sees a closed
// component, then the pollers, then storage, then the log.
func (a *app) registerHooks() {
	a.manager.Register("webui", shutdown.PriorityServer, func(ctx context.Context) error {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
		a.server.Wait()
		return nil
	})
	a.manager.Register("monitor", shutdown.PriorityMonitor, func(ctx context.Context) error {
		return a.monitor.Close()
	})
	a.manager.Register("wallet", shutdown.PriorityMonitor, func(ctx context.Context) error {
		a.wallet.Close()
		return nil
	})
	a.manager.Register("peers", shutdown.PriorityMonitor, func(ctx context.Context) error {
		a.peers.Stop()
		return nil
	})
	a.manager.Register("async-writer", shutdown.PriorityStorage, func(ctx context.Context) error {
		if !a.writer.Stop(5 * time.Second) {
			return errors.New("pending writes not flushed")
		}
		return nil
	})
	a.manager.Register("database", shutdown.PriorityStorage, func(ctx context.Context) error {
		return a.database.Close()
	})
	a.manager.Register("logger", shutdown.PriorityLogger, func(ctx context.Context) error {
		// stdout cannot be synced on most platforms
		_ = a.logger.Sync()
		return nil
	})
}

// start launches the background work and the first poll cycle.
func (a *app) start() error {
	a.registerHooks()
	a.writer.Start()
	a.peers.Start()

	ctx := a.manager.Context()
	a.database.StartCleanupScheduler(ctx, db.CleanupSchedulerConfig{
		RetentionDays: a.cfg.RefreshRetentionDays,
		Interval:      24 * time.Hour,
		OnCleanup: func(res db.CleanupResult, err error) {
			if err != nil {
				a.logger.Warn("refresh log cleanup failed", zap.Error(err))
				return
			}
			a.logger.Debug("refresh log cleanup done",
				zap.Int64("deleted", res.RefreshesDeleted),
				zap.Duration("duration", res.Duration))
		},
	})

	if err := a.manager.Go("webui", func(ctx context.Context) {
		if err := a.server.Start(ctx); err != nil {
			a.logger.Error("web server stopped unexpectedly", zap.Error(err))
			a.manager.Trigger("web server failed")
		}
	}); err != nil {
		return err
	}

	if a.console != nil {
		display := console.New(a.console)
		sub := a.monitor.Subscribe()
		if err := a.manager.Go("console", func(ctx context.Context) {
			display.Run(ctx, sub)
		}); err != nil {
			sub.Close()
			return err
		}
	}

	a.logger.Info("sync monitor started",
		zap.String("node", a.cfg.NodeAPIURL),
		zap.String("dashboard", a.server.Addr()),
		zap.Bool("auth", a.server.HasAuth()),
		logging.IntervalField(a.monitor.Interval()))

	a.monitor.Refresh()
	return nil
}

// run starts the app, blocks until shutdown begins and tears everything
// down.
func (a *app) run() error {
	if err := a.start(); err != nil {
		a.manager.Trigger("startup failed")
		return errors.Join(err, a.manager.Shutdown())
	}
	a.manager.Wait()
	return a.manager.Shutdown()
}

// closePartial releases what newApp opened before failing.
func (a *app) closePartial() {
	if a.wallet != nil {
		a.wallet.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
}
