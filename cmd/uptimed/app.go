package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nick2bad4u/uptime-watcher/internal/checker"
	"github.com/nick2bad4u/uptime-watcher/internal/config"
	"github.com/nick2bad4u/uptime-watcher/internal/coordinator"
	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
	"github.com/nick2bad4u/uptime-watcher/internal/ipc"
	"github.com/nick2bad4u/uptime-watcher/internal/lifecycle"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck"
	"github.com/nick2bad4u/uptime-watcher/internal/monitorcheck/httpclient"
	"github.com/nick2bad4u/uptime-watcher/internal/mutation"
	"github.com/nick2bad4u/uptime-watcher/internal/orchestrator"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
	"github.com/nick2bad4u/uptime-watcher/internal/scheduler"
	"github.com/nick2bad4u/uptime-watcher/internal/sitecache"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
	"github.com/nick2bad4u/uptime-watcher/pkg/logger"
	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// App wires every subsystem together and owns the explicit Init/Shutdown
// lifecycle: connect, migrate, serve, graceful shutdown on signal.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	engine       *storage.Engine
	sites        *repository.SiteRepository
	monitors     *repository.MonitorRepository
	history      *repository.HistoryRepository
	settings     *repository.SettingsRepository
	cache        *sitecache.Cache
	internalBus  *eventbus.Bus
	publicBus    *eventbus.Bus
	coordinator  *coordinator.Coordinator
	scheduler    *scheduler.Scheduler
	checker      *checker.Checker
	lifecycle    *lifecycle.Manager
	mutation     *mutation.Manager
	orchestrator *orchestrator.Orchestrator
	registry     *ipc.Registry
	bridge       *ipc.WebSocketBridge

	metricsServer *http.Server
	ipcServer     *http.Server
}

// NewApp constructs an App from cfg, wiring but not starting anything.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	engine, err := storage.Open(ctx, cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}

	reg := metrics.Default()

	sites := repository.NewSiteRepository(engine, log)
	monitors := repository.NewMonitorRepository(engine, log)
	history := repository.NewHistoryRepository(engine, log)
	settings := repository.NewSettingsRepository(engine, log)

	internalBus := eventbus.New("internal", log, reg.EventBus())
	publicBus := eventbus.New("public", log, reg.EventBus())

	cacheLoader := func(ctx context.Context, identifier string) (core.Site, bool, error) {
		site, err := sites.FindByIdentifier(ctx, identifier)
		if err != nil {
			return core.Site{}, false, err
		}
		if site == nil {
			return core.Site{}, false, nil
		}
		mons, err := monitors.FindAll(ctx, identifier)
		if err != nil {
			return core.Site{}, false, err
		}
		site.Monitors = mons
		return *site, true, nil
	}
	cache, err := sitecache.New(cfg.Cache.Size, cfg.Cache.TTL, cacheLoader, log, internalBus)
	if err != nil {
		return nil, err
	}

	coord := coordinator.New(reg.Coordinator())

	httpClient := httpclient.New(600, 10)
	strategies := monitorcheck.NewStrategyRegistry(monitorcheck.Dependencies{HTTPClient: httpClient})

	chk := checker.New(
		checker.Config{CleanupBuffer: cfg.Scheduler.CleanupBuffer, HistoryLimit: orchestrator.DefaultHistoryLimit, PruneEvery: 20},
		engine, cache, monitors, history, coord, strategies, internalBus, log, reg.Checker(),
	)

	sched := scheduler.New(scheduler.Config{
		JitterCap:            cfg.Scheduler.JitterCap,
		BackoffMultiplier:    cfg.Scheduler.BackoffMultiplier,
		BackoffCeilingFactor: cfg.Scheduler.BackoffCeilingFactor,
	}, func(ctx context.Context, monitorID string) bool {
		result, err := chk.Run(ctx, monitorID, false)
		return err == nil && result.Status != core.HistoryDown
	}, log, reg.Scheduler())

	lifecycleMgr := lifecycle.New(monitors, sites, sched, log)
	mutationMgr := mutation.New(engine, sites, monitors, cache, sched, internalBus, log)
	orch := orchestrator.New(internalBus, publicBus, cache, sites, monitors, settings, chk, log)

	registry := ipc.NewRegistry(reg.IPC(), log)
	bridge := ipc.NewWebSocketBridge(log, reg.IPC())

	app := &App{
		cfg: cfg, logger: log,
		engine: engine, sites: sites, monitors: monitors, history: history, settings: settings,
		cache: cache, internalBus: internalBus, publicBus: publicBus,
		coordinator: coord, scheduler: sched, checker: chk, lifecycle: lifecycleMgr,
		mutation: mutationMgr, orchestrator: orch, registry: registry, bridge: bridge,
	}

	if err := ipc.RegisterDefaultHandlers(registry, &ipc.Services{
		Mutation: mutationMgr, Lifecycle: lifecycleMgr, Orchestrator: orch, Engine: engine, BackupDir: ".",
	}); err != nil {
		return nil, err
	}

	return app, nil
}

// Init starts every background subsystem: the two event buses, the
// orchestrator's relay loop, the broadcast bridge, the scheduler, and
// every currently-monitoring monitor's schedule entry.
func (a *App) Init(ctx context.Context) error {
	a.internalBus.Start(ctx)
	a.publicBus.Start(ctx)
	a.orchestrator.Start(ctx)

	go a.bridge.Run(ctx)
	ipc.SubscribeBus(ctx, a.publicBus, a.bridge)

	sites, err := a.sites.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, site := range sites {
		mons, err := a.monitors.FindAll(ctx, site.Identifier)
		if err != nil {
			return err
		}
		for _, mon := range mons {
			if mon.Monitoring {
				a.scheduler.Add(mon.ID, mon.CheckInterval)
			}
		}
	}

	go a.scheduler.Run(ctx)

	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		a.metricsServer = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	a.ipcServer = &http.Server{Addr: a.cfg.IPC.ListenAddr, Handler: newIPCRouter(a.registry, a.bridge)}
	go func() {
		if err := a.ipcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("ipc server failed", "error", err)
		}
	}()

	a.logger.Info("uptimed started", "storage", a.cfg.Storage.Path, "ipc_addr", a.cfg.IPC.ListenAddr)
	return nil
}

// Shutdown stops every subsystem in reverse dependency order, bounded by
// ctx's deadline.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("uptimed shutting down")

	a.coordinator.CancelAll()
	a.scheduler.Stop()

	if a.ipcServer != nil {
		_ = a.ipcServer.Shutdown(ctx)
	}
	if a.metricsServer != nil {
		_ = a.metricsServer.Shutdown(ctx)
	}

	a.orchestrator.Stop()
	_ = a.publicBus.Stop(ctx)
	_ = a.internalBus.Stop(ctx)

	return a.engine.Close()
}

// waitShutdownTimeout bounds how long graceful shutdown may take before
// the process gives up and exits anyway.
const waitShutdownTimeout = 30 * time.Second
