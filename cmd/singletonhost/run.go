package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l1jgo/worldsingleton/internal/asyncload"
	"github.com/l1jgo/worldsingleton/internal/config"
	"github.com/l1jgo/worldsingleton/internal/core/event"
	coresys "github.com/l1jgo/worldsingleton/internal/core/system"
	"github.com/l1jgo/worldsingleton/internal/host"
	"github.com/l1jgo/worldsingleton/internal/scripting"
	"github.com/l1jgo/worldsingleton/internal/singleton"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	ticks     int
	worldName string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the host loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, opts)
		},
	}
	cmd.Flags().IntVar(&opts.ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.worldName, "world", "Entry", "name of the world to open")
	return cmd
}

// app is everything one host run owns.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	engine  *host.Engine
	sys     *singleton.System
	loader  *asyncload.Loader
	scripts *scripting.Engine
	watcher *scripting.Watcher
	runner  *coresys.Runner
	reg     *prometheus.Registry
}

func run(ctx context.Context, cfg *config.Config, opts *runOptions) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Metrics.Enabled {
		srv := a.serveMetrics()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	gi := a.engine.CreateGameInstance("GameInstance")
	w := a.engine.CreateWorld(host.WorldOptions{
		Name:         opts.worldName,
		Type:         host.WorldGame,
		NetMode:      host.NetStandalone,
		GameInstance: gi,
	})
	log.Info("host ready",
		zap.String("world", w.Name()),
		zap.String("session", w.SessionID().String()),
		zap.Duration("tick", cfg.Host.TickRate),
		zap.Int("classes", a.engine.Classes().Len()),
	)

	n := a.loop(ctx, opts.ticks)

	a.engine.DestroyWorld(w)
	a.engine.DestroyGameInstance(gi)
	a.runner.Tick(cfg.Host.TickRate)
	log.Info("host stopped",
		zap.Int("ticks", n),
		zap.Int("violations", a.sys.Reporter().Violations()),
		zap.Int("registry_entries", a.sys.Registry().Len()),
		zap.Int("live_objects", a.engine.LiveObjects()),
		zap.Int("undelivered_events", a.engine.Bus().Pending()),
	)
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	if err := singleton.SetCreateMethod(singleton.CreateMethod(cfg.Singleton.CreateMethod)); err != nil {
		return nil, err
	}
	classes, err := loadClasses(cfg.Host.ClassesFile)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	engine := host.NewEngine(host.Options{
		Classes:    classes,
		Editor:     cfg.Host.Editor,
		Headless:   cfg.Host.Headless,
		Commandlet: cfg.Host.Commandlet,
		Log:        log.Named("host"),
	})

	metrics := singleton.NewMetrics(reg)
	var widgets singleton.WidgetBuilder
	if !cfg.Host.Headless {
		widgets = engine
	}
	sys := singleton.NewSystem(singleton.Options{
		Host:     engine,
		Resolver: host.NewResolver(engine, log.Named("resolver")),
		Widgets:  widgets,
		Reporter: singleton.NewReporter(log.Named("singleton"), metrics, cfg.Singleton.HaltOnViolation),
		Metrics:  metrics,
		Log:      log.Named("singleton"),
	})

	loader := asyncload.NewLoader(asyncload.Options{
		Classes:   classes,
		Creator:   sys,
		Workers:   cfg.AsyncLoad.Workers,
		QueueSize: cfg.AsyncLoad.QueueSize,
		Metrics:   asyncload.NewMetrics(reg),
		Log:       log.Named("asyncload"),
	})
	loader.Start(ctx)

	scripts, err := scripting.NewEngine(cfg.Scripting.ScriptsDir, engine, sys, log.Named("lua"))
	if err != nil {
		loader.Close()
		return nil, fmt.Errorf("scripting: %w", err)
	}
	event.Subscribe(engine.Bus(), func(ev event.WorldInitialized) {
		scripts.WorldInitialized(engine.WorldByID(ev.World))
	})

	a := &app{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		sys:     sys,
		loader:  loader,
		scripts: scripts,
		runner:  coresys.NewRunner(reg),
		reg:     reg,
	}

	if cfg.Scripting.HotReload {
		w, err := scripting.NewWatcher(cfg.Scripting.ScriptsDir, log.Named("lua"))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("script watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			a.close()
			return nil, fmt.Errorf("script watcher: %w", err)
		}
		a.watcher = w
		a.runner.Register(scripting.NewReloadSystem(scripts, w, log.Named("lua")))
	}

	a.runner.Register(asyncload.NewDrainSystem(loader))
	a.runner.Register(host.NewDispatchSystem(engine))
	a.runner.Register(scripting.NewTickSystem(scripts))
	a.runner.Register(host.NewCleanupSystem(engine, cfg.Host.GCInterval))
	return a, nil
}

// loop ticks the runner until ctx ends or maxTicks is reached (0 for no
// limit) and returns the number of ticks run.
func (a *app) loop(ctx context.Context, maxTicks int) int {
	ticker := time.NewTicker(a.cfg.Host.TickRate)
	defer ticker.Stop()

	n := 0
	for maxTicks == 0 || n < maxTicks {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown requested")
			return n
		case <-ticker.C:
			a.runner.Tick(a.cfg.Host.TickRate)
			n++
		}
	}
	return n
}

func (a *app) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.BindAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.log.Info("metrics listening", zap.String("addr", srv.Addr))
	return srv
}

func (a *app) close() {
	if a.watcher != nil {
		_ = a.watcher.Stop()
	}
	a.loader.Close()
	a.scripts.Close()
}
