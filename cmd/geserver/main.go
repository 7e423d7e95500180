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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/geserver/server/internal/api"
	"github.com/geserver/server/internal/config"
	"github.com/geserver/server/internal/entity"
	"github.com/geserver/server/internal/render"
	"github.com/geserver/server/internal/runtime"
	"github.com/geserver/server/internal/scene"
	"github.com/geserver/server/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath, explicit := "config/server.toml", false
	if p := os.Getenv("GESERVER_CONFIG"); p != "" {
		cfgPath, explicit = p, true
	}
	cfg, err := config.Resolve(cfgPath, explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Build the world: store, managers, dispatch runtime
	store := entity.NewStore()
	renderMgr := render.NewManager(render.FileLoader{}, log)
	scriptMgr := scripting.NewManager(renderMgr, log)
	rt := runtime.New(store, renderMgr, scriptMgr, log)

	// 4. Optional scene preload
	if cfg.Assets.SceneFile != "" {
		entries, err := scene.Load(cfg.Assets.SceneFile)
		if err != nil {
			return fmt.Errorf("scene: %w", err)
		}
		n, err := scene.Apply(rt, entries, log)
		if err != nil {
			return fmt.Errorf("scene preload: %w", err)
		}
		printStat("entities preloaded", n)
	}

	// 5. HTTP transport + scheduler under one lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:         cfg.Server.BindAddress,
		Handler:      api.New(rt, log).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	sched := runtime.NewScheduler(rt, cfg.Scheduler.TickRate, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printReady(fmt.Sprintf("listening on %s", cfg.Server.BindAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		printReady(fmt.Sprintf("scheduler running (tick: %s)", cfg.Scheduler.TickRate))
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m           geserver  v0.1.0                \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      entity / resource / script runtime   \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", name)
}

func printStat(label string, count int) {
	fmt.Printf("  %s: \033[32m%d\033[0m\n", label, count)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
