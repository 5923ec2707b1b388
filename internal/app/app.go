// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app is the composition root: it builds the store, the canvas/
// history/undo/collaboration managers, the media pipeline, and the HTTP
// router, then owns their start/shutdown lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotoshake/canvasd/internal/api"
	"github.com/rotoshake/canvasd/internal/canvas"
	"github.com/rotoshake/canvasd/internal/canvasevents"
	"github.com/rotoshake/canvasd/internal/collab"
	"github.com/rotoshake/canvasd/internal/config"
	"github.com/rotoshake/canvasd/internal/history"
	"github.com/rotoshake/canvasd/internal/media"
	"github.com/rotoshake/canvasd/internal/store"
	"github.com/rotoshake/canvasd/internal/undo"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	db          *store.DB
	eventBus    canvasevents.EventBus
	dispatcher  *collab.Dispatcher
	storage     *media.Storage
	videos      *media.VideoQueue
	cleaner     *media.Cleaner
	apiServer   *api.Server
	configWatch *config.Watcher

	cleanupCancel context.CancelFunc

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New creates a new App instance, loading configuration but not yet
// touching the filesystem/network.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	var cfg *config.Config
	if opts.ConfigPath != "" {
		loader := config.NewLoader()
		loaded, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	app.eventBus = canvasevents.NewMemoryEventBus(canvasevents.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize wires the persistence facade, domain managers, media
// pipeline, and HTTP router.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	app.db = db

	storage, err := media.NewStorage(".", cfg.Media.UploadsDir, cfg.Media.ThumbnailsDir, cfg.Media.TranscodesDir)
	if err != nil {
		return fmt.Errorf("init media storage: %w", err)
	}
	app.storage = storage

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := undo.NewManager(cm, hm, db)
	app.dispatcher = collab.NewDispatcher(cm, um, hm, db)
	if _, err := app.dispatcher.SubscribeMedia(app.eventBus); err != nil {
		return fmt.Errorf("subscribe media events: %w", err)
	}

	thumbs := media.NewThumbnailer(storage, cfg.Media.CwebpPath, cfg.Media.ThumbnailSizes, cfg.Media.ThumbnailBatch, cfg.Media.WebPQuality)
	app.videos = media.NewVideoQueue(db, storage, app.eventBus, cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.VideoMaxWidth, cfg.Media.VideoMaxHeight)

	uploadHandler := media.NewUploadHandler(media.UploadDeps{
		DB: db, Storage: storage, Thumbs: thumbs, Videos: app.videos,
		Bus: app.eventBus, MaxBytes: cfg.Media.MaxUploadBytes, FFprobePath: cfg.Media.FFprobePath,
	})
	serveHandler := media.NewServeHandler(db, storage)
	generateHandler := media.NewGenerateHandler(db, thumbs)

	app.cleaner = media.NewCleaner(db, storage, cfg.Database.Path, app.eventBus, media.CleanupConfig{
		Interval:          config.ParseDuration(cfg.Cleanup.Interval, 6*time.Hour),
		InitialDelay:      config.ParseDuration(cfg.Cleanup.InitialDelay, 30*time.Minute),
		RecentVideoWindow: config.ParseDuration(cfg.Cleanup.RecentVideoWindow, time.Hour),
		DangerThreshold:   cfg.Cleanup.DangerThreshold,
	})
	maintenanceHandler := media.NewMaintenanceHandler(db, app.cleaner, storage, cfg.Database.Path)

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: cfg.Server.TLSCert,
		TLSKey:  cfg.Server.TLSKey,
	}, api.Dependencies{
		DB:          db,
		Dispatcher:  app.dispatcher,
		Upload:      uploadHandler,
		Serve:       serveHandler,
		Generate:    generateHandler,
		Maintenance: maintenanceHandler,
		CORSOrigins: cfg.CORS.Origins,
		Version:     app.version,
	})

	if app.configPath != "" {
		watcher, err := config.Watch(ctx, config.NewLoader(), app.configPath, app.onConfigReload)
		if err != nil {
			log.Printf("config: hot-reload disabled, failed to watch %s: %v", app.configPath, err)
		} else {
			app.configWatch = watcher
		}
	}

	return nil
}

// onConfigReload applies the subset of config that is safe to swap out from
// under a running server: cleanup tunables only. Server address, TLS, and
// CORS origins all require a router/listener rebuild and are not
// hot-reloadable; pick those up on the next restart instead.
func (app *App) onConfigReload(cfg *config.Config) {
	app.mu.Lock()
	app.config = cfg
	app.mu.Unlock()

	app.cleaner.UpdateConfig(media.CleanupConfig{
		Interval:          config.ParseDuration(cfg.Cleanup.Interval, 6*time.Hour),
		InitialDelay:      config.ParseDuration(cfg.Cleanup.InitialDelay, 30*time.Minute),
		RecentVideoWindow: config.ParseDuration(cfg.Cleanup.RecentVideoWindow, time.Hour),
		DangerThreshold:   cfg.Cleanup.DangerThreshold,
	})
	log.Println("config: reloaded, cleanup tunables updated")
}

// Start launches background work: the cleanup sweep and the HTTP server.
func (app *App) Start(ctx context.Context) error {
	cleanupCtx, cancel := context.WithCancel(context.Background())
	app.cleanupCancel = cancel
	app.cleaner.Run(cleanupCtx)

	go func() {
		log.Printf("canvasd listening on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// Run initializes, starts, and blocks until a shutdown signal or context
// cancellation, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("context cancelled, shutting down...")
	case <-app.done:
		log.Printf("shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down API server: %v", err)
		}
	}
	if app.cleanupCancel != nil {
		app.cleanupCancel()
	}
	if app.configWatch != nil {
		if err := app.configWatch.Close(); err != nil {
			log.Printf("error closing config watcher: %v", err)
		}
	}
	if app.eventBus != nil {
		if err := app.eventBus.Close(); err != nil {
			log.Printf("error closing event bus: %v", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			log.Printf("error closing store: %v", err)
		}
	}

	log.Println("shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
