// Package main is the entry point for the berrylist calendar server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berrylist/backend/internal/api"
	"github.com/berrylist/backend/internal/auth"
	"github.com/berrylist/backend/internal/config"
	"github.com/berrylist/backend/internal/remote"
	"github.com/berrylist/backend/internal/storage"
	"github.com/berrylist/backend/internal/storage/models"
	"github.com/berrylist/backend/internal/store"
	"github.com/berrylist/backend/internal/sync"
	"github.com/berrylist/backend/internal/userdata"
	"github.com/berrylist/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for SQLite database (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Printf("Starting berrylist calendar server (version: %s)...", version)

	// Initialize database
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", cfg.DataDir, err)
	}
	db, err := storage.NewDB(cfg.DataDir + "/berrylist.db")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub for view push updates
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize repositories
	cacheRepo := storage.NewEventCacheRepository(db)
	queueRepo := storage.NewQueueRepository(db)
	settingsRepo := storage.NewSettingsRepository(db)

	// Seed the default week start once so views have a stable preference
	ctx := context.Background()
	if ws, _ := settingsRepo.Get(ctx, models.SettingWeekStart); ws == "" {
		if err := settingsRepo.Set(ctx, models.SettingWeekStart, cfg.WeekStart); err != nil {
			log.Printf("Warning: Could not seed week start setting: %v", err)
		}
	}

	// Initialize event store backed by the local cache
	eventStore := store.New(cacheRepo)
	queue := sync.NewQueue(queueRepo)
	session := auth.NewSessionProvider()

	// Remote store and connectivity: a configured remote is probed for
	// reachability; without one, the app runs local-only against an
	// in-process store that is always "online".
	var remoteStore remote.Store
	var monitor sync.ConnectivityMonitor
	if cfg.Remote.BaseURL != "" {
		remoteStore = remote.NewClient(remote.ClientConfig{
			BaseURL: cfg.Remote.BaseURL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
		})
		probe := sync.NewProbeMonitor(cfg.Remote.BaseURL+"/health", cfg.ProbeInterval)
		probe.Start()
		defer probe.Stop()
		monitor = probe
		log.Printf("Remote sync enabled against %s", cfg.Remote.BaseURL)
	} else {
		remoteStore = remote.NewMemoryStore()
		monitor = sync.NewStaticMonitor(true)
		log.Println("No remote configured, running local-only")
	}

	// Initialize sync manager
	manager := sync.NewManager(eventStore, queue, cacheRepo, remoteStore, session, monitor, settingsRepo, cfg.SyncInterval)
	manager.Start(ctx)
	defer manager.Stop()

	// Fill the event store from the cache (or remote, if a session is live)
	if _, err := manager.LoadEvents(ctx); err != nil {
		log.Printf("Warning: Could not load events: %v", err)
	}

	// Push store and sync changes out to connected views
	broadcaster := websocket.NewEventBroadcaster(hub)
	detach := broadcaster.Attach(manager)
	defer detach()

	backupSvc := userdata.NewService(eventStore, settingsRepo, queue)

	router := api.NewRouter(api.Deps{
		DB:        db,
		Hub:       hub,
		Manager:   manager,
		Session:   session,
		Settings:  settingsRepo,
		UserData:  backupSvc,
		StaticDir: cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://" + addr + "/api/health"
	if addr != "" && addr[0] == ':' {
		url = "http://localhost" + addr + "/api/health"
	}
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
