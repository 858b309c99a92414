// Package app wires the relay's components together and owns their
// start/stop ordering.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ruhul03/crisis-connect/internal/api"
	"github.com/ruhul03/crisis-connect/internal/bridge"
	"github.com/ruhul03/crisis-connect/internal/config"
	"github.com/ruhul03/crisis-connect/internal/database"
	"github.com/ruhul03/crisis-connect/internal/history"
	"github.com/ruhul03/crisis-connect/internal/presence"
	"github.com/ruhul03/crisis-connect/internal/relay"
)

// Application coordinates all system components.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	histLog    *history.Log
	board      *presence.Board
	hub        *bridge.Hub
	registry   *relay.Registry
	relay      *relay.Service
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication builds the component graph in dependency order:
// database -> history -> board/hub -> registry -> relay -> API -> HTTP.
// The presence board and the bridge hub reference each other, so the hub is
// constructed against a board that receives its publisher immediately after.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dbManager, err := database.NewManager(cfg.Database.Path, cfg.Database.MaxConnections, cfg.Database.ConnLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	histLog := history.NewLog(cfg.History.Capacity, dbManager)
	histLog.Load(context.Background())

	var board *presence.Board
	hub := bridge.NewHub(nil)
	board = presence.NewBoard(hub)
	hub.SetBoard(board)

	registry := relay.NewRegistry()
	relayService := relay.NewService(cfg.SocketAddr(), registry, board, histLog, hub)

	apiServer := api.NewServer(relayService, board, histLog)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		histLog:    histLog,
		board:      board,
		hub:        hub,
		registry:   registry,
		relay:      relayService,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start brings the relay up: device listener first so field traffic flows
// even if the web side fails, then the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	if err := app.relay.Start(); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.relay.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("CrisisConnect ready: devices on %s, web on %s", app.relay.Addr(), app.httpServer.Addr)
		return nil
	case <-ctx.Done():
		_ = app.relay.Stop()
		return ctx.Err()
	}
}

// Stop shuts everything down in reverse order: HTTP -> relay -> database.
func (app *Application) Stop(ctx context.Context) error {
	log.Println("Shutting down CrisisConnect")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.relay.Stop(); err != nil {
		log.Printf("Relay shutdown error: %v", err)
	}
	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Println("CrisisConnect shutdown complete")
	return nil
}

// Relay exposes the relay service, used by tests and the signal handler.
func (app *Application) Relay() *relay.Service {
	return app.relay
}
