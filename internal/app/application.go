package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/reyanshafi/mini-social-network/internal/api"
	"github.com/reyanshafi/mini-social-network/internal/config"
	"github.com/reyanshafi/mini-social-network/internal/database"
	"github.com/reyanshafi/mini-social-network/internal/receipts"
	"github.com/reyanshafi/mini-social-network/internal/relay"
	"github.com/reyanshafi/mini-social-network/internal/typing"
	"github.com/reyanshafi/mini-social-network/internal/websocket"
	dbconfig "github.com/reyanshafi/mini-social-network/pkg/database"
)

// Application wires the realtime core together. Initialization follows
// dependency order: store, registry, then the three dispatch components,
// then the connection handler and the HTTP surface on top.
type Application struct {
	config     *config.Config
	store      *database.Store
	registry   *websocket.Registry
	relay      *relay.Relay
	typing     *typing.Broadcaster
	receipts   *receipts.Synchronizer
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewApplication creates an application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := database.NewStore(dbconfig.DefaultConfig(cfg.Database.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize message store: %w", err)
	}

	registry := websocket.NewRegistry()

	messageRelay := relay.NewRelay(registry, store)
	typingBroadcaster := typing.NewBroadcaster(registry)
	receiptSync := receipts.NewSynchronizer(registry, store)

	wsHandler := websocket.NewHandler(registry, messageRelay, typingBroadcaster, receiptSync, websocket.Config{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
	})

	apiServer := api.NewServer(store, receiptSync, registry)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		registry:   registry,
		relay:      messageRelay,
		typing:     typingBroadcaster,
		receipts:   receiptSync,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
		mux:        mux,
	}, nil
}

// Start begins serving and returns once the listener is up.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting chat server on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Chat server started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the application down: HTTP first so no new connections arrive,
// then the store after pending writes drain. Registered connections close as
// their read pumps observe the server shutdown.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chat server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.store.Close(); err != nil {
		log.Printf("Message store shutdown error: %v", err)
	}

	log.Printf("Chat server shutdown complete")
	return nil
}

// Handler exposes the root mux so tests can serve the full application from
// an httptest server without binding the configured port.
func (app *Application) Handler() http.Handler {
	return app.mux
}

// Addr returns the configured listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
