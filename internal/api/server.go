// Package api is the HTTP surface of the bridge: webhook ingestion, the
// operator dashboard endpoints, and the live journal stream over WebSocket.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"hlbridge/internal/config"
)

// Server runs the HTTP/WebSocket API.
type Server struct {
	handlers *Handlers
	hub      *Hub
	server   *http.Server
	logger   *slog.Logger
}

func NewServer(cfg *config.Config, handlers *Handlers, hub *Hub, logger *slog.Logger) *Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      Routes(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		handlers: handlers,
		hub:      hub,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Routes wires every endpoint under /api and wraps the mux with a
// permissive CORS layer; webhook sources and the dashboard live on other
// origins.
func Routes(handlers *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/webhook/tradingview", handlers.HandleWebhook)
	mux.HandleFunc("POST /api/webhook/re-execute", handlers.HandleReExecute)

	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.HandleFunc("GET /api/logs", handlers.HandleLogs)
	mux.HandleFunc("DELETE /api/logs", handlers.HandleClearLogs)
	mux.HandleFunc("GET /api/webhooks", handlers.HandleWebhooks)
	mux.HandleFunc("GET /api/responses", handlers.HandleResponses)

	mux.HandleFunc("GET /api/strategies", handlers.HandleStrategies)
	mux.HandleFunc("GET /api/strategies/ids", handlers.HandleStrategyIDs)
	mux.HandleFunc("GET /api/strategies/{id}", handlers.HandleStrategy)
	mux.HandleFunc("POST /api/strategies/{id}/toggle", handlers.HandleToggleStrategy)

	mux.HandleFunc("GET /api/environment", handlers.HandleGetEnvironment)
	mux.HandleFunc("POST /api/environment", handlers.HandleSwitchEnvironment)
	mux.HandleFunc("POST /api/restart", handlers.HandleRestart)
	mux.HandleFunc("POST /api/reset-uptime-stats", handlers.HandleResetUptimeStats)
	mux.HandleFunc("GET /api/refresh-balance", handlers.HandleRefreshBalance)

	mux.HandleFunc("GET /api/orders/history", handlers.HandleOrderHistory)
	mux.HandleFunc("GET /api/orders/open", handlers.HandleOpenOrders)

	mux.HandleFunc("GET /api/ws", handlers.HandleWebSocket)

	return cors.AllowAll().Handler(mux)
}

// Start runs the hub and blocks serving HTTP until Stop.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
