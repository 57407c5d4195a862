// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/paddock/infringement"
	"github.com/blinklabs-io/paddock/session"
	"github.com/blinklabs-io/paddock/ws"
)

type ApiConfig struct {
	ListenAddress string
	CorsOrigins   []string
	Logger        *slog.Logger
	Registry      *session.Registry
	Service       *infringement.Service
	Bridge        *ws.Bridge
}

// Api is the REST and live-channel server for race officials' clients.
type Api struct {
	config     ApiConfig
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(cfg ApiConfig) *Api {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	return &Api{
		config: cfg,
		logger: logger,
	}
}

// Start starts the HTTP server in a background goroutine.
func (a *Api) Start(
	ctx context.Context,
) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := a.routes()

	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           a.corsMiddleware(mux),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	// Start the server with deterministic error detection
	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

func (a *Api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /categories", a.handleCategories)
	mux.HandleFunc(
		"GET /infringements/{$}",
		a.handleListInfringements,
	)
	mux.HandleFunc(
		"POST /infringements/{$}",
		a.handleCreateInfringement,
	)
	mux.HandleFunc(
		"GET /infringements/pending",
		a.handleListPending,
	)
	mux.HandleFunc(
		"PUT /infringements/{id}",
		a.handleUpdateInfringement,
	)
	mux.HandleFunc(
		"DELETE /infringements/{id}",
		a.handleDeleteInfringement,
	)
	mux.HandleFunc(
		"GET /infringements/{id}/history",
		a.handleInfringementHistory,
	)
	mux.HandleFunc(
		"POST /infringements/{id}/apply-penalty",
		a.handleApplyPenalty,
	)
	mux.HandleFunc(
		"GET /sessions/{$}",
		a.handleListSessions,
	)
	mux.HandleFunc(
		"POST /sessions/{$}",
		a.handleCreateSession,
	)
	mux.HandleFunc(
		"POST /sessions/load",
		a.handleLoadSession,
	)
	mux.HandleFunc(
		"POST /sessions/close",
		a.handleCloseSession,
	)
	mux.HandleFunc(
		"DELETE /sessions/{name}",
		a.handleDeleteSession,
	)
	mux.HandleFunc(
		"GET /sessions/export",
		a.handleExportSession,
	)
	if a.config.Bridge != nil {
		mux.HandleFunc("GET /ws", a.config.Bridge.Handler)
	}
	return mux
}

// Stop gracefully shuts down the HTTP server.
func (a *Api) Stop(
	ctx context.Context,
) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug(
			"shutting down API server",
		)
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer starts the HTTP server with deterministic error detection.
// It binds the listening socket first so port conflicts are detected
// immediately, then serves in a background goroutine.
func (a *Api) startServer(
	server *http.Server,
) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}

// corsMiddleware applies the configured allowed origins. An empty list or a
// bare "*" entry allows any origin.
func (a *Api) corsMiddleware(next http.Handler) http.Handler {
	origins := a.config.CorsOrigins
	allowAny := len(origins) == 0 || slices.Contains(origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAny {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if slices.Contains(origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().
				Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().
				Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
