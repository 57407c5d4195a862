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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package paddock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/paddock/api"
	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/event"
	"github.com/blinklabs-io/paddock/infringement"
	"github.com/blinklabs-io/paddock/session"
	"github.com/blinklabs-io/paddock/ws"
)

// Paddock is the top-level race control service: the session registry,
// infringement service, event bus, WebSocket bridge, and REST API wired
// together over a shared store.
type Paddock struct {
	eventBus      *event.EventBus
	db            *database.Database
	registry      *session.Registry
	service       *infringement.Service
	bridge        *ws.Bridge
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Paddock, error) {
	if cfg.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Paddock{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	return p, nil
}

// Run starts all components and blocks until Stop is called or the provided
// context is cancelled.
func (p *Paddock) Run(ctx context.Context) error {
	// Configure tracing
	if p.config.tracing {
		if err := p.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir: p.config.dataDir,
		Logger:  p.config.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	p.db = db
	// Load session registry (restores any active session)
	registry, err := session.NewRegistry(session.RegistryConfig{
		Database: p.db,
		EventBus: p.eventBus,
		Logger:   p.config.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load session registry: %w", err)
	}
	p.registry = registry
	// Initialize infringement service
	p.service = infringement.NewService(infringement.ServiceConfig{
		Database:      p.db,
		EventBus:      p.eventBus,
		Logger:        p.config.logger,
		WarningExpiry: p.config.warningExpiry,
	})
	// Start WebSocket bridge
	p.bridge = ws.NewBridge(ws.BridgeConfig{
		EventBus: p.eventBus,
		Logger:   p.config.logger,
	})
	p.bridge.Start()
	// Start API listener
	p.api = api.New(api.ApiConfig{
		ListenAddress: p.config.listenAddress,
		CorsOrigins:   p.config.corsOrigins,
		Logger:        p.config.logger,
		Registry:      p.registry,
		Service:       p.service,
		Bridge:        p.bridge,
	})
	if err := p.api.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		if err := p.Stop(); err != nil {
			return err
		}
	case <-p.done:
	}
	return nil
}

func (p *Paddock) Stop() error {
	var err error
	p.shutdownOnce.Do(func() {
		err = p.shutdown()
	})
	return err
}

// EventBus returns the event bus, mostly useful for wiring additional
// subscribers in tests or embedding applications
func (p *Paddock) EventBus() *event.EventBus {
	return p.eventBus
}

func (p *Paddock) shutdown() error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		p.config.shutdownTimeout,
	)
	defer cancel()

	var err error

	p.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new requests
	p.config.logger.Debug("shutdown phase 1: stopping listeners")

	if p.api != nil {
		if stopErr := p.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Disconnect live clients and stop event delivery
	p.config.logger.Debug("shutdown phase 2: draining live channel")

	if p.bridge != nil {
		p.bridge.Stop()
	}
	if p.eventBus != nil {
		p.eventBus.Stop()
	}

	// Phase 3: Close stores
	p.config.logger.Debug("shutdown phase 3: closing stores")

	if p.db != nil {
		if closeErr := p.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	p.config.logger.Debug("shutdown phase 4: cleanup resources")

	for _, fn := range p.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	p.shutdownFuncs = nil

	p.config.logger.Debug("graceful shutdown complete")
	close(p.done)
	return err
}
