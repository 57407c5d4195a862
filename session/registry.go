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

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/event"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the named session does not exist
	ErrNotFound = errors.New("session not found")

	// ErrSessionExists is returned when creating a session whose name is
	// already taken
	ErrSessionExists = errors.New("session already exists")

	// ErrActiveSessionExists is returned when creating a session while
	// another session is still active
	ErrActiveSessionExists = errors.New("another session is active")

	// ErrInvalidName is returned when the session name is empty
	ErrInvalidName = errors.New("session name required")
)

type RegistryConfig struct {
	Database *database.Database
	EventBus *event.EventBus
	Logger   *slog.Logger
}

// Registry is the single source of truth for session lifecycle. It enforces
// the system-wide invariant that at most one session is active, inside one
// control-store transaction per mutation, and emits a lifecycle event on the
// bus after each successful mutation.
type Registry struct {
	db       *database.Database
	eventBus *event.EventBus
	logger   *slog.Logger
}

// NewRegistry builds a Registry and restores the active session recorded in
// the control store, if any. A failed restore logs a warning and leaves the
// system with no attached session store rather than failing startup.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r := &Registry{
		db:       cfg.Database,
		eventBus: cfg.EventBus,
		logger:   logger.With("component", "session"),
	}
	var active models.SessionInfo
	result := r.db.Control().
		Where("status = ?", models.SessionStatusActive).
		First(&active)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf(
				"failed to query active session: %w",
				result.Error,
			)
		}
		return r, nil
	}
	if err := r.db.AttachSessionStore(active.Name); err != nil {
		r.logger.Warn(
			"could not restore active session",
			"session", active.Name,
			"error", err,
		)
		return r, nil
	}
	r.logger.Info(
		"restored active session",
		"session", active.Name,
	)
	return r, nil
}

// List returns all known sessions, most recently started first
func (r *Registry) List(ctx context.Context) ([]models.SessionInfo, error) {
	var sessions []models.SessionInfo
	result := r.db.Control().WithContext(ctx).
		Order("started_at DESC, id DESC").
		Find(&sessions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", result.Error)
	}
	return sessions, nil
}

// Active returns the currently active session, or ErrNotFound when none is
func (r *Registry) Active(ctx context.Context) (*models.SessionInfo, error) {
	var active models.SessionInfo
	result := r.db.Control().WithContext(ctx).
		Where("status = ?", models.SessionStatusActive).
		First(&active)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query active session: %w", result.Error)
	}
	return &active, nil
}

// Get returns the named session, or ErrNotFound
func (r *Registry) Get(
	ctx context.Context,
	name string,
) (*models.SessionInfo, error) {
	var info models.SessionInfo
	result := r.db.Control().WithContext(ctx).
		Where("name = ?", name).
		First(&info)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query session: %w", result.Error)
	}
	return &info, nil
}

// Create provisions an empty record store for a new session and marks it
// active. Fails with ErrSessionExists on a duplicate name and with
// ErrActiveSessionExists when another session is still active.
func (r *Registry) Create(
	ctx context.Context,
	name string,
) (*models.SessionInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	info := models.SessionInfo{
		Name:      name,
		Status:    models.SessionStatusActive,
		StartedAt: time.Now(),
	}
	err := r.db.Control().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if result := tx.Model(&models.SessionInfo{}).
			Where("name = ?", name).
			Count(&count); result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return ErrSessionExists
		}
		if result := tx.Model(&models.SessionInfo{}).
			Where("status = ?", models.SessionStatusActive).
			Count(&count); result.Error != nil {
			return result.Error
		}
		if count > 0 {
			return ErrActiveSessionExists
		}
		if result := tx.Create(&info); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionExists) ||
			errors.Is(err, ErrActiveSessionExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := r.db.CreateSessionStore(name); err != nil {
		// Roll back the control row so a later create can retry
		r.db.Control().
			Delete(&models.SessionInfo{}, info.ID)
		if errors.Is(err, database.ErrSessionStoreExists) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	r.logger.Info(
		"session started",
		"session", name,
	)
	r.publish(event.SessionStartedEventType, info)
	return &info, nil
}

// Load marks the named session active, deactivating any previously active
// session in the same transaction, and attaches its record store. Fails with
// ErrNotFound when the session is unknown.
func (r *Registry) Load(
	ctx context.Context,
	name string,
) (*models.SessionInfo, error) {
	var info models.SessionInfo
	err := r.db.Control().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("name = ?", name).
			First(&info); result.Error != nil {
			return result.Error
		}
		if result := tx.Model(&models.SessionInfo{}).
			Where("status = ?", models.SessionStatusActive).
			Update("status", models.SessionStatusClosed); result.Error != nil {
			return result.Error
		}
		info.Status = models.SessionStatusActive
		if result := tx.Save(&info); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := r.db.AttachSessionStore(name); err != nil {
		if errors.Is(err, database.ErrSessionStoreNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to attach session store: %w", err)
	}
	r.logger.Info(
		"session loaded",
		"session", name,
	)
	r.publish(event.SessionLoadedEventType, info)
	return &info, nil
}

// Close marks the named session closed; its records become read-only until
// it is loaded again. Fails with ErrNotFound when the session is unknown.
func (r *Registry) Close(ctx context.Context, name string) error {
	var info models.SessionInfo
	wasActive := false
	err := r.db.Control().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("name = ?", name).
			First(&info); result.Error != nil {
			return result.Error
		}
		wasActive = info.Status == models.SessionStatusActive
		info.Status = models.SessionStatusClosed
		if result := tx.Save(&info); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to close session: %w", err)
	}
	if wasActive {
		r.db.DetachSessionStore()
	}
	r.logger.Info(
		"session closed",
		"session", name,
	)
	r.publish(event.SessionClosedEventType, info)
	return nil
}

// Delete removes the named session and its record store irreversibly.
// Fails with ErrNotFound when the session is unknown.
func (r *Registry) Delete(ctx context.Context, name string) error {
	var info models.SessionInfo
	err := r.db.Control().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("name = ?", name).
			First(&info); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&models.SessionInfo{}, info.ID); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := r.db.DropSessionStore(name); err != nil &&
		!errors.Is(err, database.ErrSessionStoreNotFound) {
		return fmt.Errorf("failed to drop session store: %w", err)
	}
	info.Status = ""
	r.logger.Info(
		"session deleted",
		"session", name,
	)
	r.publish(event.SessionDeletedEventType, info)
	return nil
}

func (r *Registry) publish(
	eventType event.EventType,
	info models.SessionInfo,
) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.Publish(
		eventType,
		event.NewEvent(
			eventType,
			event.SessionEvent{
				Name:   info.Name,
				Status: info.Status,
			},
		),
	)
}
