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

package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/event"
	"github.com/blinklabs-io/paddock/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %s", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %s", err)
		}
	})
	return db
}

func newTestRegistry(
	t *testing.T,
	db *database.Database,
	eventBus *event.EventBus,
) *session.Registry {
	t.Helper()
	registry, err := session.NewRegistry(session.RegistryConfig{
		Database: db,
		EventBus: eventBus,
	})
	if err != nil {
		t.Fatalf("failed to create registry: %s", err)
	}
	return registry
}

func TestRegistryCreateAndActive(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	info, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)
	require.Equal(t, "Heat 1", info.Name)
	require.Equal(t, models.SessionStatusActive, info.Status)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Heat 1", active.Name)
}

func TestRegistryCreateInvalidName(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)

	_, err := registry.Create(t.Context(), "   ")
	require.ErrorIs(t, err, session.ErrInvalidName)
}

func TestRegistryCreateConflicts(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)

	// A second create while a session is active must be refused
	_, err = registry.Create(ctx, "Heat 2")
	require.ErrorIs(t, err, session.ErrActiveSessionExists)

	// Closing the active session frees the slot, but the name stays taken
	require.NoError(t, registry.Close(ctx, "Heat 1"))
	_, err = registry.Create(ctx, "Heat 1")
	require.ErrorIs(t, err, session.ErrSessionExists)
}

func TestRegistryLoadSwitchesActive(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)
	require.NoError(t, registry.Close(ctx, "Heat 1"))
	_, err = registry.Create(ctx, "Heat 2")
	require.NoError(t, err)

	// Loading an older session deactivates the current one
	info, err := registry.Load(ctx, "Heat 1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusActive, info.Status)

	sessions, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	activeCount := 0
	for _, s := range sessions {
		if s.Status == models.SessionStatusActive {
			activeCount++
			assert.Equal(t, "Heat 1", s.Name)
		}
	}
	assert.Equal(t, 1, activeCount, "exactly one session may be active")
}

func TestRegistryLoadUnknown(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)

	_, err := registry.Load(t.Context(), "no-such-session")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistryCloseUnknown(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)

	err := registry.Close(t.Context(), "no-such-session")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistryCloseDetachesStore(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)
	_, _, err = db.Active()
	require.NoError(t, err)

	require.NoError(t, registry.Close(ctx, "Heat 1"))
	_, _, err = db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)
}

func TestRegistryDelete(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)
	require.NoError(t, registry.Delete(ctx, "Heat 1"))

	_, err = registry.Get(ctx, "Heat 1")
	require.ErrorIs(t, err, session.ErrNotFound)
	assert.False(t, db.SessionStoreExists("Heat 1"))

	// Deleting again reports not found
	err = registry.Delete(ctx, "Heat 1")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistryRestoreOnStartup(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)

	// A fresh registry over the same stores restores the active session
	registry2 := newTestRegistry(t, db, nil)
	active, err := registry2.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Heat 1", active.Name)
	_, name, err := db.Active()
	require.NoError(t, err)
	assert.Equal(t, "Heat 1", name)
}

func TestRegistryLifecycleEvents(t *testing.T) {
	db := newTestDatabase(t)
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	registry := newTestRegistry(t, db, eventBus)
	ctx := t.Context()

	_, startedCh := eventBus.Subscribe(event.SessionStartedEventType)
	_, closedCh := eventBus.Subscribe(event.SessionClosedEventType)

	_, err := registry.Create(ctx, "Heat 1")
	require.NoError(t, err)
	select {
	case evt := <-startedCh:
		sessEvt, ok := evt.Data.(event.SessionEvent)
		if !ok {
			t.Fatalf(
				"event data was not of expected type, got %T",
				evt.Data,
			)
		}
		assert.Equal(t, "Heat 1", sessEvt.Name)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for session started event")
	}

	require.NoError(t, registry.Close(ctx, "Heat 1"))
	select {
	case evt := <-closedCh:
		sessEvt, ok := evt.Data.(event.SessionEvent)
		if !ok {
			t.Fatalf(
				"event data was not of expected type, got %T",
				evt.Data,
			)
		}
		assert.Equal(t, models.SessionStatusClosed, sessEvt.Status)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for session closed event")
	}
}

func TestRegistryCreateRollbackOnStoreConflict(t *testing.T) {
	db := newTestDatabase(t)
	registry := newTestRegistry(t, db, nil)
	ctx := t.Context()

	// Provision a store out-of-band so registry creation hits a conflict
	require.NoError(t, db.CreateSessionStore("Heat 1"))

	_, err := registry.Create(ctx, "Heat 1")
	require.Error(t, err)
	if !errors.Is(err, session.ErrSessionExists) {
		t.Fatalf("unexpected error: %s", err)
	}

	// The control row must have been rolled back
	_, err = registry.Get(ctx, "Heat 1")
	require.ErrorIs(t, err, session.ErrNotFound)
}
