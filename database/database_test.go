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

package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{
		DataDir: dataDir,
	})
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

func TestSafeName(t *testing.T) {
	testDefs := []struct {
		name     string
		expected string
	}{
		{"Heat 1", "heat_1"},
		{"heat-1", "heat-1"},
		{"Qualifying", "qualifying"},
		{"final/round #2", "final_round__2"},
		{"under_score", "under_score"},
	}
	for _, testDef := range testDefs {
		result := database.SafeName(testDef.name)
		if result != testDef.expected {
			t.Fatalf(
				"SafeName(%q) = %q, wanted %q",
				testDef.name,
				result,
				testDef.expected,
			)
		}
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	db := newTestDatabase(t, "")

	// No store attached yet
	_, _, err := db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)

	// Create attaches the new store
	require.NoError(t, db.CreateSessionStore("Heat 1"))
	assert.True(t, db.SessionStoreExists("Heat 1"))
	store, name, err := db.Active()
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, "Heat 1", name)

	// Duplicate create is refused
	err = db.CreateSessionStore("Heat 1")
	require.ErrorIs(t, err, database.ErrSessionStoreExists)

	// Detach leaves the store intact
	db.DetachSessionStore()
	_, _, err = db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)
	assert.True(t, db.SessionStoreExists("Heat 1"))

	// Attach restores it
	require.NoError(t, db.AttachSessionStore("Heat 1"))
	_, _, err = db.Active()
	require.NoError(t, err)

	// Drop removes it entirely
	require.NoError(t, db.DropSessionStore("Heat 1"))
	assert.False(t, db.SessionStoreExists("Heat 1"))
	_, _, err = db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)
	err = db.AttachSessionStore("Heat 1")
	require.ErrorIs(t, err, database.ErrSessionStoreNotFound)
}

func TestActiveReportsOriginalName(t *testing.T) {
	db := newTestDatabase(t, "")

	// The sanitized name is only the store key; Active reports the
	// session's real name so events and logs carry it
	require.NoError(t, db.CreateSessionStore("final/round #2"))
	store, name, err := db.Active()
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, "final/round #2", name)

	// Dropping the active store detaches it via the sanitized key
	require.NoError(t, db.DropSessionStore("final/round #2"))
	_, _, err = db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)
}

func TestSessionStoreDataIsolation(t *testing.T) {
	db := newTestDatabase(t, "")

	require.NoError(t, db.CreateSessionStore("Heat 1"))
	store, _, err := db.Active()
	require.NoError(t, err)
	result := store.Create(&models.Infringement{
		KartNumber:  42,
		Observer:    "Marshal",
		Description: "Contact",
		PenaltyDue:  "Yes",
	})
	require.NoError(t, result.Error)

	// A second session store starts empty
	require.NoError(t, db.CreateSessionStore("Heat 2"))
	store2, _, err := db.Active()
	require.NoError(t, err)
	var count int64
	result = store2.Model(&models.Infringement{}).Count(&count)
	require.NoError(t, result.Error)
	assert.Equal(t, int64(0), count)

	// Re-attaching the first store finds its record again
	require.NoError(t, db.AttachSessionStore("Heat 1"))
	store, _, err = db.Active()
	require.NoError(t, err)
	result = store.Model(&models.Infringement{}).Count(&count)
	require.NoError(t, result.Error)
	assert.Equal(t, int64(1), count)
}

func TestSessionStoreWithoutActivating(t *testing.T) {
	db := newTestDatabase(t, "")

	require.NoError(t, db.CreateSessionStore("Heat 1"))
	db.DetachSessionStore()

	// SessionStore grants access without changing the active store
	store, err := db.SessionStore("Heat 1")
	require.NoError(t, err)
	require.NotNil(t, store)
	_, _, err = db.Active()
	require.ErrorIs(t, err, database.ErrNoActiveSession)

	_, err = db.SessionStore("Qualifying")
	require.ErrorIs(t, err, database.ErrSessionStoreNotFound)
}

func TestInstanceIsolation(t *testing.T) {
	db1 := newTestDatabase(t, "")
	db2 := newTestDatabase(t, "")

	require.NoError(t, db1.CreateSessionStore("Heat 1"))
	// In-memory stores must not leak between instances
	assert.False(t, db2.SessionStoreExists("Heat 1"))
}

func TestOnDiskStores(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabase(t, dataDir)

	require.NoError(t, db.CreateSessionStore("Heat 1"))
	storePath := filepath.Join(dataDir, "sessions", "heat_1.sqlite")
	if _, err := os.Stat(storePath); err != nil {
		t.Fatalf("expected session store file at %s: %s", storePath, err)
	}

	require.NoError(t, db.DropSessionStore("Heat 1"))
	if _, err := os.Stat(storePath); !os.IsNotExist(err) {
		t.Fatalf("expected session store file to be removed: %v", err)
	}
}

func TestOnDiskPersistence(t *testing.T) {
	dataDir := t.TempDir()

	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.CreateSessionStore("Heat 1"))
	store, _, err := db.Active()
	require.NoError(t, err)
	result := store.Create(&models.Infringement{
		KartNumber:  42,
		Observer:    "Marshal",
		Description: "Contact",
		PenaltyDue:  "Yes",
	})
	require.NoError(t, result.Error)
	require.NoError(t, db.Close())

	// Reopening over the same directory finds the store and its data
	db2 := newTestDatabase(t, dataDir)
	require.True(t, db2.SessionStoreExists("Heat 1"))
	require.NoError(t, db2.AttachSessionStore("Heat 1"))
	store2, _, err := db2.Active()
	require.NoError(t, err)
	var count int64
	result = store2.Model(&models.Infringement{}).Count(&count)
	require.NoError(t, result.Error)
	assert.Equal(t, int64(1), count)
}
