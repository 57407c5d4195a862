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

package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/paddock/database/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// WAL journal mode, disable sync on write, increase cache size to 50MB (from 2MB)
const sqliteConnOpts = "_pragma=journal_mode(WAL)&_pragma=sync(OFF)&_pragma=cache_size(-50000)"

var (
	// ErrNoActiveSession is returned when an operation requires an attached
	// session store but no session is active
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionStoreExists is returned when creating a session store that
	// already exists
	ErrSessionStoreExists = errors.New("session store already exists")

	// ErrSessionStoreNotFound is returned when attaching or dropping a
	// session store that does not exist
	ErrSessionStoreNotFound = errors.New("session store not found")
)

type Config struct {
	DataDir string
	Logger  *slog.Logger
}

// Database holds the control store (session metadata) plus the per-session
// record stores. Exactly one session store may be attached as "active" at a
// time; all infringement operations run against the attached store.
//
// With an empty DataDir everything lives in shared-cache in-memory SQLite
// databases, which is useful for testing.
type Database struct {
	control *gorm.DB
	stores  map[string]*gorm.DB
	// activeName holds the session's original name; the stores map is
	// keyed by the sanitized store name
	activeName string
	dataDir    string
	instanceId uint64
	logger     *slog.Logger
	mu         sync.RWMutex
}

// Distinguishes in-memory databases between instances so tests don't share state
var nextInstanceId atomic.Uint64

// New opens the control store and prepares the session store directory.
// Uses in-memory databases if cfg.DataDir is empty.
func New(cfg *Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.DataDir != "" {
		// Make sure that we can read data dir, and create if it doesn't exist
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		if err := os.MkdirAll(
			filepath.Join(cfg.DataDir, "sessions"),
			fs.ModePerm,
		); err != nil {
			return nil, fmt.Errorf("failed to create session store dir: %w", err)
		}
	}
	d := &Database{
		stores:     make(map[string]*gorm.DB),
		dataDir:    cfg.DataDir,
		instanceId: nextInstanceId.Add(1),
		logger:     logger,
	}
	controlDb, err := d.open(d.controlDsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open control store: %w", err)
	}
	d.control = controlDb
	for _, model := range models.ControlModels {
		d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := controlDb.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Database) open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	// Configure tracing for GORM
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

func (d *Database) controlDsn() string {
	if d.dataDir == "" {
		// cache=shared allows multiple connections to share the same in-memory database
		return fmt.Sprintf(
			"file:paddock_control_%d?mode=memory&cache=shared",
			d.instanceId,
		)
	}
	return fmt.Sprintf(
		"file:%s?%s",
		filepath.Join(d.dataDir, "control.sqlite"),
		sqliteConnOpts,
	)
}

func (d *Database) sessionDsn(name string) string {
	if d.dataDir == "" {
		return fmt.Sprintf(
			"file:paddock_%d_session_%s?mode=memory&cache=shared",
			d.instanceId,
			SafeName(name),
		)
	}
	return fmt.Sprintf(
		"file:%s?%s",
		d.sessionStorePath(name),
		sqliteConnOpts,
	)
}

func (d *Database) sessionStorePath(name string) string {
	return filepath.Join(
		d.dataDir,
		"sessions",
		SafeName(name)+".sqlite",
	)
}

// SafeName sanitizes a session name into a filesystem-safe store name.
// Everything outside [A-Za-z0-9_-] becomes an underscore.
func SafeName(name string) string {
	var sb strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z',
			c >= '0' && c <= '9',
			c == '_', c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// Control returns the control store handle
func (d *Database) Control() *gorm.DB {
	return d.control
}

// Active returns the attached session store handle and its session name.
// Returns ErrNoActiveSession when no store is attached.
func (d *Database) Active() (*gorm.DB, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.activeName == "" {
		return nil, "", ErrNoActiveSession
	}
	return d.stores[SafeName(d.activeName)], d.activeName, nil
}

// SessionStoreExists reports whether a record store exists for the named session
func (d *Database) SessionStoreExists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessionStoreExists(name)
}

func (d *Database) sessionStoreExists(name string) bool {
	if _, ok := d.stores[SafeName(name)]; ok {
		return true
	}
	if d.dataDir == "" {
		return false
	}
	_, err := os.Stat(d.sessionStorePath(name))
	return err == nil
}

// CreateSessionStore provisions an empty record store for a new session and
// attaches it as active. Fails with ErrSessionStoreExists if a store already
// exists for the name.
func (d *Database) CreateSessionStore(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessionStoreExists(name) {
		return ErrSessionStoreExists
	}
	return d.attach(name)
}

// AttachSessionStore switches the active record store to an existing
// session. Fails with ErrSessionStoreNotFound if no store exists for the
// name.
func (d *Database) AttachSessionStore(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sessionStoreExists(name) {
		return ErrSessionStoreNotFound
	}
	return d.attach(name)
}

func (d *Database) attach(name string) error {
	if _, err := d.ensureStore(name); err != nil {
		return err
	}
	d.activeName = name
	d.logger.Debug(
		"attached session store",
		"session", name,
	)
	return nil
}

func (d *Database) ensureStore(name string) (*gorm.DB, error) {
	safe := SafeName(name)
	db, ok := d.stores[safe]
	if !ok {
		var err error
		db, err = d.open(d.sessionDsn(name))
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		for _, model := range models.SessionModels {
			d.logger.Debug(fmt.Sprintf("creating table: %#v", model))
			if err := db.AutoMigrate(model); err != nil {
				return nil, err
			}
		}
		d.stores[safe] = db
	}
	return db, nil
}

// SessionStore returns a handle to the named session's record store without
// changing which session is active. Used for read-only access such as
// exports. Fails with ErrSessionStoreNotFound if no store exists.
func (d *Database) SessionStore(name string) (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sessionStoreExists(name) {
		return nil, ErrSessionStoreNotFound
	}
	return d.ensureStore(name)
}

// DetachSessionStore clears the active session store without closing it, so
// a closed session can be re-attached later.
func (d *Database) DetachSessionStore() {
	d.mu.Lock()
	d.activeName = ""
	d.mu.Unlock()
}

// DropSessionStore irreversibly removes the record store for a session,
// detaching it first if active. Fails with ErrSessionStoreNotFound if no
// store exists for the name.
func (d *Database) DropSessionStore(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sessionStoreExists(name) {
		return ErrSessionStoreNotFound
	}
	safe := SafeName(name)
	if db, ok := d.stores[safe]; ok {
		// For in-memory stores dropping the tables releases the data, since
		// the shared-cache database lives as long as any open connection
		if d.dataDir == "" {
			for _, model := range models.SessionModels {
				if err := db.Migrator().DropTable(model); err != nil {
					return fmt.Errorf("failed to drop session tables: %w", err)
				}
			}
		}
		if sqlDb, err := db.DB(); err == nil {
			if err := sqlDb.Close(); err != nil {
				d.logger.Warn(
					"failed to close session store",
					"session", name,
					"error", err,
				)
			}
		}
		delete(d.stores, safe)
	}
	if SafeName(d.activeName) == safe {
		d.activeName = ""
	}
	if d.dataDir != "" {
		if err := os.Remove(d.sessionStorePath(name)); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove session store: %w", err)
		}
	}
	return nil
}

// Close closes the control store and all open session stores
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	for name, db := range d.stores {
		if sqlDb, dbErr := db.DB(); dbErr == nil {
			if closeErr := sqlDb.Close(); closeErr != nil {
				err = errors.Join(
					err,
					fmt.Errorf("session store %s close: %w", name, closeErr),
				)
			}
		}
	}
	d.stores = make(map[string]*gorm.DB)
	d.activeName = ""
	if d.control != nil {
		if sqlDb, dbErr := d.control.DB(); dbErr == nil {
			if closeErr := sqlDb.Close(); closeErr != nil {
				err = errors.Join(
					err,
					fmt.Errorf("control store close: %w", closeErr),
				)
			}
		}
	}
	return err
}
