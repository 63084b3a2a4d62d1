package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is bumped whenever runMigrations learns a new step.
const schemaVersion = 2

var (
	// ErrNotFound is returned when no document matches an id or path.
	ErrNotFound = errors.New("document not found")
	// ErrPathConflict is returned by Upsert when another document in the
	// same collection already owns the path.
	ErrPathConflict = errors.New("path already catalogued under another id")
)

// Database is the SQLite document store behind every catalog collection.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the database file at dbPath. The parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Catalog database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	-- One row per catalog entity. data holds the JSON document.
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		path TEXT,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (collection, id)
	);

	-- Secondary index values, rewritten on every upsert.
	CREATE TABLE IF NOT EXISTS document_keys (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		index_name TEXT NOT NULL,
		key TEXT NOT NULL,
		PRIMARY KEY (collection, id, index_name, key),
		FOREIGN KEY (collection, id) REFERENCES documents(collection, id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_document_keys_lookup ON document_keys(collection, index_name, key);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies schema steps newer than the stored version.
func (d *Database) runMigrations(ctx context.Context) error {
	current := 0
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		if _, scanErr := fmt.Sscanf(value, "%d", &current); scanErr != nil {
			return fmt.Errorf("invalid schema version %q: %w", value, scanErr)
		}
	}

	if current < 1 {
		// Migration 1: unique canonical path per collection. Documents without
		// a backing file store NULL and are exempt.
		logging.Info("Migrating catalog: adding unique path index")
		if _, err := d.db.ExecContext(ctx, `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_path
			ON documents(collection, path) WHERE path IS NOT NULL
		`); err != nil {
			return fmt.Errorf("failed to create path index: %w", err)
		}
	}

	if current < 2 {
		// Migration 2: ordering index for GetAll.
		if _, err := d.db.ExecContext(ctx, `
			CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at)
		`); err != nil {
			return fmt.Errorf("failed to create created_at index: %w", err)
		}
	}

	if current < schemaVersion {
		if _, err := d.db.ExecContext(ctx, `
			INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, fmt.Sprintf("%d", schemaVersion)); err != nil {
			return fmt.Errorf("failed to store schema version: %w", err)
		}
		logging.Info("Catalog schema at version %d", schemaVersion)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// withTx runs fn inside a transaction under the write lock and records the
// commit or rollback duration.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(start).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	return tx.Commit()
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := dbPath + suffix
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only (mode %v), writes will fail", p, info.Mode())
			if suffix != "" {
				if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
					logging.Error("Failed to fix %s permissions: %v", p, chmodErr)
				} else {
					logging.Info("Fixed %s permissions", p)
				}
			}
		}
	}

	return nil
}
