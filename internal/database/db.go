package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scoutgraph/internal/config"
)

// FileName is the database file name inside the database directory.
const FileName = "scoutgraph.db"

// DB provides SQLite-based storage for the crawl frontier, results,
// identities and runtime configuration.
type DB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// A new database gets the default runtime configuration rows.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run 'scoutgraph init' first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d := &DB{
		db:     sqlDB,
		dbPath: dbPath,
		now:    time.Now,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := d.createTables(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := d.seedRunConfig(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to seed runtime config: %w", err)
	}

	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

func (d *DB) createTables(ctx context.Context) error {
	schema := `
	-- Every handle that ever entered the crawl, with the kind it occupies.
	CREATE TABLE IF NOT EXISTS handle_registry (
		handle TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		registered_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS seeds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		added_at DATETIME NOT NULL,
		checked_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_seeds_status ON seeds(status, added_at);

	CREATE TABLE IF NOT EXISTS discovered (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		level INTEGER NOT NULL CHECK (level >= 1),
		parent_handle TEXT NOT NULL,
		metrics TEXT,
		rationale TEXT,
		discovered_at DATETIME NOT NULL,
		checked_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_discovered_status_level ON discovered(status, level, discovered_at);

	CREATE TABLE IF NOT EXISTS accepted (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		display_name TEXT,
		email TEXT,
		phone TEXT,
		messaging_handle TEXT,
		messaging_link TEXT,
		chat_app_link TEXT,
		website TEXT,
		contacts TEXT,
		followers INTEGER NOT NULL DEFAULT 0,
		following INTEGER NOT NULL DEFAULT 0,
		posts INTEGER NOT NULL DEFAULT 0,
		avg_recent_views INTEGER NOT NULL DEFAULT 0,
		engagement_rate REAL NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 0,
		bio TEXT,
		verified INTEGER NOT NULL DEFAULT 0,
		business INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		accepted_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accepted_at ON accepted(accepted_at);

	CREATE TABLE IF NOT EXISTS identities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		credential_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		requests_made INTEGER NOT NULL DEFAULT 0,
		last_used_at DATETIME,
		added_at DATETIME NOT NULL,
		proxy_url TEXT
	);

	CREATE TABLE IF NOT EXISTS run_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		handle TEXT,
		details TEXT,
		run_id TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// withTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timestampLayout is the layout used for every timestamp this package writes.
// It sorts lexicographically in time order.
const timestampLayout = "2006-01-02 15:04:05.000"

func (d *DB) timestamp() string {
	return formatTimestamp(d.now())
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp parses a timestamp string using the known formats.
// It returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseNullTimestamp(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTimestamp(s.String)
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// seedRunConfig inserts default runtime configuration rows that are missing.
func (d *DB) seedRunConfig(ctx context.Context) error {
	now := d.timestamp()
	for key, value := range config.DefaultRunValues() {
		_, err := d.db.ExecContext(ctx,
			`INSERT INTO run_config (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO NOTHING`,
			key, value, now)
		if err != nil {
			return err
		}
	}
	return nil
}
