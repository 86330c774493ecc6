// Package database persists imported layers and their features behind
// database/sql, with the same schema working across SQLite, Genji, DuckDB
// and PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"
)

// Database wraps the SQL connection together with the unique-ID source for
// feature rows.
type Database struct {
	DB          *sql.DB
	idGenerator chan int64
	Driver      string // normalized driver name so SQL builders can stay declarative
}

// normalizeDBType trims and lowercases driver names so downstream switch
// blocks do not miss engine-specific handling because of mixed case or
// incidental whitespace.
func normalizeDBType(dbType string) string {
	return strings.ToLower(strings.TrimSpace(dbType))
}

// startIDGenerator launches a goroutine handing out sequential IDs over a
// channel, so concurrent imports never race on a counter.
func startIDGenerator(initialID int64) chan int64 {
	idChannel := make(chan int64)
	go func(start int64) {
		currentID := start
		for {
			idChannel <- currentID
			currentID++
		}
	}(initialID)
	return idChannel
}

// NextID hands out the next unique feature row ID.
func (db *Database) NextID() int64 {
	return <-db.idGenerator
}

// Config holds the configuration details for initializing the database.
type Config struct {
	DBType    string // "sqlite", "genji", "duckdb" or "pgx" (PostgreSQL)
	DBPath    string // file path for file-based engines
	DBConn    string // raw DSN for network drivers
	DBHost    string
	DBPort    int
	DBUser    string
	DBPass    string
	DBName    string
	PGSSLMode string
	Port      int // server port, used in default database file naming
}

// NewDatabase opens the configured engine and tunes connection pooling.
// File-based engines are forced into single-connection mode; they do not
// tolerate concurrent writers.
func NewDatabase(config Config) (*Database, error) {
	driverName := normalizeDBType(config.DBType)
	var (
		dsn                string
		applySQLitePragmas bool
	)

	switch driverName {
	case "sqlite":
		applySQLitePragmas = true
		dsn = config.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("hikemap-%d.%s", config.Port, driverName)
		}
	case "genji":
		// Genji reuses file DSNs but manages its own transaction and
		// caching strategy, so SQLite PRAGMA tuning is skipped.
		dsn = config.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("hikemap-%d.%s", config.Port, driverName)
		}
	case "duckdb":
		dsn = config.DBPath
		if dsn == "" {
			dsn = fmt.Sprintf("hikemap-%d.duckdb", config.Port)
		}
	case "pgx":
		if strings.TrimSpace(config.DBConn) != "" {
			dsn = config.DBConn
		} else {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				config.DBUser, config.DBPass, config.DBHost, config.DBPort, config.DBName, config.PGSSLMode)
		}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DBType)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening the database: %v", err)
	}

	switch driverName {
	case "sqlite", "genji":
		// One physical connection; no concurrent statements at DB layer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if applySQLitePragmas {
			tuneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := tuneSQLiteConnection(tuneCtx, db, log.Printf); err != nil {
				log.Printf("sqlite tuning skipped: %v", err)
			}
			cancel()
		}
	case "duckdb":
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		tuneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := tuneDuckDBConnection(tuneCtx, db, log.Printf); err != nil {
			log.Printf("duckdb tuning skipped: %v", err)
		}
		cancel()
	}

	// Cheap liveness probe with timeout so we don't hang at startup.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error connecting to the database: %v", err)
		}
	}

	log.Printf("Using database driver: %s with DSN: %s", driverName, dsn)

	d := &Database{DB: db, Driver: driverName}
	if err := d.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Bootstrap the ID generator from the highest stored feature row ID so
	// every new row receives a unique primary key.  The error is ignored to
	// keep startup robust on a fresh file.
	var maxFeature sql.NullInt64
	_ = db.QueryRow(`SELECT MAX(id) FROM features`).Scan(&maxFeature)
	initialID := int64(1)
	if maxFeature.Valid && maxFeature.Int64 >= initialID {
		initialID = maxFeature.Int64 + 1
	}
	d.idGenerator = startIDGenerator(initialID)

	return d, nil
}

// initSchema creates the layers and features tables.  The SQL is kept to the
// portable subset every supported engine understands.
func (db *Database) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS layers (
id TEXT PRIMARY KEY,
kind TEXT,
source_url TEXT,
name TEXT,
admin_id TEXT,
opacity DOUBLE PRECISION,
visible INT,
min_x DOUBLE PRECISION,
min_y DOUBLE PRECISION,
max_x DOUBLE PRECISION,
max_y DOUBLE PRECISION,
created_at BIGINT
)`,
		`CREATE TABLE IF NOT EXISTS features (
id BIGINT PRIMARY KEY,
layer_id TEXT,
feature_id TEXT,
feature_type TEXT,
title TEXT,
description TEXT,
fill_color TEXT,
text_color TEXT,
text_size TEXT,
icon_set TEXT,
icon_name TEXT,
icon_url TEXT,
icon_anchor_x DOUBLE PRECISION,
icon_anchor_y DOUBLE PRECISION,
icon_size TEXT,
geometry TEXT
)`,
	}
	for _, stmt := range statements {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// tuneSQLiteConnection applies WAL/synchronous/busy pragmas.  The steps run
// through a small channel pipeline so the work happens outside the caller
// goroutine, following "Don't communicate by sharing memory; share memory by
// communicating".
func tuneSQLiteConnection(ctx context.Context, db *sql.DB, logf func(string, ...any)) error {
	type pragma struct {
		label     string
		query     string
		expectRow bool
	}

	steps := []pragma{
		{label: "journal_mode", query: "PRAGMA journal_mode=WAL;", expectRow: true},
		{label: "synchronous", query: "PRAGMA synchronous=NORMAL;"},
		{label: "temp_store", query: "PRAGMA temp_store=MEMORY;"},
		{label: "cache_size", query: "PRAGMA cache_size=-20000;"},
		{label: "busy_timeout", query: "PRAGMA busy_timeout=5000;"},
	}

	jobs := make(chan pragma)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		for step := range jobs {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			if step.expectRow {
				var mode string
				if err := db.QueryRowContext(ctx, step.query).Scan(&mode); err != nil {
					errs <- fmt.Errorf("apply %s: %w", step.label, err)
					return
				}
				logf("SQLite tuning %s -> %s", step.label, mode)
				continue
			}

			if _, err := db.ExecContext(ctx, step.query); err != nil {
				errs <- fmt.Errorf("apply %s: %w", step.label, err)
				return
			}
			logf("SQLite tuning %s applied", step.label)
		}
		errs <- nil
	}()

	go func() {
		defer close(jobs)
		for _, step := range steps {
			jobs <- step
		}
	}()

	return <-errs
}

// tuneDuckDBConnection raises the thread count and checkpoint threshold so
// bulk feature inserts stay CPU-bound instead of pausing on checkpoints.
func tuneDuckDBConnection(ctx context.Context, db *sql.DB, logf func(string, ...any)) error {
	threads := runtime.NumCPU()
	if threads < 1 {
		threads = 1
	}

	steps := []struct {
		label string
		query string
	}{
		{label: "threads", query: fmt.Sprintf("PRAGMA threads=%d;", threads)},
		{label: "checkpoint_threshold", query: "PRAGMA checkpoint_threshold='1GB';"},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := db.ExecContext(ctx, step.query); err != nil {
			return fmt.Errorf("apply %s: %w", step.label, err)
		}
		logf("DuckDB tuning %s applied", step.label)
	}
	return nil
}

// EnsureIndexesAsync builds non-critical indexes in background, politely:
// no pinned connections (important for single-connection engines), plain
// CREATE INDEX IF NOT EXISTS, and retries with backoff on "database is
// locked" so an index build never starves an import.
func (db *Database) EnsureIndexesAsync(ctx context.Context, logf func(string, ...any)) {
	indexes := []struct{ name, sql string }{
		{"idx_features_layer",
			`CREATE INDEX IF NOT EXISTS idx_features_layer ON features (layer_id)`},
		{"idx_features_layer_type",
			`CREATE INDEX IF NOT EXISTS idx_features_layer_type ON features (layer_id, feature_type)`},
		{"idx_layers_kind",
			`CREATE INDEX IF NOT EXISTS idx_layers_kind ON layers (kind)`},
		{"idx_layers_created",
			`CREATE INDEX IF NOT EXISTS idx_layers_created ON layers (created_at)`},
	}

	go func() {
		for _, it := range indexes {
			start := time.Now()
			backoff := 50 * time.Millisecond
			for {
				select {
				case <-ctx.Done():
					logf("stopping index builder: %v", ctx.Err())
					return
				default:
				}

				_, err := db.DB.ExecContext(ctx, it.sql)
				if err == nil {
					logf("index %s ready in %s", it.name, time.Since(start).Truncate(time.Millisecond))
					break
				}

				msg := strings.ToLower(err.Error())
				if strings.Contains(msg, "already exists") {
					break
				}
				if strings.Contains(msg, "database is locked") ||
					strings.Contains(msg, "sqlite_busy") ||
					strings.Contains(msg, "locked") {
					time.Sleep(backoff)
					if backoff < time.Second {
						backoff *= 2
						if backoff > time.Second {
							backoff = time.Second
						}
					}
					continue
				}

				logf("index %s failed after %s: %v", it.name, time.Since(start).Truncate(time.Millisecond), err)
				break
			}
		}
	}()
}
