package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ffspoints/internal/point"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added (origin_id, usecount) index for idle-child lookups
const currentSchemaVersion = 1

// Defaults for Store options.
const (
	DefaultMaxWriteAttempts = 3
	DefaultRetryBackoff     = 50 * time.Millisecond
	DefaultFlushChunkSize   = 10000
	DefaultSuccessCacheSize = 256
	DefaultBusyTimeout      = 5 * time.Second
	DefaultReadConns        = 4
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides durable storage for sampling points.
// Uses SQLite with WAL mode for concurrent read access.
//
// Thread-safety: all methods are safe for concurrent use. Structural
// mutations are serialized by mu (single writer) and run on db, a single
// read-write connection. Reads run on rdb, a pool of read-only connections,
// so an open reader never holds up a writer.
type Store struct {
	db   *sql.DB
	rdb  *sql.DB
	opts options

	mu    sync.Mutex // guards batch and serializes writers
	batch *counterBatch
	clock *clock

	// successCounts caches the number of active successful points per
	// interface. Safe for concurrent use on its own.
	successCounts *lru.Cache
}

type options struct {
	maxWriteAttempts int
	retryBackoff     time.Duration
	flushChunkSize   int
	successCacheSize int
	busyTimeout      time.Duration
	readConns        int
	ids              point.IDGenerator
	checkOrigin      bool
}

// Option configures a Store.
type Option func(*options)

// WithMaxWriteAttempts sets how many times a write is tried before it fails
// with WRITE_EXHAUSTED. Values below 1 are treated as 1.
func WithMaxWriteAttempts(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.maxWriteAttempts = n
	}
}

// WithRetryBackoff sets the first delay between write attempts.
// The delay doubles after every failed attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *options) { o.retryBackoff = d }
}

// WithFlushChunkSize bounds the number of ids per usecount UPDATE statement.
func WithFlushChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.flushChunkSize = n
		}
	}
}

// WithSuccessCacheSize sets the number of interfaces whose success count is cached.
func WithSuccessCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.successCacheSize = n
		}
	}
}

// WithBusyTimeout sets how long SQLite waits on a lock before reporting BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithReadConns sets the size of the read-only connection pool.
func WithReadConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readConns = n
		}
	}
}

// WithIDGenerator sets the generator used for points reported without an id.
func WithIDGenerator(g point.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithoutOriginCheck disables the origin existence check on insert.
// Used for ghost stores, whose origins live in the real store.
func WithoutOriginCheck() Option {
	return func(o *options) { o.checkOrigin = false }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		maxWriteAttempts: DefaultMaxWriteAttempts,
		retryBackoff:     DefaultRetryBackoff,
		flushChunkSize:   DefaultFlushChunkSize,
		successCacheSize: DefaultSuccessCacheSize,
		busyTimeout:      DefaultBusyTimeout,
		readConns:        DefaultReadConns,
		ids:              point.UUIDv7Generator{},
		checkOrigin:      true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	// _txlock=immediate makes every transaction take the write lock at BEGIN,
	// so lock contention surfaces before any work is done.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, o.busyTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var lastSeq int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM configpoints`).Scan(&lastSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read last seq: %w", err)
	}

	rdb, err := openReadPool(path, o)
	if err != nil {
		db.Close()
		return nil, err
	}

	cache, err := lru.New(o.successCacheSize)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create success cache: %w", err)
	}

	slog.Debug("point store opened", "path", path, "last_seq", lastSeq, "read_conns", o.readConns)

	return &Store{
		db:            db,
		rdb:           rdb,
		opts:          o,
		batch:         newCounterBatch(),
		clock:         newClockAt(lastSeq),
		successCounts: cache,
	}, nil
}

// Close flushes pending usecount increments and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var flushErr error
	if s.PendingUseCounts() > 0 {
		flushErr = s.Commit(context.Background())
	}
	rerr := s.rdb.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	if rerr != nil {
		return rerr
	}
	return flushErr
}

// openReadPool opens the read-only connections. Pragmas set with PRAGMA
// apply to one connection only, so the busy timeout travels in the DSN.
// The database must already exist in WAL mode.
func openReadPool(path string, o options) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, o.busyTimeout.Milliseconds())
	rdb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	if err := rdb.Ping(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect read pool: %w", err)
	}
	rdb.SetMaxOpenConns(o.readConns)
	rdb.SetMaxIdleConns(o.readConns)
	return rdb, nil
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index backing idle-child lookups on ghost stores.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_configpoints_origin_usecount
		ON configpoints(origin_id, usecount)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
