// Package store owns the SQLite database of the catalog: connection pool,
// schema migrations and transaction boundaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/repo/store/migrations"
)

const driverName = "sqlite"

// gooseMu guards goose's package level configuration.
//
//nolint:gochecknoglobals
var gooseMu sync.Mutex

// Config holds configuration for the SQLite store.
type Config struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/catalog.db"`
	// BusyTimeout is how long a connection waits for a lock held by another process
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
	// MaxOpenConns limits the connection pool
	MaxOpenConns int `env:"MAX_OPEN_CONNS" default:"8"`
	// ConnMaxLifetime recycles pooled connections
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`
}

// TxFunc runs inside a transaction. tx must be used for every statement of the unit of work.
type TxFunc func(ctx context.Context, tx sqlx.ExtContext) error

// Store wraps the connection pool.
type Store struct {
	db        *sqlx.DB
	log       logging.Logger
	writeLock *sync.Mutex // SQLite allows a single writer
}

// Open opens (creating if needed) the database file and applies all pending migrations.
func Open(ctx context.Context, cfg Config) (_ *Store, err error) {
	log := logging.GetLogger("repo.store").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "open store failed", "error", err)
		} else {
			log.DebugContext(ctx, "store opened")
		}
	}()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir all: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := newStore(db, log)

	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// New wraps an existing handle without running migrations.
func New(db *sqlx.DB) *Store {
	return newStore(db, logging.GetLogger("repo.store"))
}

func newStore(db *sqlx.DB, log logging.Logger) *Store {
	return &Store{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}
}

// dsn builds a modernc connection string; pragmas apply to every pooled connection.
func dsn(cfg Config) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
		"_pragma=journal_mode(WAL)",
	}

	return "file:" + cfg.DatabasePath + "?" + strings.Join(pragmas, "&")
}

// Migrate applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{ctx: ctx, log: s.log})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// DB returns the pool for reads outside of a transaction.
func (s *Store) DB() sqlx.ExtContext {
	return s.db
}

// WithTx runs fn in a transaction: commit when fn returns nil, rollback on error or panic.
// Transactions are serialised within the process.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) (err error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()

			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}

			return
		}

		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	}()

	return fn(ctx, tx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

type gooseLogger struct {
	ctx context.Context //nolint:containedctx
	log logging.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.DebugContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.ErrorContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}
