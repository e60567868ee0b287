// Package store provides SQLite persistence for device notifications.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverCGo  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPure = "sqlite"  // modernc.org/sqlite
)

// Options describe how to reach the database.
type Options struct {
	Driver       string // DriverCGo (default) or DriverPure
	URL          string // file path or SQLite URI
	// User and Password enable SQLite user authentication. Only the cgo
	// driver built with the sqlite_userauth tag honours them; otherwise
	// Open logs a warning and they are ignored.
	User         string
	Password     string
	MaxOpenConns int // 0 keeps the database/sql default
}

// Store owns the database handle. It retains the connection options so the
// handle can be reopened when it is found closed.
type Store struct {
	opts Options

	mu       sync.Mutex
	db       *sqlx.DB
	gen      uint64
	shutdown bool
}

// Open connects to the database described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverCGo
	}
	if opts.Driver != DriverCGo && opts.Driver != DriverPure {
		return nil, fmt.Errorf("unknown driver %q", opts.Driver)
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	if opts.User != "" && opts.Driver == DriverPure {
		slog.Warn("ignoring database credentials: the pure-Go driver has no user authentication", "url", opts.URL)
	} else if opts.User != "" {
		slog.Warn("database credentials are only enforced in builds with the sqlite_userauth tag", "url", opts.URL)
	}

	s := &Store{opts: opts}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.gen = 1
	return s, nil
}

func (s *Store) open(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(s.opts.Driver, s.opts.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: opening database %s: %w", ErrConnectivity, s.opts.URL, err)
	}

	conns := s.opts.MaxOpenConns
	if s.opts.inMemory() {
		// Every connection to :memory: is a separate database.
		conns = 1
	}
	if conns > 0 {
		db.SetMaxOpenConns(conns)
		db.SetMaxIdleConns(conns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database %s: %w", ErrConnectivity, s.opts.URL, err)
	}
	return db, nil
}

// DB returns a live database handle. If the held handle no longer answers,
// a new one is opened with the retained options. A failed reopen is returned
// to the caller; the next call tries again.
func (s *Store) DB(ctx context.Context) (*sqlx.DB, error) {
	db, _, err := s.conn(ctx)
	return db, err
}

// conn returns the live handle together with its generation.
func (s *Store) conn(ctx context.Context) (*sqlx.DB, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return nil, 0, fmt.Errorf("%w: store is shut down", ErrConnectivity)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	if s.db != nil {
		err := s.db.PingContext(ctx)
		if err == nil {
			return s.db, s.gen, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		slog.Info("database handle closed, reopening", "url", s.opts.URL, "error", err)
		s.db.Close()
		s.db = nil
	}

	db, err := s.open(ctx)
	if err != nil {
		slog.Error("reopening database", "url", s.opts.URL, "error", err)
		return nil, 0, err
	}
	s.db = db
	s.gen++
	return s.db, s.gen, nil
}

// Generation counts how many times the handle has been (re)opened.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Shutdown checkpoints and compacts the database, then closes the handle if
// it is still open. Calling it more than once is a no-op.
func (s *Store) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdown = true
	if s.db == nil {
		return nil
	}

	var errs []error
	if err := s.db.PingContext(ctx); err == nil {
		if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			errs = append(errs, fmt.Errorf("checkpointing WAL: %w", err))
		}
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			errs = append(errs, fmt.Errorf("compacting database: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	s.db = nil

	slog.Info("database shut down", "url", s.opts.URL)
	return errors.Join(errs...)
}

// Close shuts the store down with a background context.
func (s *Store) Close() error {
	return s.Shutdown(context.Background())
}

// dsn appends the driver-specific connection parameters to the URL.
func (o Options) dsn() string {
	params := url.Values{}
	switch o.Driver {
	case DriverPure:
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "busy_timeout(5000)")
		params.Add("_pragma", "synchronous(NORMAL)")
		params.Add("_pragma", "foreign_keys(1)")
	default:
		params.Set("_journal_mode", "WAL")
		params.Set("_busy_timeout", "5000")
		params.Set("_synchronous", "NORMAL")
		params.Set("_foreign_keys", "1")
		if o.User != "" {
			params.Set("_auth_user", o.User)
			params.Set("_auth_pass", o.Password)
		}
	}

	sep := "?"
	if strings.Contains(o.URL, "?") {
		sep = "&"
	}
	return o.URL + sep + params.Encode()
}

func (o Options) inMemory() bool {
	return strings.Contains(o.URL, ":memory:") || strings.Contains(o.URL, "mode=memory")
}
