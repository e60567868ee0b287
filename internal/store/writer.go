package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	insertContinuousQuery = `INSERT INTO ContinuousNotification
		(timestamp, unit, value, name, params, deviceuri) VALUES (?, ?, ?, ?, ?, ?)`
	insertDiscreteQuery = `INSERT INTO DiscreteNotification
		(timestamp, value, name, deviceuri) VALUES (?, ?, ?, ?)`
)

// DeviceRegistry keeps track of the devices notifications may reference.
type DeviceRegistry interface {
	Exists(ctx context.Context, uri string) (bool, error)
	Register(ctx context.Context, uri string) error
}

// NotificationsConfig tunes a Notifications store.
type NotificationsConfig struct {
	// FanoutWorkers bounds the concurrent queries of DiscreteStreams.
	FanoutWorkers int
}

// Notifications writes and reads device notifications.
//
// Writes are serialised: they share two prepared insert statements, which
// are re-prepared whenever the underlying handle has been reopened.
type Notifications struct {
	store   *Store
	devices DeviceRegistry
	fanout  int
	created []string

	mu               sync.Mutex
	stmtGen          uint64
	insertContinuous *sqlx.Stmt
	insertDiscrete   *sqlx.Stmt
}

// NewNotifications provisions the notification tables and prepares the
// insert statements. Provisioning failures are logged and do not prevent
// construction; every later call will then fail on its own.
func NewNotifications(ctx context.Context, st *Store, devices DeviceRegistry, cfg NotificationsConfig) *Notifications {
	if cfg.FanoutWorkers < 1 {
		cfg.FanoutWorkers = 1
	}
	n := &Notifications{
		store:   st,
		devices: devices,
		fanout:  cfg.FanoutWorkers,
	}

	db, gen, err := st.conn(ctx)
	if err != nil {
		slog.Error("unable to check / create notification tables", "error", err)
		return n
	}
	created, err := EnsureSchema(ctx, db)
	if err != nil {
		slog.Error("unable to check / create notification tables", "error", err)
	}
	n.created = created

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.prepare(ctx, db, gen); err != nil {
		slog.Error("preparing insert statements", "error", err)
	}
	return n
}

// prepare (re)creates the insert statements for the handle of generation gen.
// Callers hold n.mu.
func (n *Notifications) prepare(ctx context.Context, db *sqlx.DB, gen uint64) error {
	if n.insertContinuous != nil && n.insertDiscrete != nil && n.stmtGen == gen {
		return nil
	}
	n.closeStatements()

	cont, err := db.PreparexContext(ctx, insertContinuousQuery)
	if err != nil {
		return fmt.Errorf("preparing continuous insert: %w", err)
	}
	disc, err := db.PreparexContext(ctx, insertDiscreteQuery)
	if err != nil {
		cont.Close()
		return fmt.Errorf("preparing discrete insert: %w", err)
	}
	n.insertContinuous = cont
	n.insertDiscrete = disc
	n.stmtGen = gen
	return nil
}

func (n *Notifications) closeStatements() {
	for _, stmt := range []*sqlx.Stmt{n.insertContinuous, n.insertDiscrete} {
		if stmt != nil {
			stmt.Close()
		}
	}
	n.insertContinuous = nil
	n.insertDiscrete = nil
}

// Created returns the tables provisioned when n was constructed.
func (n *Notifications) Created() []string {
	return append([]string(nil), n.created...)
}

// Close releases the prepared insert statements. The database handle itself
// belongs to the Store.
func (n *Notifications) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeStatements()
	return nil
}

// InsertContinuous stores a measurement. The magnitude is taken from the
// canonical decimal form of m rather than from a binary float, and the device
// is registered first if it is unknown.
func (n *Notifications) InsertContinuous(ctx context.Context, deviceURI string, ts time.Time, m model.Measure, name, params string) error {
	const op = "inserting continuous notification"

	canonical, err := model.ParseMeasure(m.String())
	if err != nil {
		return n.fail(op, deviceURI, fmt.Errorf("%w: %w", ErrInvalidNotification, err))
	}
	value, err := canonical.Float64()
	if err != nil {
		return n.fail(op, deviceURI, fmt.Errorf("%w: converting magnitude: %w", ErrInvalidNotification, err))
	}

	rec := model.ContinuousNotification{
		Timestamp: ts,
		Unit:      canonical.Unit(),
		Value:     value,
		Name:      name,
		Params:    params,
		DeviceURI: deviceURI,
	}
	if err := rec.Validate(); err != nil {
		return n.fail(op, deviceURI, fmt.Errorf("%w: %w", ErrInvalidNotification, err))
	}

	return n.write(ctx, op, deviceURI, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.StmtxContext(ctx, n.insertContinuous).ExecContext(ctx,
			rec.Timestamp.UnixMilli(), rec.Unit, rec.Value, rec.Name, rec.Params, rec.DeviceURI,
		)
		return err
	})
}

// InsertDiscrete stores a symbolic value, registering the device first if it
// is unknown.
func (n *Notifications) InsertDiscrete(ctx context.Context, deviceURI string, ts time.Time, value, name string) error {
	const op = "inserting discrete notification"

	rec := model.DiscreteNotification{
		Timestamp: ts,
		Value:     value,
		Name:      name,
		DeviceURI: deviceURI,
	}
	if err := rec.Validate(); err != nil {
		return n.fail(op, deviceURI, fmt.Errorf("%w: %w", ErrInvalidNotification, err))
	}

	return n.write(ctx, op, deviceURI, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.StmtxContext(ctx, n.insertDiscrete).ExecContext(ctx,
			rec.Timestamp.UnixMilli(), rec.Value, rec.Name, rec.DeviceURI,
		)
		return err
	})
}

// forgetter is implemented by device registries that memoise lookups.
type forgetter interface {
	Forget(uri string)
}

// write registers the device if needed and runs exec in its own transaction.
// A device removed by another process after it was last seen makes the insert
// fail its foreign key; the device is then registered again and the insert
// repeated once.
func (n *Notifications) write(ctx context.Context, op, deviceURI string, exec func(context.Context, *sqlx.Tx) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ensureDevice(ctx, deviceURI); err != nil {
		return n.fail(op, deviceURI, err)
	}

	db, gen, err := n.store.conn(ctx)
	if err != nil {
		return n.fail(op, deviceURI, err)
	}
	if err := n.prepare(ctx, db, gen); err != nil {
		return n.fail(op, deviceURI, fmt.Errorf("%w: %w", ErrExecution, err))
	}

	err = n.inTx(ctx, db, exec)
	if isForeignKeyViolation(err) {
		slog.Warn("device missing from registry, registering again", "device", deviceURI)
		if f, ok := n.devices.(forgetter); ok {
			f.Forget(deviceURI)
		}
		if err := n.ensureDevice(ctx, deviceURI); err != nil {
			return n.fail(op, deviceURI, err)
		}
		err = n.inTx(ctx, db, exec)
	}
	if err != nil {
		return n.fail(op, deviceURI, err)
	}
	return nil
}

func (n *Notifications) inTx(ctx context.Context, db *sqlx.DB, exec func(context.Context, *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrExecution, err)
	}
	defer tx.Rollback()

	if err := exec(ctx, tx); err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrExecution, err)
	}
	return nil
}

func (n *Notifications) ensureDevice(ctx context.Context, uri string) error {
	known, err := n.devices.Exists(ctx, uri)
	if err != nil {
		return fmt.Errorf("%w: checking device %s: %w", ErrExecution, uri, err)
	}
	if known {
		return nil
	}
	if err := n.devices.Register(ctx, uri); err != nil {
		return fmt.Errorf("%w: registering device %s: %w", ErrExecution, uri, err)
	}
	slog.Debug("registered device", "device", uri)
	return nil
}

// fail logs a failed operation and returns it wrapped with its description.
func (n *Notifications) fail(op, deviceURI string, err error) error {
	slog.Error("notification store", "op", op, "device", deviceURI, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}
