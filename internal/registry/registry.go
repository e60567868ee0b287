// Package registry keeps the set of devices notifications may reference.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS Device (
    uri         VARCHAR(255) PRIMARY KEY,
    first_seen  INTEGER NOT NULL
);
`

// DBProvider hands out a live database handle.
type DBProvider interface {
	DB(ctx context.Context) (*sqlx.DB, error)
}

// Registry is a SQLite-backed device registry. It owns the Device table the
// notification tables point at.
type Registry struct {
	db DBProvider
}

// New creates the Device table if needed.
func New(ctx context.Context, db DBProvider) (*Registry, error) {
	conn, err := db.DB(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating device table: %w", err)
	}
	return &Registry{db: db}, nil
}

// Exists reports whether uri is registered.
func (r *Registry) Exists(ctx context.Context, uri string) (bool, error) {
	conn, err := r.db.DB(ctx)
	if err != nil {
		return false, err
	}
	var found bool
	if err := conn.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM Device WHERE uri = ?)`, uri); err != nil {
		return false, fmt.Errorf("looking up device %s: %w", uri, err)
	}
	return found, nil
}

// Register adds uri. Registering a known device is a no-op.
func (r *Registry) Register(ctx context.Context, uri string) error {
	if uri == "" {
		return fmt.Errorf("registering device: empty uri")
	}
	conn, err := r.db.DB(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO Device (uri, first_seen) VALUES (?, ?)
		ON CONFLICT(uri) DO NOTHING`,
		uri, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("registering device %s: %w", uri, err)
	}
	return nil
}

// Delete removes uri together with every notification it emitted. It
// reports whether the device existed.
func (r *Registry) Delete(ctx context.Context, uri string) (bool, error) {
	conn, err := r.db.DB(ctx)
	if err != nil {
		return false, err
	}
	res, err := conn.ExecContext(ctx, `DELETE FROM Device WHERE uri = ?`, uri)
	if err != nil {
		return false, fmt.Errorf("deleting device %s: %w", uri, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting device %s: %w", uri, err)
	}
	return n > 0, nil
}

// List returns every registered device ordered by uri.
func (r *Registry) List(ctx context.Context) ([]model.Device, error) {
	conn, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		URI       string `db:"uri"`
		FirstSeen int64  `db:"first_seen"`
	}
	if err := conn.SelectContext(ctx, &rows, `SELECT uri, first_seen FROM Device ORDER BY uri`); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	devices := make([]model.Device, 0, len(rows))
	for _, row := range rows {
		devices = append(devices, model.Device{URI: row.URI, FirstSeen: model.UnixMilli(row.FirstSeen)})
	}
	return devices, nil
}
