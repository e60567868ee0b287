package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Table names.
const (
	continuousTable = "ContinuousNotification"
	discreteTable   = "DiscreteNotification"
)

// table is a notification table and the statements that create it.
type table struct {
	name string
	ddl  []string
}

// Notification rows reference Device(uri), which is owned by the device
// registry. Deleting a device purges its history.
var tables = []table{
	{
		name: discreteTable,
		ddl: []string{
			`CREATE TABLE DiscreteNotification (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   INTEGER,
    value       VARCHAR(100),
    name        VARCHAR(100),
    deviceuri   VARCHAR(255),
    FOREIGN KEY (deviceuri) REFERENCES Device(uri) ON DELETE CASCADE
)`,
			`CREATE INDEX IF NOT EXISTS idx_discrete_device_name_ts
    ON DiscreteNotification(deviceuri, name, timestamp)`,
		},
	},
	{
		name: continuousTable,
		ddl: []string{
			`CREATE TABLE ContinuousNotification (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   INTEGER,
    unit        VARCHAR(5),
    value       DOUBLE,
    name        VARCHAR(100),
    params      VARCHAR(255),
    deviceuri   VARCHAR(255),
    FOREIGN KEY (deviceuri) REFERENCES Device(uri) ON DELETE CASCADE
)`,
			`CREATE INDEX IF NOT EXISTS idx_continuous_device_name_params_ts
    ON ContinuousNotification(deviceuri, name, params, timestamp)`,
		},
	},
}

// EnsureSchema creates the notification tables that do not exist yet and
// returns the names of the tables it created. Existing tables are left
// untouched, so it is safe to call on every start.
func EnsureSchema(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var created []string
	for _, t := range tables {
		exists, err := tableExists(ctx, db, t.name)
		if err != nil {
			return created, fmt.Errorf("%w: checking table %s: %w", ErrSchema, t.name, err)
		}
		if exists {
			continue
		}
		if err := createTable(ctx, db, t); err != nil {
			return created, fmt.Errorf("%w: creating table %s: %w", ErrSchema, t.name, err)
		}
		slog.Info("created table", "table", t.name)
		created = append(created, t.name)
	}
	return created, nil
}

func tableExists(ctx context.Context, db *sqlx.DB, name string) (bool, error) {
	var found string
	err := db.QueryRowxContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`,
		name,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func createTable(ctx context.Context, db *sqlx.DB, t table) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range t.ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}
