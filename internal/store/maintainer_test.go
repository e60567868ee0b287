package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t testing.TB) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{URL: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewMaintainer_DefaultInterval(t *testing.T) {
	m := NewMaintainer(newTestStore(t), 0)
	assert.Equal(t, DefaultMaintenanceInterval, m.interval)
}

func TestMaintainer_RunStopsOnCancel(t *testing.T) {
	m := NewMaintainer(newTestStore(t), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaintainer_Checkpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	db, err := s.DB(ctx)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (v) VALUES (1), (2), (3)`)
	require.NoError(t, err)

	res, err := NewMaintainer(s, time.Hour).checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.busy)
	assert.Equal(t, res.logFrames, res.checkpointed)
}

func TestMaintainer_CheckpointAfterShutdown(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Shutdown(context.Background()))

	_, err := NewMaintainer(s, time.Hour).checkpoint(context.Background())
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestOptionsDSN(t *testing.T) {
	cgo := Options{Driver: DriverCGo, URL: "/tmp/x.db"}.dsn()
	assert.Contains(t, cgo, "_journal_mode=WAL")
	assert.Contains(t, cgo, "_foreign_keys=1")
	assert.NotContains(t, cgo, "_auth_user")

	auth := Options{Driver: DriverCGo, URL: "file:x.db?mode=rwc", User: "admin", Password: "secret"}.dsn()
	assert.Contains(t, auth, "?mode=rwc&")
	assert.Contains(t, auth, "_auth_user=admin")

	pure := Options{Driver: DriverPure, URL: "/tmp/x.db"}.dsn()
	assert.Contains(t, pure, "_pragma=foreign_keys%281%29")
}

func TestOptionsInMemory(t *testing.T) {
	assert.True(t, Options{URL: ":memory:"}.inMemory())
	assert.True(t, Options{URL: "file:db?mode=memory&cache=shared"}.inMemory())
	assert.False(t, Options{URL: "/var/lib/evstore.db"}.inMemory())
}
