package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry counts calls and holds devices in memory.
type fakeRegistry struct {
	mu          sync.Mutex
	devices     map[string]bool
	existsCalls int
	err         error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{devices: make(map[string]bool)}
}

func (f *fakeRegistry) Exists(_ context.Context, uri string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.err != nil {
		return false, f.err
	}
	return f.devices[uri], nil
}

func (f *fakeRegistry) Register(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.devices[uri] = true
	return nil
}

func (f *fakeRegistry) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existsCalls
}

func TestNew(t *testing.T) {
	c := New(newFakeRegistry())
	assert.NotNil(t, c.known)
	assert.Equal(t, 0, c.Len())
}

func TestExists_CachesPositiveAnswers(t *testing.T) {
	reg := newFakeRegistry()
	reg.devices["d1"] = true
	c := New(reg)
	ctx := context.Background()

	ok, err := c.Exists(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, reg.calls())
}

func TestExists_DoesNotCacheMisses(t *testing.T) {
	reg := newFakeRegistry()
	c := New(reg)
	ctx := context.Background()

	for range 3 {
		ok, err := c.Exists(ctx, "d1")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, reg.calls())
	assert.Equal(t, 0, c.Len())
}

func TestRegister(t *testing.T) {
	reg := newFakeRegistry()
	c := New(reg)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "d1"))
	assert.True(t, reg.devices["d1"])

	ok, err := c.Exists(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, reg.calls())
}

func TestRegister_Error(t *testing.T) {
	reg := newFakeRegistry()
	reg.err = errors.New("disk full")
	c := New(reg)

	assert.Error(t, c.Register(context.Background(), "d1"))
	assert.Equal(t, 0, c.Len())
}

func TestExists_Error(t *testing.T) {
	reg := newFakeRegistry()
	reg.err = errors.New("db closed")
	c := New(reg)

	_, err := c.Exists(context.Background(), "d1")
	assert.Error(t, err)
}

func TestForgetAndReset(t *testing.T) {
	c := New(newFakeRegistry())
	ctx := context.Background()
	require.NoError(t, c.Register(ctx, "a"))
	require.NoError(t, c.Register(ctx, "b"))
	assert.Equal(t, []string{"a", "b"}, c.URIs())

	c.Forget("a")
	assert.Equal(t, []string{"b"}, c.URIs())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New(newFakeRegistry())
	require.NoError(t, c.Register(context.Background(), "d1"))

	snap := c.Snapshot()
	delete(snap.Known, "d1")

	assert.Equal(t, 1, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(newFakeRegistry())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uri := string(rune('a' + i%5))
			_ = c.Register(ctx, uri)
			_, _ = c.Exists(ctx, uri)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
