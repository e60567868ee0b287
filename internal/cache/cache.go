// Package cache remembers which devices are known to the registry so that
// writes do not look a device up on every notification.
package cache

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Registry is the device registry being cached.
type Registry interface {
	Exists(ctx context.Context, uri string) (bool, error)
	Register(ctx context.Context, uri string) error
}

// Devices is a thread-safe, positive-only cache in front of a Registry.
// Only presence is cached: an unknown device is always asked again.
type Devices struct {
	mu sync.RWMutex

	next  Registry
	known map[string]time.Time // uri -> time it became known
}

// Snapshot is a read-only copy of the cached devices.
type Snapshot struct {
	Known map[string]time.Time
}

// New returns a cache in front of next.
func New(next Registry) *Devices {
	return &Devices{
		next:  next,
		known: make(map[string]time.Time),
	}
}

// Exists answers from the cache when it can and asks the registry otherwise.
func (c *Devices) Exists(ctx context.Context, uri string) (bool, error) {
	c.mu.RLock()
	_, ok := c.known[uri]
	c.mu.RUnlock()
	if ok {
		return true, nil
	}

	found, err := c.next.Exists(ctx, uri)
	if err != nil {
		return false, err
	}
	if found {
		c.remember(uri)
	}
	return found, nil
}

// Register registers uri with the registry and remembers it.
func (c *Devices) Register(ctx context.Context, uri string) error {
	if err := c.next.Register(ctx, uri); err != nil {
		return err
	}
	c.remember(uri)
	return nil
}

// Forget drops uri, e.g. after the device has been deleted.
func (c *Devices) Forget(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, uri)
}

// Reset drops every cached device.
func (c *Devices) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.known)
}

// Len returns the number of cached devices.
func (c *Devices) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.known)
}

// URIs returns the cached device URIs in sorted order.
func (c *Devices) URIs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.known))
}

// Snapshot returns a copy of the cache contents.
func (c *Devices) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Known: maps.Clone(c.known)}
}

func (c *Devices) remember(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.known[uri]; !ok {
		c.known[uri] = time.Now()
	}
}
