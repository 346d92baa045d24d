// Package cache keeps the record of what is installed for each project.
//
// The cache stores only what is installed now. Whether an entry is current is always
// answered by the resolver against the live catalog.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"resource-downloader/resource"

	"go.uber.org/zap"
)

// Persistence is the durable backing store. WriteEntry must replace the stored entry
// atomically; a crash mid-write must leave either the old or the new record.
type Persistence interface {
	ReadAll(ctx context.Context) ([]resource.InstalledEntry, error)
	WriteEntry(ctx context.Context, entry resource.InstalledEntry) error
	DeleteEntry(ctx context.Context, projectID string) error
}

// PersistenceError is returned when the backing store rejects a write.
type PersistenceError struct {
	Op        string
	ProjectID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ProjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Cache is the process-wide view of installed entries. Mutations go to the store first
// and only reach memory once the store accepted them.
type Cache struct {
	store Persistence
	log   *zap.SugaredLogger

	mu      sync.RWMutex
	entries map[string]resource.InstalledEntry
}

// New creates an empty cache over store. Call Load before use.
func New(store Persistence, log *zap.SugaredLogger) *Cache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Cache{store: store, log: log, entries: make(map[string]resource.InstalledEntry)}
}

// Load replaces the in-memory view with the store's contents.
func (c *Cache) Load(ctx context.Context) error {
	all, err := c.store.ReadAll(ctx)
	if err != nil {
		return &PersistenceError{Op: "read", ProjectID: "*", Err: err}
	}
	entries := make(map[string]resource.InstalledEntry, len(all))
	for _, e := range all {
		entries[e.ProjectID] = e
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.log.Infow("Loaded installed entries", zap.Int("count", len(entries)))
	return nil
}

// Get returns the entry for projectID.
func (c *Cache) Get(projectID string) (resource.InstalledEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[projectID]
	return e, ok
}

// List returns all entries ordered by project ID.
func (c *Cache) List() []resource.InstalledEntry {
	c.mu.RLock()
	out := make([]resource.InstalledEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// Upsert records a verified install. Callers must only call it once the file bytes are
// verified and in place at entry.Path.
func (c *Cache) Upsert(ctx context.Context, entry resource.InstalledEntry) error {
	if entry.ProjectID == "" {
		return &PersistenceError{Op: "upsert", Err: fmt.Errorf("entry has no project id")}
	}
	if entry.InstalledAt.IsZero() {
		entry.InstalledAt = time.Now()
	}
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = entry.InstalledAt
	}
	if err := c.store.WriteEntry(ctx, entry); err != nil {
		return &PersistenceError{Op: "upsert", ProjectID: entry.ProjectID, Err: err}
	}

	c.mu.Lock()
	c.entries[entry.ProjectID] = entry
	c.mu.Unlock()
	return nil
}

// Remove forgets projectID. Removing an unknown project is not an error.
func (c *Cache) Remove(ctx context.Context, projectID string) error {
	if err := c.store.DeleteEntry(ctx, projectID); err != nil {
		return &PersistenceError{Op: "remove", ProjectID: projectID, Err: err}
	}

	c.mu.Lock()
	delete(c.entries, projectID)
	c.mu.Unlock()
	return nil
}

// SetPinned marks an entry as pinned to its installed version, or releases the pin.
func (c *Cache) SetPinned(ctx context.Context, projectID string, pinned bool) error {
	return c.update(ctx, "pin", projectID, func(e *resource.InstalledEntry) { e.Pinned = pinned })
}

// MarkChecked stamps the last time projectID was checked against the catalog.
func (c *Cache) MarkChecked(ctx context.Context, projectID string, at time.Time) error {
	return c.update(ctx, "mark checked", projectID, func(e *resource.InstalledEntry) { e.CheckedAt = at })
}

func (c *Cache) update(ctx context.Context, op, projectID string, fn func(*resource.InstalledEntry)) error {
	e, ok := c.Get(projectID)
	if !ok {
		return &PersistenceError{Op: op, ProjectID: projectID, Err: fmt.Errorf("not installed")}
	}
	fn(&e)
	if err := c.store.WriteEntry(ctx, e); err != nil {
		return &PersistenceError{Op: op, ProjectID: projectID, Err: err}
	}

	c.mu.Lock()
	c.entries[projectID] = e
	c.mu.Unlock()
	return nil
}
