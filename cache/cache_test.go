package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"resource-downloader/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, version string) resource.InstalledEntry {
	return resource.InstalledEntry{
		ProjectID: id,
		Version:   resource.VersionRecord{ProjectID: id, ID: version},
		Path:      "/mods/" + id + ".jar",
	}
}

func TestLoadAndList(t *testing.T) {
	store := NewMemoryStore(entry("b", "1"), entry("a", "1"))
	c := New(store, nil)
	require.NoError(t, c.Load(context.Background()))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ProjectID)
	assert.Equal(t, "b", list[1].ProjectID)
}

func TestUpsertStampsTimes(t *testing.T) {
	c := New(NewMemoryStore(), nil)
	require.NoError(t, c.Upsert(context.Background(), entry("a", "1")))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.False(t, got.InstalledAt.IsZero())
	assert.Equal(t, got.InstalledAt, got.CheckedAt)
}

func TestUpsertFailureLeavesEntryUntouched(t *testing.T) {
	store := NewMemoryStore(entry("a", "1"))
	c := New(store, nil)
	require.NoError(t, c.Load(context.Background()))

	store.FailWrites = errors.New("disk full")
	err := c.Upsert(context.Background(), entry("a", "2"))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a", perr.ProjectID)

	got, _ := c.Get("a")
	assert.Equal(t, "1", got.Version.ID)

	persisted, _ := store.ReadAll(context.Background())
	require.Len(t, persisted, 1)
	assert.Equal(t, "1", persisted[0].Version.ID)
}

func TestUpsertRequiresProjectID(t *testing.T) {
	c := New(NewMemoryStore(), nil)
	assert.Error(t, c.Upsert(context.Background(), resource.InstalledEntry{}))
}

func TestRemove(t *testing.T) {
	store := NewMemoryStore(entry("a", "1"))
	c := New(store, nil)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.Remove(context.Background(), "a"))
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.NoError(t, c.Remove(context.Background(), "missing"))
}

func TestSetPinnedAndMarkChecked(t *testing.T) {
	c := New(NewMemoryStore(entry("a", "1")), nil)
	require.NoError(t, c.Load(context.Background()))

	require.NoError(t, c.SetPinned(context.Background(), "a", true))
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.MarkChecked(context.Background(), "a", at))

	got, _ := c.Get("a")
	assert.True(t, got.Pinned)
	assert.Equal(t, at, got.CheckedAt)

	assert.Error(t, c.SetPinned(context.Background(), "missing", true))
}
