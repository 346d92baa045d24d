package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"resource-downloader/cache"
	"resource-downloader/orchestrator"
	"resource-downloader/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ cache.Persistence = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "resources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(id, version string) resource.InstalledEntry {
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return resource.InstalledEntry{
		ProjectID: id,
		Kind:      resource.KindShader,
		Title:     "Title " + id,
		Version: resource.VersionRecord{
			ProjectID:     id,
			ID:            version,
			VersionNumber: "1.0." + version,
			GameVersions:  []string{"1.20.1"},
			Loaders:       []string{"iris"},
			Channel:       resource.Beta,
			Hashes:        map[string]string{"sha1": "abc"},
			FileName:      id + ".zip",
			Dependencies: []resource.Dependency{
				{ProjectID: "dep", Type: resource.DependencyRequired, Constraint: resource.Constraint{Range: ">=1.0"}},
			},
		},
		Path:        "/mc/shaderpacks/" + id + ".zip",
		Pinned:      true,
		InstalledAt: at,
		CheckedAt:   at,
	}
}

func TestWriteAndReadAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntry(ctx, sampleEntry("b", "1")))
	require.NoError(t, s.WriteEntry(ctx, sampleEntry("a", "1")))

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ProjectID)

	got := all[1]
	want := sampleEntry("b", "1")
	assert.Equal(t, want.Kind, got.Kind)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Path, got.Path)
	assert.True(t, got.Pinned)
	assert.True(t, want.InstalledAt.Equal(got.InstalledAt))
	assert.Equal(t, want.Version.Hashes, got.Version.Hashes)
	assert.Equal(t, want.Version.Dependencies, got.Version.Dependencies)
	assert.Equal(t, resource.Beta, got.Version.Channel)
}

func TestWriteEntryReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntry(ctx, sampleEntry("a", "1")))
	updated := sampleEntry("a", "2")
	updated.Pinned = false
	require.NoError(t, s.WriteEntry(ctx, updated))

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].Version.ID)
	assert.False(t, all[0].Pinned)
}

func TestDeleteEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteEntry(ctx, sampleEntry("a", "1")))
	require.NoError(t, s.DeleteEntry(ctx, "a"))
	require.NoError(t, s.DeleteEntry(ctx, "missing"))

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordReplaced(ctx, orchestrator.HistoryEntry{ProjectID: "a", VersionID: "1", FileName: "a-1.jar", ArchivePath: "/v/1-a-1.jar"}))
	require.NoError(t, s.RecordReplaced(ctx, orchestrator.HistoryEntry{ProjectID: "a", VersionID: "2", FileName: "a-2.jar"}))
	require.NoError(t, s.RecordReplaced(ctx, orchestrator.HistoryEntry{ProjectID: "b", VersionID: "9"}))

	history, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2", history[0].VersionID)
	assert.Equal(t, "/v/1-a-1.jar", history[1].ArchivePath)

	require.NoError(t, s.ForgetHistory(ctx, history[0].ID))
	history, err = s.History(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCacheOverStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resources.db")
	s, err := Open(path)
	require.NoError(t, err)
	c := cache.New(s, nil)
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Upsert(context.Background(), sampleEntry("a", "1")))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	c = cache.New(reopened, nil)
	require.NoError(t, c.Load(context.Background()))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", got.Version.ID)
}
