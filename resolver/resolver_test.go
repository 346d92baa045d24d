package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"resource-downloader/catalog"
	"resource-downloader/catalog/catalogtest"
	"resource-downloader/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fabric120 = resource.Target{GameVersion: "1.20.1", Loader: "fabric"}
	day       = func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
)

func version(id, game string, ch resource.Channel, published time.Time, hash string) resource.VersionRecord {
	return resource.VersionRecord{
		ID:           id,
		GameVersions: []string{game},
		Loaders:      []string{"fabric"},
		Channel:      ch,
		Published:    published,
		Hashes:       map[string]string{"sha1": hash},
	}
}

func TestResolvePrefersReleaseForTarget(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("V1", "1.19", resource.Release, day(1), "h1"),
		version("V2", "1.20.1", resource.Release, day(2), "h2"),
		version("V3", "1.20.1", resource.Beta, day(3), "h3"),
	)

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})

	require.Equal(t, resource.Resolved, res.Kind)
	assert.Equal(t, "V2", res.Version.ID)
}

func TestResolveUpToDateWhenHashMatches(t *testing.T) {
	c := catalogtest.New()
	v2 := version("V2", "1.20.1", resource.Release, day(2), "H")
	c.AddProject(resource.Project{ID: "P"}, v2)

	installed := version("V2-old-id", "1.20.1", resource.Release, day(2), "H")
	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120, Installed: &installed})

	assert.Equal(t, resource.UpToDate, res.Kind)
}

func TestResolveNewerVersionIsNotUpToDate(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("V2", "1.20.1", resource.Release, day(2), "H"),
		version("V4", "1.20.1", resource.Release, day(4), "H4"),
	)
	installed := version("V2", "1.20.1", resource.Release, day(2), "H")

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120, Installed: &installed})

	require.Equal(t, resource.Resolved, res.Kind)
	assert.Equal(t, "V4", res.Version.ID)
}

func TestResolveNoCompatibleVersion(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"}, version("V1", "1.19", resource.Release, day(1), "h1"))

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})

	assert.Equal(t, resource.NoCompatibleVersion, res.Kind)
	assert.Nil(t, res.Err)
}

func TestResolveLoaderMismatch(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"}, version("V1", "1.20.1", resource.Release, day(1), "h1"))

	res := New(c, nil).Resolve(context.Background(), Request{
		ProjectID: "P",
		Target:    resource.Target{GameVersion: "1.20.1", Loader: "forge"},
	})
	assert.Equal(t, resource.NoCompatibleVersion, res.Kind)

	res = New(c, nil).Resolve(context.Background(), Request{
		ProjectID: "P",
		Kind:      resource.KindShader,
		Target:    resource.Target{GameVersion: "1.20.1", Loader: "forge"},
	})
	assert.Equal(t, resource.Resolved, res.Kind, "loader is not a filter for shaders")
}

func TestResolveFailureSurfaces(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"})
	c.FailList("P", &catalog.TransportError{Op: "list", Transient: true, Err: errors.New("connection reset")})

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})

	require.Equal(t, resource.ResolutionFailed, res.Kind)
	assert.True(t, catalog.IsTransient(res.Err))
	assert.Equal(t, 1, c.ListCount("P"), "resolver must not retry")
}

func TestResolveChannelPreferenceWidens(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("R", "1.20.1", resource.Release, day(1), "r"),
		version("B", "1.20.1", resource.Beta, day(2), "b"),
		version("A", "1.20.1", resource.Alpha, day(3), "a"),
	)
	r := New(c, nil)

	tests := []struct {
		pref     resource.Channel
		expected string
	}{
		{resource.Release, "R"},
		{resource.Beta, "B"},
		{resource.Alpha, "A"},
	}
	for _, tt := range tests {
		t.Run(tt.pref.String(), func(t *testing.T) {
			res := r.Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120, Channel: tt.pref})
			require.Equal(t, resource.Resolved, res.Kind)
			assert.Equal(t, tt.expected, res.Version.ID)
		})
	}
}

func TestResolveFallsBackToLessStableChannel(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("A", "1.20.1", resource.Alpha, day(3), "a"),
		version("B", "1.20.1", resource.Beta, day(1), "b"),
	)

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})

	require.Equal(t, resource.Resolved, res.Kind)
	assert.Equal(t, "B", res.Version.ID)
}

func TestResolveTieBreakIsLexicographic(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("aaa", "1.20.1", resource.Release, day(5), "1"),
		version("zzz", "1.20.1", resource.Release, day(5), "2"),
		version("mmm", "1.20.1", resource.Release, day(5), "3"),
	)

	res := New(c, nil).Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})

	require.Equal(t, resource.Resolved, res.Kind)
	assert.Equal(t, "zzz", res.Version.ID)
}

func TestResolveIsDeterministic(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("x", "1.20.1", resource.Release, day(5), "1"),
		version("y", "1.20.1", resource.Release, day(5), "2"),
		version("z", "1.20.1", resource.Beta, day(9), "3"),
	)
	r := New(c, nil)

	first := r.Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})
	for i := 0; i < 5; i++ {
		again := r.Resolve(context.Background(), Request{ProjectID: "P", Target: fabric120})
		assert.Equal(t, first, again)
	}
}

func TestResolveRespectsConstraint(t *testing.T) {
	c := catalogtest.New()
	c.AddProject(resource.Project{ID: "P"},
		version("V1", "1.20.1", resource.Release, day(1), "1"),
		version("V2", "1.20.1", resource.Release, day(2), "2"),
	)

	res := New(c, nil).Resolve(context.Background(), Request{
		ProjectID:   "P",
		Target:      fabric120,
		Constraints: []resource.Constraint{{VersionID: "V1"}},
	})
	require.Equal(t, resource.Resolved, res.Kind)
	assert.Equal(t, "V1", res.Version.ID)
}
