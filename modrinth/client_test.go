package modrinth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"resource-downloader/catalog"
	"resource-downloader/config"
	"resource-downloader/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const versionsJSON = `[
  {
    "id": "v2",
    "project_id": "P",
    "version_number": "2.0.0",
    "version_type": "beta",
    "game_versions": ["1.20.1"],
    "loaders": ["fabric"],
    "date_published": "2024-02-01T10:00:00Z",
    "files": [
      {"filename": "extra.jar", "url": "https://cdn/extra.jar", "primary": false, "size": 1, "hashes": {"sha1": "00"}},
      {"filename": "p-2.jar", "url": "https://cdn/p-2.jar", "primary": true, "size": 42, "hashes": {"sha1": "abc", "sha512": "def"}}
    ],
    "dependencies": [
      {"project_id": "Q", "version_id": "q1", "dependency_type": "required"},
      {"project_id": "R", "dependency_type": "incompatible"},
      {"version_id": "orphan", "dependency_type": "required"}
    ]
  },
  {"id": "empty", "project_id": "P", "files": []},
  {
    "id": "v1",
    "project_id": "P",
    "version_number": "1.0.0",
    "version_type": "release",
    "game_versions": ["1.19"],
    "loaders": ["fabric"],
    "date_published": "2023-01-01T00:00:00Z",
    "files": [{"filename": "p-1.jar", "url": "https://cdn/p-1.jar", "size": 7, "hashes": {"sha1": "111"}}]
  }
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.Config{ModrinthAPIURL: srv.URL, UserAgent: "test-agent", RequestTimeoutSeconds: 5})
	require.NoError(t, err)
	return c
}

func TestListVersions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/P/version", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, versionsJSON)
	})

	versions, err := catalog.Collect(c.ListVersions(context.Background(), "P"))
	require.NoError(t, err)
	require.Len(t, versions, 2)

	v2 := versions[0]
	assert.Equal(t, "v2", v2.ID)
	assert.Equal(t, resource.Beta, v2.Channel)
	assert.Equal(t, "p-2.jar", v2.FileName)
	assert.Equal(t, int64(42), v2.Size)
	assert.Equal(t, "def", v2.Hashes["sha512"])
	assert.Equal(t, 2024, v2.Published.Year())
	require.Len(t, v2.Dependencies, 2)
	assert.Equal(t, resource.Dependency{ProjectID: "Q", Type: resource.DependencyRequired, Constraint: resource.Constraint{VersionID: "q1"}}, v2.Dependencies[0])
	assert.Equal(t, resource.DependencyIncompatible, v2.Dependencies[1].Type)

	assert.Equal(t, "p-1.jar", versions[1].FileName, "first file is used when none is primary")
}

func TestListVersionsStopsEarly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, versionsJSON)
	})

	n := 0
	for _, err := range c.ListVersions(context.Background(), "P") {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		notFound  bool
	}{
		{"not found", http.StatusNotFound, false, true},
		{"gone", http.StatusGone, false, true},
		{"rate limited", http.StatusTooManyRequests, true, false},
		{"server error", http.StatusBadGateway, true, false},
		{"bad request", http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := c.GetProject(context.Background(), "P")
			require.Error(t, err)
			var te *catalog.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, tt.transient, catalog.IsTransient(err))
			assert.Equal(t, tt.notFound, errors.Is(err, catalog.ErrNotFound))
		})
	}
}

func TestGetProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/project/sodium", r.URL.Path)
		io.WriteString(w, `{"id": "AANobbMI", "slug": "sodium", "title": "Sodium", "project_type": "mod", "client_side": "required", "server_side": "unsupported"}`)
	})

	p, err := c.GetProject(context.Background(), "sodium")
	require.NoError(t, err)
	assert.Equal(t, resource.Project{ID: "AANobbMI", Slug: "sodium", Title: "Sodium", Kind: resource.KindMod, ClientSide: "required", ServerSide: "unsupported"}, p)
	assert.False(t, p.SupportsSide("server"))
}

func TestGetProjectRejectsModpacks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": "x", "slug": "pack", "project_type": "modpack"}`)
	})

	_, err := c.GetProject(context.Background(), "pack")
	assert.Error(t, err)
}

func TestFetchBytes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Accept"))
		io.WriteString(w, "jar bytes")
	})

	body, err := c.FetchBytes(context.Background(), c.BaseURL+"/data/p.jar")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", string(data))
}

func TestGetVersionByHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/version_file/abc", r.URL.Path)
		assert.Equal(t, "sha1", r.URL.Query().Get("algorithm"))
		io.WriteString(w, `{"id": "v1", "project_id": "P", "version_type": "release", "files": [{"filename": "p.jar", "url": "u", "primary": true, "hashes": {"sha1": "abc"}}]}`)
	})

	v, err := c.GetVersionByHash(context.Background(), "abc", "sha1")
	require.NoError(t, err)
	assert.Equal(t, "P", v.ProjectID)
	assert.Equal(t, "p.jar", v.FileName)
}

func TestGetFollowedProjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/user":
			io.WriteString(w, `{"id": "u1", "username": "steve"}`)
		case "/user/u1/follows":
			io.WriteString(w, `[{"id": "a", "slug": "a", "project_type": "mod"}, {"id": "b", "slug": "b", "project_type": "modpack"}, {"id": "c", "slug": "c", "project_type": "shader"}]`)
		default:
			http.NotFound(w, r)
		}
	})
	c.APIKey = "secret"

	projects, err := c.GetFollowedProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, resource.KindShader, projects[1].Kind)
}

func TestGetFollowedProjectsRequiresKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.GetFollowedProjects(context.Background())
	assert.Error(t, err)
}
