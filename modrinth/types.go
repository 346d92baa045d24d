package modrinth

import (
	"fmt"
	"time"

	"resource-downloader/resource"
)

// User represents a Modrinth user (simplified).
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Project represents a Modrinth project.
type Project struct {
	Slug        string `json:"slug"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	IconURL     string `json:"icon_url"`
	Color       int    `json:"color"`
	ProjectType string `json:"project_type"` // mod, shader, resourcepack, datapack, plugin, modpack
	ClientSide  string `json:"client_side"`  // required, optional, unsupported, unknown
	ServerSide  string `json:"server_side"`
}

// Resource converts p. Modpacks and other unknown project types are rejected.
func (p Project) Resource() (resource.Project, error) {
	kind, err := resource.ParseKind(p.ProjectType)
	if err != nil {
		return resource.Project{}, fmt.Errorf("project %s: %w", p.Slug, err)
	}
	return resource.Project{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      p.Title,
		Kind:       kind,
		ClientSide: p.ClientSide,
		ServerSide: p.ServerSide,
	}, nil
}

// Version represents a Modrinth project version.
type Version struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"project_id"`
	Name          string       `json:"name"`
	VersionNumber string       `json:"version_number"`
	VersionType   string       `json:"version_type"` // release, beta, alpha
	GameVersions  []string     `json:"game_versions"`
	Loaders       []string     `json:"loaders"`
	DatePublished time.Time    `json:"date_published"`
	Files         []File       `json:"files"`
	Dependencies  []Dependency `json:"dependencies"`
}

// File represents a file within a Modrinth version.
type File struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	Primary  bool              `json:"primary"`
	Size     int64             `json:"size"`
	Hashes   map[string]string `json:"hashes"` // e.g., {"sha512": "...", "sha1": "..."}
}

// Dependency is an edge to another project or a specific version of it.
type Dependency struct {
	VersionID      string `json:"version_id"`
	ProjectID      string `json:"project_id"`
	DependencyType string `json:"dependency_type"`
}

// primaryFile returns the file marked primary, falling back to the first file.
func (v Version) primaryFile() (File, bool) {
	for _, f := range v.Files {
		if f.Primary {
			return f, true
		}
	}
	if len(v.Files) > 0 {
		return v.Files[0], true
	}
	return File{}, false
}

// Record converts v to a resource.VersionRecord. It reports false for versions with no
// files. Dependencies that name only a version cannot be planned and are dropped.
func (v Version) Record() (resource.VersionRecord, bool) {
	file, ok := v.primaryFile()
	if !ok {
		return resource.VersionRecord{}, false
	}
	channel, err := resource.ParseChannel(v.VersionType)
	if err != nil {
		channel = resource.Alpha
	}

	rec := resource.VersionRecord{
		ProjectID:     v.ProjectID,
		ID:            v.ID,
		VersionNumber: v.VersionNumber,
		GameVersions:  v.GameVersions,
		Loaders:       v.Loaders,
		Channel:       channel,
		Published:     v.DatePublished,
		Hashes:        file.Hashes,
		URL:           file.URL,
		FileName:      file.Filename,
		Size:          file.Size,
	}
	for _, d := range v.Dependencies {
		if d.ProjectID == "" {
			continue
		}
		rec.Dependencies = append(rec.Dependencies, resource.Dependency{
			ProjectID:  d.ProjectID,
			Type:       resource.ParseDependencyType(d.DependencyType),
			Constraint: resource.Constraint{VersionID: d.VersionID},
		})
	}
	return rec, true
}
