package db

import (
	"time"

	"resource-downloader/resource"

	"gorm.io/gorm"
)

// InstalledResource is the persisted form of a resource.InstalledEntry.
type InstalledResource struct {
	ProjectID   string `gorm:"primaryKey"`
	Kind        string
	Title       string
	VersionID   string
	Version     resource.VersionRecord `gorm:"serializer:json"`
	InstallPath string
	Pinned      bool
	InstalledAt time.Time
	CheckedAt   time.Time
	UpdatedAt   time.Time
}

// VersionHistory is a version that was replaced by an update.
type VersionHistory struct {
	gorm.Model
	ProjectID     string `gorm:"index"`
	VersionID     string
	VersionNumber string
	FileName      string
	ArchivePath   string // empty when the old file was deleted
}

func fromEntry(e resource.InstalledEntry) InstalledResource {
	return InstalledResource{
		ProjectID:   e.ProjectID,
		Kind:        e.Kind.String(),
		Title:       e.Title,
		VersionID:   e.Version.ID,
		Version:     e.Version,
		InstallPath: e.Path,
		Pinned:      e.Pinned,
		InstalledAt: e.InstalledAt,
		CheckedAt:   e.CheckedAt,
	}
}

func (r InstalledResource) entry() resource.InstalledEntry {
	kind, _ := resource.ParseKind(r.Kind)
	return resource.InstalledEntry{
		ProjectID:   r.ProjectID,
		Kind:        kind,
		Title:       r.Title,
		Version:     r.Version,
		Path:        r.InstallPath,
		Pinned:      r.Pinned,
		InstalledAt: r.InstalledAt,
		CheckedAt:   r.CheckedAt,
	}
}
